package messaging

import "context"

// Publisher delivers analysis events to a broker
type Publisher interface {
	Publish(ctx context.Context, event AnalysisEvent) error
	IsConnected() bool
	Close()
}

// NoopPublisher drops every event. It is used when AMQP is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, AnalysisEvent) error { return nil }
func (NoopPublisher) IsConnected() bool                          { return false }
func (NoopPublisher) Close()                                     {}
