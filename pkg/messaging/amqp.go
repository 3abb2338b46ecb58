// Package messaging publishes completed analyses to an AMQP broker.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"cognivox-server/pkg/config"
	"cognivox-server/pkg/metrics"
	"cognivox-server/pkg/submission"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	maxReconnects  = 10
	// messages left unconsumed for 12 hours are dropped by the broker
	messageExpiration = "43200000"
)

// AMQPClient publishes analysis events to a queue, reconnecting when the broker drops the connection
type AMQPClient struct {
	logger    *logrus.Entry
	config    config.MessagingConfig
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
	closed    bool
	connMutex sync.RWMutex
	stopChan  chan struct{}
}

// NewAMQPClient creates a client. Connect must be called before publishing.
func NewAMQPClient(logger *logrus.Logger, cfg config.MessagingConfig) *AMQPClient {
	if cfg.ExchangeName == "" {
		// the default exchange routes by queue name
		cfg.RoutingKey = cfg.QueueName
	}
	return &AMQPClient{
		logger:   logger.WithField("component", "amqp"),
		config:   cfg,
		stopChan: make(chan struct{}),
	}
}

// Connect dials the broker, opens a channel and declares the queue
func (c *AMQPClient) Connect() error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.connected {
		return nil
	}
	if c.closed {
		return fmt.Errorf("AMQP client is closed")
	}
	if c.config.AMQPURL == "" || c.config.QueueName == "" {
		return fmt.Errorf("AMQP URL or queue name not configured")
	}

	conn, err := amqp.DialConfig(c.config.AMQPURL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Dial:      amqp.DefaultDial(connectTimeout),
	})
	if err != nil {
		metrics.SetAMQPConnectionStatus(false)
		return fmt.Errorf("failed to connect to AMQP server: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if _, err := channel.QueueDeclare(
		c.config.QueueName,
		c.config.Durable,
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare AMQP queue: %w", err)
	}

	if c.config.ExchangeName != "" {
		if err := channel.ExchangeDeclare(c.config.ExchangeName, "topic", c.config.Durable, false, false, false, nil); err != nil {
			channel.Close()
			conn.Close()
			return fmt.Errorf("failed to declare AMQP exchange: %w", err)
		}
		if err := channel.QueueBind(c.config.QueueName, c.config.RoutingKey, c.config.ExchangeName, false, nil); err != nil {
			channel.Close()
			conn.Close()
			return fmt.Errorf("failed to bind AMQP queue: %w", err)
		}
	}

	c.conn = conn
	c.channel = channel
	c.connected = true
	metrics.SetAMQPConnectionStatus(true)

	c.logger.WithFields(logrus.Fields{
		"queue":    c.config.QueueName,
		"exchange": c.config.ExchangeName,
	}).Info("Connected to AMQP server")

	go c.monitorConnection(conn)
	return nil
}

// IsConnected returns the connection status
func (c *AMQPClient) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.connected
}

// Close stops reconnection attempts and closes the connection
func (c *AMQPClient) Close() {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.stopChan)
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	wasConnected := c.connected
	c.connected = false
	if !wasConnected {
		return
	}
	metrics.SetAMQPConnectionStatus(false)
	c.logger.Info("Disconnected from AMQP server")
}

// Publish sends event as a persistent JSON message
func (c *AMQPClient) Publish(ctx context.Context, event AnalysisEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		c.connMutex.RLock()
		defer c.connMutex.RUnlock()

		if !c.connected || c.channel == nil {
			result <- fmt.Errorf("not connected to AMQP server")
			return
		}
		result <- c.channel.Publish(
			c.config.ExchangeName,
			c.config.RoutingKey,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				Type:         event.Type,
				MessageId:    event.EventID,
				Body:         body,
				DeliveryMode: amqp.Persistent,
				Timestamp:    event.Timestamp,
				Expiration:   messageExpiration,
			},
		)
	}()

	select {
	case err = <-result:
	case <-ctx.Done():
		err = fmt.Errorf("publishing to AMQP timed out: %w", ctx.Err())
	}

	if err != nil {
		metrics.RecordAMQPPublish(c.config.QueueName, "error")
		return fmt.Errorf("failed to publish analysis event: %w", err)
	}

	metrics.RecordAMQPPublish(c.config.QueueName, "success")
	c.logger.WithFields(logrus.Fields{
		"event_id":     event.EventID,
		"recording_id": event.RecordingID,
	}).Debug("Published analysis event")
	return nil
}

// Notifier adapts p into a submission callback. Publication failures are logged, never returned.
func Notifier(logger *logrus.Logger, p Publisher) func(context.Context, submission.Outcome) {
	entry := logger.WithField("component", "amqp")
	return func(ctx context.Context, o submission.Outcome) {
		event := NewAnalysisEvent(o)
		if err := p.Publish(ctx, event); err != nil {
			entry.WithError(err).WithField("recording_id", event.RecordingID).Warn("Analysis event not published")
		}
	}
}

// monitorConnection reconnects with exponential backoff when conn closes
func (c *AMQPClient) monitorConnection(conn *amqp.Connection) {
	closeChan := conn.NotifyClose(make(chan *amqp.Error, 1))
	stop := c.stopChan

	select {
	case <-stop:
		return
	case closeErr := <-closeChan:
		c.connMutex.Lock()
		if c.conn != conn {
			c.connMutex.Unlock()
			return
		}
		c.connected = false
		c.connMutex.Unlock()
		metrics.SetAMQPConnectionStatus(false)

		c.logger.WithError(closeErr).Warn("AMQP connection closed, attempting to reconnect")

		for attempt := 1; attempt <= maxReconnects; attempt++ {
			err := c.Connect()
			if err == nil {
				c.logger.WithField("attempt", attempt).Info("Reconnected to AMQP server")
				return
			}
			c.logger.WithError(err).WithField("attempt", attempt).Error("Failed to reconnect to AMQP server")

			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			select {
			case <-stop:
				return
			case <-time.After(backoff):
			}
		}
	}
}
