package stt

import (
	"context"

	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/audio"
)

// MockProvider returns a fixed transcript regardless of the audio
type MockProvider struct {
	logger     *logrus.Logger
	transcript string
}

// NewMockProvider creates a new mock provider
func NewMockProvider(logger *logrus.Logger, transcript string) *MockProvider {
	return &MockProvider{
		logger:     logger,
		transcript: transcript,
	}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// Initialize initializes the mock provider
func (p *MockProvider) Initialize() error {
	p.logger.Info("Mock STT provider initialized")
	return nil
}

// Transcribe returns the configured transcript once ctx is still live
func (p *MockProvider) Transcribe(ctx context.Context, pcm audio.PCM) (Transcript, error) {
	if err := ctx.Err(); err != nil {
		return Transcript{}, err
	}
	p.logger.WithField("samples", len(pcm.Samples)).Debug("Mock STT provider processing audio")
	return Transcript{
		Text:       p.transcript,
		Confidence: 1,
		Provider:   p.Name(),
		Duration:   pcm.Duration(),
	}, nil
}
