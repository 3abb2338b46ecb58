package stt

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/audio"
	cerrors "cognivox-server/pkg/errors"
	"cognivox-server/pkg/metrics"
)

// Transcript is the text recognised in one recording
type Transcript struct {
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence,omitempty"`
	Language   string        `json:"language,omitempty"`
	Provider   string        `json:"provider"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// Provider defines the interface for speech-to-text providers
type Provider interface {
	// Initialize validates the provider configuration
	Initialize() error

	// Name returns the provider name
	Name() string

	// Transcribe converts mono PCM into text
	Transcribe(ctx context.Context, pcm audio.PCM) (Transcript, error)
}

// ProviderManager manages all speech-to-text providers
type ProviderManager struct {
	logger          *logrus.Logger
	mu              sync.RWMutex
	providers       map[string]Provider
	defaultProvider string
}

// NewProviderManager creates a new provider manager
func NewProviderManager(logger *logrus.Logger, defaultProvider string) *ProviderManager {
	return &ProviderManager{
		logger:          logger,
		providers:       make(map[string]Provider),
		defaultProvider: defaultProvider,
	}
}

// RegisterProvider initializes and registers a speech-to-text provider
func (m *ProviderManager) RegisterProvider(provider Provider) error {
	if err := provider.Initialize(); err != nil {
		m.logger.WithFields(logrus.Fields{
			"provider": provider.Name(),
			"error":    err,
		}).Error("Failed to initialize speech-to-text provider")
		return errors.Join(ErrInitializationFailed, err)
	}

	m.mu.Lock()
	m.providers[provider.Name()] = provider
	m.mu.Unlock()
	m.logger.WithField("provider", provider.Name()).Info("Registered speech-to-text provider")

	return nil
}

// GetProvider returns a provider by name
func (m *ProviderManager) GetProvider(name string) (Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	provider, exists := m.providers[name]
	return provider, exists
}

// GetDefaultProvider returns the default provider
func (m *ProviderManager) GetDefaultProvider() (Provider, bool) {
	return m.GetProvider(m.defaultProvider)
}

// DefaultProviderName returns the configured default provider name
func (m *ProviderManager) DefaultProviderName() string {
	return m.defaultProvider
}

// Providers lists registered provider names in sorted order
func (m *ProviderManager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Transcribe sends pcm to the named provider, falling back to the default
// provider when the name is empty or unknown. A transcript without words is
// reported as no speech.
func (m *ProviderManager) Transcribe(ctx context.Context, providerName string, pcm audio.PCM) (Transcript, error) {
	startTime := time.Now()

	provider, exists := m.GetProvider(providerName)
	if !exists {
		if providerName != "" {
			m.logger.WithFields(logrus.Fields{
				"provider":         providerName,
				"default_provider": m.defaultProvider,
			}).Warn("Provider not found, falling back to default")
		}

		provider, exists = m.GetDefaultProvider()
		if !exists {
			return Transcript{}, ErrNoProviderAvailable
		}
	}
	name := provider.Name()

	if pcm.Empty() || pcm.SampleRate <= 0 {
		metrics.RecordSTTRequest(name, "error")
		return Transcript{}, cerrors.NewTranscriptionError(name, errors.New("audio contains no samples"))
	}

	m.logger.WithFields(logrus.Fields{
		"provider":    name,
		"sample_rate": pcm.SampleRate,
		"audio_ms":    pcm.Duration().Milliseconds(),
	}).Debug("Starting transcription")

	done := metrics.ObserveSTTLatency(name)
	transcript, err := provider.Transcribe(ctx, pcm)
	done()

	elapsed := time.Since(startTime)
	m.logger.WithFields(logrus.Fields{
		"provider":    name,
		"duration_ms": elapsed.Milliseconds(),
		"error":       err != nil,
	}).Info("Transcription completed")

	if err != nil {
		metrics.RecordSTTRequest(name, "error")
		if cerrors.IsErrorType(err, cerrors.ErrTranscriptionFailed) {
			return Transcript{}, err
		}
		return Transcript{}, cerrors.NewTranscriptionError(name, err)
	}

	transcript.Text = strings.TrimSpace(transcript.Text)
	if transcript.Provider == "" {
		transcript.Provider = name
	}
	words := len(strings.Fields(transcript.Text))
	if words == 0 {
		metrics.RecordSTTRequest(name, "no_speech")
		return Transcript{}, cerrors.NewNoSpeech(name)
	}

	metrics.RecordSTTRequest(name, "success")
	metrics.RecordSTTWords(name, words)
	return transcript, nil
}
