package stt

import (
	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/config"
)

// NewManagerFromConfig registers every enabled provider. A provider that
// fails to initialize is logged and skipped so the others stay usable.
func NewManagerFromConfig(logger *logrus.Logger, cfg *config.STTConfig) *ProviderManager {
	manager := NewProviderManager(logger, cfg.DefaultProvider)

	var providers []Provider
	if cfg.Whisper.Enabled {
		providers = append(providers, NewWhisperProvider(logger, &cfg.Whisper))
	}
	if cfg.OpenAI.Enabled {
		providers = append(providers, NewOpenAIProvider(logger, &cfg.OpenAI))
	}
	if cfg.Google.Enabled {
		providers = append(providers, NewGoogleProvider(logger, &cfg.Google))
	}
	if cfg.Amazon.Enabled {
		providers = append(providers, NewAmazonTranscribeProvider(logger, &cfg.Amazon))
	}
	if cfg.Mock.Enabled || cfg.DefaultProvider == "mock" {
		providers = append(providers, NewMockProvider(logger, cfg.Mock.Transcript))
	}

	for _, p := range providers {
		_ = manager.RegisterProvider(p)
	}

	if _, ok := manager.GetDefaultProvider(); !ok {
		logger.WithFields(logrus.Fields{
			"default_provider": cfg.DefaultProvider,
			"registered":       manager.Providers(),
		}).Warn("Default speech-to-text provider is not registered")
	}
	return manager
}
