package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"cognivox-server/pkg/audio"
	"cognivox-server/pkg/config"
)

// speechRecognizer is the subset of the Cloud Speech client used here
type speechRecognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// GoogleProvider transcribes whole recordings with Google Speech-to-Text
type GoogleProvider struct {
	logger *logrus.Logger
	client speechRecognizer
	config *config.GoogleSTTConfig
}

// NewGoogleProvider creates a new Google Speech-to-Text provider
func NewGoogleProvider(logger *logrus.Logger, cfg *config.GoogleSTTConfig) *GoogleProvider {
	return &GoogleProvider{
		logger: logger,
		config: cfg,
	}
}

// Name returns the provider name
func (p *GoogleProvider) Name() string {
	return "google"
}

// Initialize initializes the Google Speech-to-Text client
func (p *GoogleProvider) Initialize() error {
	if p.config == nil {
		return fmt.Errorf("Google STT configuration is required")
	}

	if !p.config.Enabled {
		p.logger.Info("Google STT is disabled, skipping initialization")
		return nil
	}
	if p.client != nil {
		return nil
	}

	var clientOptions []option.ClientOption

	// Use API key if provided, otherwise use credentials file
	if p.config.APIKey != "" {
		clientOptions = append(clientOptions, option.WithAPIKey(p.config.APIKey))
		p.logger.Debug("Using Google STT API key authentication")
	} else if p.config.CredentialsFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(p.config.CredentialsFile))
		p.logger.WithField("credentials_file", p.config.CredentialsFile).Debug("Using Google STT credentials file")
	} else {
		return fmt.Errorf("Google STT requires either API key or credentials file")
	}

	client, err := speech.NewClient(context.Background(), clientOptions...)
	if err != nil {
		p.logger.WithError(err).Error("Failed to create Google Speech client")
		return fmt.Errorf("failed to create Google Speech client: %w", err)
	}
	p.client = client

	p.logger.WithFields(logrus.Fields{
		"language":          p.config.Language,
		"model":             p.config.Model,
		"enhanced_models":   p.config.EnhancedModels,
		"auto_punctuation":  p.config.EnablePunctuation,
		"word_time_offsets": p.config.EnableWordTimeOffs,
	}).Info("Google Speech-to-Text client initialized successfully")
	return nil
}

func (p *GoogleProvider) recognitionConfig(sampleRate int) *speechpb.RecognitionConfig {
	cfg := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            int32(sampleRate),
		AudioChannelCount:          1,
		LanguageCode:               p.config.Language,
		EnableAutomaticPunctuation: p.config.EnablePunctuation,
		EnableWordTimeOffsets:      p.config.EnableWordTimeOffs,
		MaxAlternatives:            int32(p.config.MaxAlternatives),
		ProfanityFilter:            p.config.ProfanityFilter,
		UseEnhanced:                p.config.EnhancedModels,
	}
	if p.config.Model != "" {
		cfg.Model = p.config.Model
	}
	return cfg
}

// Transcribe sends pcm as LINEAR16 in a single Recognize request and joins
// the top alternative of every result.
func (p *GoogleProvider) Transcribe(ctx context.Context, pcm audio.PCM) (Transcript, error) {
	if p.client == nil {
		return Transcript{}, ErrInitializationFailed
	}

	resp, err := p.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: p.recognitionConfig(pcm.SampleRate),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm.S16LE()},
		},
	})
	if err != nil {
		return Transcript{}, fmt.Errorf("google recognize failed: %w", err)
	}

	var parts []string
	var confidence float32
	counted := 0
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		parts = append(parts, strings.TrimSpace(alts[0].GetTranscript()))
		confidence += alts[0].GetConfidence()
		counted++
	}

	transcript := Transcript{
		Text:     strings.Join(parts, " "),
		Language: p.config.Language,
		Provider: p.Name(),
		Duration: pcm.Duration(),
	}
	if counted > 0 {
		transcript.Confidence = float64(confidence) / float64(counted)
	}
	return transcript, nil
}

// Close releases the underlying client
func (p *GoogleProvider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
