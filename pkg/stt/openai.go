package stt

import (
	"bytes"
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/audio"
	"cognivox-server/pkg/config"
)

// OpenAIProvider transcribes audio with the OpenAI audio transcription API
type OpenAIProvider struct {
	logger *logrus.Logger
	config *config.OpenAISTTConfig
	opts   []option.RequestOption
	client *openai.Client
}

// NewOpenAIProvider creates a new OpenAI provider. Extra request options are
// appended after the configured key and base URL.
func NewOpenAIProvider(logger *logrus.Logger, cfg *config.OpenAISTTConfig, opts ...option.RequestOption) *OpenAIProvider {
	return &OpenAIProvider{
		logger: logger,
		config: cfg,
		opts:   opts,
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Initialize builds the OpenAI client
func (p *OpenAIProvider) Initialize() error {
	if p.config == nil {
		return fmt.Errorf("openai configuration is required")
	}
	if p.config.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set in the environment")
	}

	opts := []option.RequestOption{option.WithAPIKey(p.config.APIKey)}
	if p.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.config.BaseURL))
	}
	opts = append(opts, p.opts...)
	client := openai.NewClient(opts...)
	p.client = &client

	p.logger.WithField("model", p.config.Model).Info("OpenAI provider initialized successfully")
	return nil
}

// Transcribe uploads pcm as a WAV file and returns the recognised text
func (p *OpenAIProvider) Transcribe(ctx context.Context, pcm audio.PCM) (Transcript, error) {
	if p.client == nil {
		return Transcript{}, fmt.Errorf("openai provider is not initialized")
	}

	model := p.config.Model
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(pcm.WAV()), "recording.wav", "audio/wav"),
		Model: openai.AudioModel(model),
	}
	if p.config.Language != "" {
		params.Language = openai.String(p.config.Language)
	}
	if p.config.Prompt != "" {
		params.Prompt = openai.String(p.config.Prompt)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return Transcript{}, fmt.Errorf("openai transcription request failed: %w", err)
	}

	return Transcript{
		Text:     resp.Text,
		Language: p.config.Language,
		Provider: p.Name(),
		Duration: pcm.Duration(),
	}, nil
}
