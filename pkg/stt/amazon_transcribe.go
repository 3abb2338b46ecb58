package stt

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"
	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/audio"
	"cognivox-server/pkg/config"
)

// amazonChunkBytes is 100ms of 16 kHz mono s16le
const amazonChunkBytes = 3200

// AmazonTranscribeProvider transcribes recordings with Amazon Transcribe Streaming
type AmazonTranscribeProvider struct {
	logger *logrus.Logger
	client *transcribestreaming.Client
	config *config.AmazonSTTConfig
}

// NewAmazonTranscribeProvider creates a new Amazon Transcribe provider
func NewAmazonTranscribeProvider(logger *logrus.Logger, cfg *config.AmazonSTTConfig) *AmazonTranscribeProvider {
	return &AmazonTranscribeProvider{
		logger: logger,
		config: cfg,
	}
}

// Name returns the provider name
func (p *AmazonTranscribeProvider) Name() string {
	return "amazon-transcribe"
}

// Initialize initializes the Amazon Transcribe client. Static keys are used
// when configured, otherwise the default AWS credential chain applies.
func (p *AmazonTranscribeProvider) Initialize() error {
	if p.config == nil {
		return fmt.Errorf("Amazon STT configuration is required")
	}

	if !p.config.Enabled {
		p.logger.Info("Amazon STT is disabled, skipping initialization")
		return nil
	}

	region := p.config.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithRetryMaxAttempts(3),
		awsconfig.WithRetryMode(aws.RetryModeStandard),
	}
	if p.config.AccessKeyID != "" && p.config.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     p.config.AccessKeyID,
				SecretAccessKey: p.config.SecretAccessKey,
			}, nil
		})))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		p.logger.WithError(err).Error("Failed to load AWS configuration")
		return fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	p.client = transcribestreaming.NewFromConfig(cfg)

	p.logger.WithFields(logrus.Fields{
		"region":     region,
		"language":   p.config.Language,
		"vocabulary": p.config.VocabularyName,
	}).Info("Amazon Transcribe provider initialized successfully")

	return nil
}

// Transcribe streams pcm to Amazon Transcribe in 100ms chunks and collects
// the final results.
func (p *AmazonTranscribeProvider) Transcribe(ctx context.Context, pcm audio.PCM) (Transcript, error) {
	if p.client == nil {
		return Transcript{}, ErrInitializationFailed
	}

	input := &transcribestreaming.StartStreamTranscriptionInput{
		LanguageCode:         types.LanguageCode(p.config.Language),
		MediaSampleRateHertz: aws.Int32(int32(pcm.SampleRate)),
		MediaEncoding:        types.MediaEncodingPcm,
	}
	if p.config.VocabularyName != "" {
		input.VocabularyName = aws.String(p.config.VocabularyName)
	}

	resp, err := p.client.StartStreamTranscription(ctx, input)
	if err != nil {
		return Transcript{}, fmt.Errorf("failed to start Amazon Transcribe stream: %w", err)
	}
	stream := resp.GetStream()
	defer stream.Close()

	sendErr := make(chan error, 1)
	go func() {
		defer close(sendErr)
		data := pcm.S16LE()
		for offset := 0; offset < len(data); offset += amazonChunkBytes {
			end := offset + amazonChunkBytes
			if end > len(data) {
				end = len(data)
			}
			event := &types.AudioStreamMemberAudioEvent{
				Value: types.AudioEvent{AudioChunk: data[offset:end]},
			}
			if err := stream.Send(ctx, event); err != nil {
				sendErr <- fmt.Errorf("failed to send audio to Amazon Transcribe: %w", err)
				return
			}
		}
		// an empty event signals end of audio
		if err := stream.Send(ctx, &types.AudioStreamMemberAudioEvent{Value: types.AudioEvent{AudioChunk: []byte{}}}); err != nil {
			sendErr <- err
		}
	}()

	text := collectFinalResults(stream.Events())

	if err := <-sendErr; err != nil {
		return Transcript{}, err
	}
	if err := stream.Err(); err != nil {
		return Transcript{}, fmt.Errorf("Amazon Transcribe stream error: %w", err)
	}

	return Transcript{
		Text:     text,
		Language: p.config.Language,
		Provider: p.Name(),
		Duration: pcm.Duration(),
	}, nil
}

// collectFinalResults drains events and joins every non-partial top alternative
func collectFinalResults(events <-chan types.TranscriptResultStream) string {
	var parts []string
	for event := range events {
		v, ok := event.(*types.TranscriptResultStreamMemberTranscriptEvent)
		if !ok || v.Value.Transcript == nil {
			continue
		}
		for _, result := range v.Value.Transcript.Results {
			if result.IsPartial || len(result.Alternatives) == 0 {
				continue
			}
			if t := aws.ToString(result.Alternatives[0].Transcript); strings.TrimSpace(t) != "" {
				parts = append(parts, strings.TrimSpace(t))
			}
		}
	}
	return strings.Join(parts, " ")
}
