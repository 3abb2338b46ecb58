package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/audio"
	"cognivox-server/pkg/config"
)

type whisperRunner func(ctx context.Context, cfg *config.WhisperSTTConfig, audioPath, outputDir string) error

// WhisperProvider uses the open-source Whisper CLI to transcribe audio.
// BinaryPath can point to any executable that accepts Whisper CLI arguments.
type WhisperProvider struct {
	logger    *logrus.Logger
	config    *config.WhisperSTTConfig
	runner    whisperRunner
	lookPath  func(string) (string, error)
	semaphore chan struct{}

	// model checks run on first use and are never repeated
	readyOnce sync.Once
	readyErr  error
}

// NewWhisperProvider constructs a Whisper provider backed by the CLI referenced in config.
func NewWhisperProvider(logger *logrus.Logger, cfg *config.WhisperSTTConfig) *WhisperProvider {
	var semaphore chan struct{}
	maxConcurrent := cfg.MaxConcurrentCalls

	if maxConcurrent == -1 {
		// Auto mode: use number of CPU cores
		maxConcurrent = runtime.NumCPU()
		logger.WithField("max_concurrent", maxConcurrent).Debug("Whisper rate limiting set to auto (CPU cores)")
	} else if maxConcurrent > 0 {
		logger.WithField("max_concurrent", maxConcurrent).Debug("Whisper rate limiting enabled")
	}

	if maxConcurrent > 0 {
		semaphore = make(chan struct{}, maxConcurrent)
	}

	return &WhisperProvider{
		logger:    logger,
		config:    cfg,
		runner:    defaultWhisperRunner,
		lookPath:  exec.LookPath,
		semaphore: semaphore,
	}
}

// Name returns the provider identifier.
func (p *WhisperProvider) Name() string {
	return "whisper"
}

// Initialize validates the configuration before the provider is registered.
// The binary and model are checked lazily on the first transcription.
func (p *WhisperProvider) Initialize() error {
	if p.config == nil {
		return fmt.Errorf("whisper configuration is required")
	}

	if !p.config.Enabled {
		p.logger.Info("Whisper STT disabled; skipping initialization")
		return nil
	}

	if p.config.BinaryPath == "" {
		return fmt.Errorf("WHISPER_BINARY_PATH must be set when Whisper STT is enabled")
	}

	p.logger.WithFields(logrus.Fields{
		"binary":       p.config.BinaryPath,
		"model":        p.config.Model,
		"task":         p.config.Task,
		"outputFormat": p.config.OutputFormat,
	}).Info("Whisper provider initialized")
	return nil
}

func (p *WhisperProvider) ensureReady() error {
	p.readyOnce.Do(func() {
		binaryPath, err := p.lookPath(p.config.BinaryPath)
		if err != nil {
			p.readyErr = fmt.Errorf("whisper binary %q not found: %w", p.config.BinaryPath, err)
			return
		}

		if p.config.ModelDir != "" {
			modelFile := filepath.Join(p.config.ModelDir, p.config.Model+".pt")
			if _, err := os.Stat(modelFile); err != nil {
				p.readyErr = fmt.Errorf("whisper model %s unavailable: %w", p.config.Model, err)
				return
			}
		}

		p.logger.WithFields(logrus.Fields{
			"binary": binaryPath,
			"model":  p.config.Model,
		}).Info("Whisper model ready")
	})
	return p.readyErr
}

// Transcribe writes pcm to a temporary WAV file and invokes the Whisper CLI.
func (p *WhisperProvider) Transcribe(ctx context.Context, pcm audio.PCM) (Transcript, error) {
	if !p.config.Enabled {
		return Transcript{}, ErrProviderDisabled
	}

	if err := p.ensureReady(); err != nil {
		return Transcript{}, err
	}

	if p.semaphore != nil {
		select {
		case p.semaphore <- struct{}{}:
			defer func() { <-p.semaphore }()
		case <-ctx.Done():
			return Transcript{}, ctx.Err()
		}
	}

	audioFile, err := os.CreateTemp("", "whisper-audio-*.wav")
	if err != nil {
		return Transcript{}, fmt.Errorf("failed to create temporary audio file: %w", err)
	}
	defer os.Remove(audioFile.Name())

	if err := writeWAV(audioFile, pcm); err != nil {
		audioFile.Close()
		return Transcript{}, fmt.Errorf("failed to buffer audio for whisper: %w", err)
	}
	if err := audioFile.Close(); err != nil {
		return Transcript{}, fmt.Errorf("failed to close temp audio file: %w", err)
	}

	outputDir, err := os.MkdirTemp("", "whisper-output-*")
	if err != nil {
		return Transcript{}, fmt.Errorf("failed to create whisper output directory: %w", err)
	}
	defer os.RemoveAll(outputDir)

	runCtx := ctx
	cancel := func() {}
	if p.config.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.config.Timeout)
	}
	err = p.runner(runCtx, p.config, audioFile.Name(), outputDir)
	cancel()
	if err != nil {
		return Transcript{}, err
	}

	transcript, err := p.extractTranscription(outputDir, audioFile.Name())
	if err != nil {
		return Transcript{}, err
	}
	if transcript.Duration == 0 {
		transcript.Duration = pcm.Duration()
	}

	p.logger.WithFields(logrus.Fields{
		"provider": p.Name(),
		"model":    p.config.Model,
		"language": transcript.Language,
	}).Debug("Whisper transcription completed")

	return transcript, nil
}

func (p *WhisperProvider) extractTranscription(outputDir, audioPath string) (Transcript, error) {
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	format := strings.ToLower(p.config.OutputFormat)
	if format == "" {
		format = "json"
	}

	target := filepath.Join(outputDir, fmt.Sprintf("%s.%s", base, format))
	data, err := os.ReadFile(target)
	if err != nil {
		return Transcript{}, fmt.Errorf("failed to read whisper output (%s): %w", target, err)
	}

	result := Transcript{Provider: p.Name(), Language: p.config.Language}
	switch format {
	case "json", "verbose_json":
		var payload struct {
			Text     string  `json:"text"`
			Language string  `json:"language"`
			Duration float64 `json:"duration"`
			Segments []struct {
				AvgLogprob float64 `json:"avg_logprob"`
			} `json:"segments"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return Transcript{}, fmt.Errorf("failed to parse whisper JSON output: %w", err)
		}
		result.Text = strings.TrimSpace(payload.Text)
		if payload.Language != "" {
			result.Language = payload.Language
		}
		if payload.Duration > 0 {
			result.Duration = time.Duration(payload.Duration * float64(time.Second))
		}
		if len(payload.Segments) > 0 {
			sum := 0.0
			for _, seg := range payload.Segments {
				sum += seg.AvgLogprob
			}
			result.Confidence = math.Min(1, math.Exp(sum/float64(len(payload.Segments))))
		}
	default:
		result.Text = strings.TrimSpace(string(data))
	}
	return result, nil
}

func defaultWhisperRunner(ctx context.Context, cfg *config.WhisperSTTConfig, audioPath, outputDir string) error {
	args := []string{audioPath, "--model", cfg.Model, "--output_dir", outputDir, "--output_format", cfg.OutputFormat}

	if cfg.ModelDir != "" {
		args = append(args, "--model_dir", cfg.ModelDir)
	}
	if cfg.Task != "" {
		args = append(args, "--task", cfg.Task)
	}
	if cfg.Language != "" {
		args = append(args, "--language", cfg.Language)
	}
	if strings.TrimSpace(cfg.ExtraArgs) != "" {
		args = append(args, strings.Fields(cfg.ExtraArgs)...)
	}

	cmd := exec.CommandContext(ctx, cfg.BinaryPath, args...)
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("whisper command failed: %w: %s", err, combined.String())
	}
	return nil
}

// writeWAV streams pcm into f as mono 16-bit WAV
func writeWAV(f io.WriteSeeker, pcm audio.PCM) error {
	w, err := audio.NewWAVWriter(f, pcm.SampleRate, 1)
	if err != nil {
		return err
	}
	if _, err := w.Write(pcm.S16LE()); err != nil {
		return err
	}
	return w.Finalize()
}
