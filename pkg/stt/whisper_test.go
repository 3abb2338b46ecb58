package stt

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cognivox-server/pkg/audio"
	"cognivox-server/pkg/config"
)

func newTestWhisper(cfg *config.WhisperSTTConfig, output string) *WhisperProvider {
	p := NewWhisperProvider(quietLogger(), cfg)
	p.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	p.runner = func(ctx context.Context, cfg *config.WhisperSTTConfig, audioPath, outputDir string) error {
		base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
		return os.WriteFile(filepath.Join(outputDir, base+"."+cfg.OutputFormat), []byte(output), 0o644)
	}
	return p
}

func whisperConfig() *config.WhisperSTTConfig {
	return &config.WhisperSTTConfig{
		Enabled:      true,
		BinaryPath:   "whisper",
		Model:        "base",
		Language:     "en",
		Task:         "transcribe",
		OutputFormat: "json",
		Timeout:      time.Minute,
	}
}

func TestWhisperProvider_Name(t *testing.T) {
	provider := NewWhisperProvider(quietLogger(), whisperConfig())
	assert.Equal(t, "whisper", provider.Name())
}

func TestWhisperProvider_Initialize(t *testing.T) {
	assert.NoError(t, NewWhisperProvider(quietLogger(), whisperConfig()).Initialize())

	cfg := whisperConfig()
	cfg.BinaryPath = ""
	assert.Error(t, NewWhisperProvider(quietLogger(), cfg).Initialize())

	disabled := &config.WhisperSTTConfig{Enabled: false}
	assert.NoError(t, NewWhisperProvider(quietLogger(), disabled).Initialize())
}

func TestWhisperProvider_TranscribeJSON(t *testing.T) {
	p := newTestWhisper(whisperConfig(), `{"text":" I am feeling fine today ","language":"en","duration":2.5,"segments":[{"avg_logprob":-0.1},{"avg_logprob":-0.3}]}`)

	transcript, err := p.Transcribe(context.Background(), testPCM())

	require.NoError(t, err)
	assert.Equal(t, "I am feeling fine today", transcript.Text)
	assert.Equal(t, "en", transcript.Language)
	assert.Equal(t, 2500*time.Millisecond, transcript.Duration)
	assert.InDelta(t, 0.8187, transcript.Confidence, 0.001)
}

func TestWhisperProvider_TranscribeText(t *testing.T) {
	cfg := whisperConfig()
	cfg.OutputFormat = "txt"
	p := newTestWhisper(cfg, "plain words\n")

	transcript, err := p.Transcribe(context.Background(), testPCM())

	require.NoError(t, err)
	assert.Equal(t, "plain words", transcript.Text)
	assert.Equal(t, testPCM().Duration(), transcript.Duration)
}

func TestWhisperProvider_WritesWAV(t *testing.T) {
	p := newTestWhisper(whisperConfig(), `{"text":"ok"}`)
	var got []byte
	inner := p.runner
	p.runner = func(ctx context.Context, cfg *config.WhisperSTTConfig, audioPath, outputDir string) error {
		data, err := os.ReadFile(audioPath)
		if err != nil {
			return err
		}
		got = data
		return inner(ctx, cfg, audioPath, outputDir)
	}

	_, err := p.Transcribe(context.Background(), testPCM())
	require.NoError(t, err)

	require.True(t, audio.IsWAV(got))
	assert.Equal(t, uint32(3200), binary.LittleEndian.Uint32(got[40:44]))
	decoded, info, err := audio.DecodeWAV(got)
	require.NoError(t, err)
	assert.Equal(t, 16000, info.SampleRate)
	assert.Len(t, decoded.Samples, 1600)
}

func TestWhisperProvider_ReadyCheckRunsOnce(t *testing.T) {
	p := newTestWhisper(whisperConfig(), `{"text":"ok"}`)
	var lookups atomic.Int32
	p.lookPath = func(name string) (string, error) {
		lookups.Add(1)
		return "", errors.New("not found")
	}

	_, err := p.Transcribe(context.Background(), testPCM())
	assert.ErrorContains(t, err, "not found")
	_, err = p.Transcribe(context.Background(), testPCM())
	assert.ErrorContains(t, err, "not found")

	assert.Equal(t, int32(1), lookups.Load())
}

func TestWhisperProvider_MissingModel(t *testing.T) {
	cfg := whisperConfig()
	cfg.ModelDir = t.TempDir()
	p := newTestWhisper(cfg, `{"text":"ok"}`)

	_, err := p.Transcribe(context.Background(), testPCM())
	assert.ErrorContains(t, err, "whisper model base unavailable")

	require.NoError(t, os.WriteFile(filepath.Join(cfg.ModelDir, "base.pt"), []byte("x"), 0o644))
	_, err = p.Transcribe(context.Background(), testPCM())
	assert.Error(t, err, "readiness is decided once per process")
}

func TestWhisperProvider_RunnerFailure(t *testing.T) {
	p := newTestWhisper(whisperConfig(), "")
	p.runner = func(ctx context.Context, cfg *config.WhisperSTTConfig, audioPath, outputDir string) error {
		return errors.New("whisper command failed: exit status 1")
	}

	_, err := p.Transcribe(context.Background(), testPCM())
	assert.ErrorContains(t, err, "exit status 1")
}

func TestWhisperProvider_Disabled(t *testing.T) {
	cfg := whisperConfig()
	cfg.Enabled = false
	p := newTestWhisper(cfg, `{"text":"ok"}`)

	_, err := p.Transcribe(context.Background(), testPCM())
	assert.ErrorIs(t, err, ErrProviderDisabled)
}

func TestWhisperProvider_BadJSON(t *testing.T) {
	p := newTestWhisper(whisperConfig(), "{not json")

	_, err := p.Transcribe(context.Background(), testPCM())
	assert.ErrorContains(t, err, "failed to parse whisper JSON output")
}
