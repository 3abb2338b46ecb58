package stt

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cognivox-server/pkg/audio"
	"cognivox-server/pkg/config"
	cerrors "cognivox-server/pkg/errors"
	"cognivox-server/pkg/metrics"
)

func init() {
	metrics.EnableMetrics(false)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testPCM() audio.PCM {
	return audio.PCM{Samples: make([]float64, 1600), SampleRate: 16000}
}

// MockSttProvider implements Provider interface for testing
type MockSttProvider struct {
	mock.Mock
}

func (m *MockSttProvider) Initialize() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSttProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockSttProvider) Transcribe(ctx context.Context, pcm audio.PCM) (Transcript, error) {
	args := m.Called(ctx, pcm)
	return args.Get(0).(Transcript), args.Error(1)
}

func TestNewProviderManager(t *testing.T) {
	manager := NewProviderManager(quietLogger(), "test")

	assert.NotNil(t, manager, "ProviderManager should not be nil")
	assert.Equal(t, "test", manager.DefaultProviderName())
	assert.Empty(t, manager.Providers(), "Providers map should be initialized and empty")
}

func TestRegisterProvider(t *testing.T) {
	manager := NewProviderManager(quietLogger(), "test")

	provider := new(MockSttProvider)
	provider.On("Initialize").Return(nil)
	provider.On("Name").Return("test")

	err := manager.RegisterProvider(provider)

	assert.NoError(t, err, "RegisterProvider should not return an error")
	assert.Equal(t, []string{"test"}, manager.Providers())
	provider.AssertExpectations(t)
}

func TestRegisterProviderInitError(t *testing.T) {
	manager := NewProviderManager(quietLogger(), "test")

	provider := new(MockSttProvider)
	provider.On("Name").Return("test")
	provider.On("Initialize").Return(errors.New("initialization error"))

	err := manager.RegisterProvider(provider)

	assert.ErrorIs(t, err, ErrInitializationFailed)
	assert.Empty(t, manager.Providers(), "Failed provider must not be registered")
}

func TestTranscribeFallsBackToDefault(t *testing.T) {
	manager := NewProviderManager(quietLogger(), "default")

	provider := new(MockSttProvider)
	provider.On("Initialize").Return(nil)
	provider.On("Name").Return("default")
	provider.On("Transcribe", mock.Anything, mock.Anything).Return(Transcript{Text: "  hello there  "}, nil)
	require.NoError(t, manager.RegisterProvider(provider))

	transcript, err := manager.Transcribe(context.Background(), "unknown", testPCM())

	require.NoError(t, err)
	assert.Equal(t, "hello there", transcript.Text)
	assert.Equal(t, "default", transcript.Provider)
	provider.AssertExpectations(t)
}

func TestTranscribeNoProvider(t *testing.T) {
	manager := NewProviderManager(quietLogger(), "missing")

	_, err := manager.Transcribe(context.Background(), "", testPCM())

	assert.ErrorIs(t, err, ErrNoProviderAvailable)
}

func TestTranscribeEmptyAudio(t *testing.T) {
	manager := NewProviderManager(quietLogger(), "mock")
	require.NoError(t, manager.RegisterProvider(NewMockProvider(quietLogger(), "words")))

	_, err := manager.Transcribe(context.Background(), "mock", audio.PCM{SampleRate: 16000})

	assert.ErrorIs(t, err, cerrors.ErrTranscriptionFailed)
}

func TestTranscribeEmptyTextIsNoSpeech(t *testing.T) {
	manager := NewProviderManager(quietLogger(), "mock")
	require.NoError(t, manager.RegisterProvider(NewMockProvider(quietLogger(), "   ")))

	_, err := manager.Transcribe(context.Background(), "mock", testPCM())

	assert.ErrorIs(t, err, cerrors.ErrNoSpeech)
	assert.ErrorIs(t, err, cerrors.ErrTranscriptionFailed)
}

func TestTranscribeWrapsProviderError(t *testing.T) {
	manager := NewProviderManager(quietLogger(), "broken")

	provider := new(MockSttProvider)
	provider.On("Initialize").Return(nil)
	provider.On("Name").Return("broken")
	provider.On("Transcribe", mock.Anything, mock.Anything).Return(Transcript{}, errors.New("exit status 2"))
	require.NoError(t, manager.RegisterProvider(provider))

	_, err := manager.Transcribe(context.Background(), "broken", testPCM())

	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrTranscriptionFailed)
	assert.Contains(t, err.Error(), "exit status 2")
	assert.Equal(t, "TRANSCRIPTION_FAILED", cerrors.GetErrorCode(err))
}

func TestNewManagerFromConfig(t *testing.T) {
	cfg := &config.STTConfig{
		DefaultProvider: "mock",
		Whisper:         config.WhisperSTTConfig{Enabled: true, BinaryPath: "whisper", Model: "base"},
		OpenAI:          config.OpenAISTTConfig{Enabled: true},
		Mock:            config.MockSTTConfig{Transcript: "I am feeling fine today"},
	}

	manager := NewManagerFromConfig(quietLogger(), cfg)

	// openai has no key and is skipped
	assert.Equal(t, []string{"mock", "whisper"}, manager.Providers())

	transcript, err := manager.Transcribe(context.Background(), "", testPCM())
	require.NoError(t, err)
	assert.Equal(t, "I am feeling fine today", transcript.Text)
}
