package stt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProvider(t *testing.T) {
	provider := NewMockProvider(quietLogger(), "I am feeling fine today")
	require.NoError(t, provider.Initialize())
	assert.Equal(t, "mock", provider.Name())

	transcript, err := provider.Transcribe(context.Background(), testPCM())
	require.NoError(t, err)
	assert.Equal(t, "I am feeling fine today", transcript.Text)
	assert.Equal(t, testPCM().Duration(), transcript.Duration)
}

func TestMockProviderCanceled(t *testing.T) {
	provider := NewMockProvider(quietLogger(), "text")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Transcribe(ctx, testPCM())
	assert.ErrorIs(t, err, context.Canceled)
}
