package util

import (
	"context"
	goerrors "errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestShutdownRunsInPriorityOrder(t *testing.T) {
	gs := NewGracefulShutdown(quietLogger(), time.Second)
	var order []string

	gs.RegisterFunc("store", func() { order = append(order, "store") }, 30)
	gs.RegisterFunc("http", func() { order = append(order, "http") }, 10)
	gs.RegisterCloser("recorder", closerFunc(func() error {
		order = append(order, "recorder")
		return nil
	}), 20)

	require.NoError(t, gs.Shutdown(context.Background()))
	assert.Equal(t, []string{"http", "recorder", "store"}, order)
}

func TestShutdownCollectsErrors(t *testing.T) {
	gs := NewGracefulShutdown(quietLogger(), time.Second)
	boom := goerrors.New("boom")
	ran := false

	gs.RegisterCloser("bad", closerFunc(func() error { return boom }), 1)
	gs.RegisterFunc("panics", func() { panic("oops") }, 2)
	gs.RegisterFunc("good", func() { ran = true }, 3)

	err := gs.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "panics")
	assert.True(t, ran)

	var se *ShutdownError
	require.True(t, goerrors.As(err, &se))
	assert.Equal(t, "bad", se.Resource)
}

func TestShutdownTimeout(t *testing.T) {
	gs := NewGracefulShutdown(quietLogger(), 20*time.Millisecond)
	gs.Register(ShutdownResource{
		Name: "stuck",
		Shutdown: func(ctx context.Context) error {
			time.Sleep(time.Second)
			return nil
		},
	})

	start := time.Now()
	err := gs.Shutdown(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDefaultTimeout(t *testing.T) {
	gs := NewGracefulShutdown(quietLogger(), 0)
	assert.Equal(t, 30*time.Second, gs.timeout)
}
