package util

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// GracefulShutdown stops registered resources in priority order under one deadline
type GracefulShutdown struct {
	resources []ShutdownResource
	mu        sync.Mutex
	logger    *logrus.Logger
	timeout   time.Duration
}

// ShutdownResource represents a resource that needs graceful shutdown
type ShutdownResource struct {
	Name     string
	Shutdown func(context.Context) error
	Priority int // lower numbers shut down first
}

// ShutdownError reports a resource that failed, timed out or panicked while stopping
type ShutdownError struct {
	Resource string
	Err      error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("shutdown error for %s: %v", e.Resource, e.Err)
}

func (e *ShutdownError) Unwrap() error {
	return e.Err
}

// NewGracefulShutdown creates a new graceful shutdown manager
func NewGracefulShutdown(logger *logrus.Logger, timeout time.Duration) *GracefulShutdown {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GracefulShutdown{logger: logger, timeout: timeout}
}

// Register adds a resource to be shut down
func (gs *GracefulShutdown) Register(resource ShutdownResource) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	gs.resources = append(gs.resources, resource)
	sort.SliceStable(gs.resources, func(i, j int) bool {
		return gs.resources[i].Priority < gs.resources[j].Priority
	})

	gs.logger.WithFields(logrus.Fields{
		"resource": resource.Name,
		"priority": resource.Priority,
	}).Debug("Registered resource for graceful shutdown")
}

// RegisterCloser registers an io.Closer for shutdown
func (gs *GracefulShutdown) RegisterCloser(name string, closer io.Closer, priority int) {
	gs.Register(ShutdownResource{
		Name:     name,
		Priority: priority,
		Shutdown: func(context.Context) error { return closer.Close() },
	})
}

// RegisterFunc registers a shutdown step that cannot fail
func (gs *GracefulShutdown) RegisterFunc(name string, fn func(), priority int) {
	gs.Register(ShutdownResource{
		Name:     name,
		Priority: priority,
		Shutdown: func(context.Context) error { fn(); return nil },
	})
}

// Shutdown stops every resource in turn. A resource that overruns the deadline
// is abandoned and later resources still get their turn.
func (gs *GracefulShutdown) Shutdown(ctx context.Context) error {
	gs.mu.Lock()
	resources := make([]ShutdownResource, len(gs.resources))
	copy(resources, gs.resources)
	gs.mu.Unlock()

	gs.logger.WithField("resource_count", len(resources)).Info("Starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, gs.timeout)
	defer cancel()

	var errs []error
	for _, res := range resources {
		if err := gs.stop(shutdownCtx, res); err != nil {
			gs.logger.WithError(err).WithField("resource", res.Name).Error("Error shutting down resource")
			errs = append(errs, &ShutdownError{Resource: res.Name, Err: err})
			continue
		}
		gs.logger.WithField("resource", res.Name).Debug("Resource shut down successfully")
	}

	if len(errs) > 0 {
		return goerrors.Join(errs...)
	}
	gs.logger.Info("Graceful shutdown completed successfully")
	return nil
}

func (gs *GracefulShutdown) stop(ctx context.Context, res ShutdownResource) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- res.Shutdown(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
