package http

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/store"
	"cognivox-server/pkg/version"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version"`
	Checks    map[string]CheckResult `json:"checks"`
	System    SystemInfo             `json:"system"`
}

// CheckResult represents an individual health check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SystemInfo contains system resource information
type SystemInfo struct {
	GoRoutines       int    `json:"goroutines"`
	MemoryMB         uint64 `json:"memory_mb"`
	CPUCount         int    `json:"cpu_count"`
	ActiveSession    string `json:"active_session,omitempty"`
	WebsocketClients int    `json:"websocket_clients"`
}

const storePingTimeout = 2 * time.Second

// HealthHandler handles health check requests
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Version:   version.Version,
		Checks:    make(map[string]CheckResult),
	}

	// The store is essential: without it nothing can be submitted or read back
	if err := s.pingStore(r.Context()); err != nil {
		health.Checks["store"] = CheckResult{Status: "unhealthy", Message: err.Error()}
		health.Status = "unhealthy"
	} else {
		health.Checks["store"] = CheckResult{Status: "healthy", Message: "Collection store operational"}
	}

	if s.deps.Analyzer != nil {
		health.Checks["analyzer"] = CheckResult{
			Status:  "healthy",
			Message: fmt.Sprintf("%s analyzer configured", s.deps.Analyzer.Name()),
		}
	} else {
		health.Checks["analyzer"] = CheckResult{Status: "degraded", Message: "No analyzer configured"}
		s.degrade(&health)
	}

	if s.deps.Providers != nil {
		if providers := s.deps.Providers.Providers(); len(providers) > 0 {
			health.Checks["stt"] = CheckResult{
				Status:  "healthy",
				Message: fmt.Sprintf("%d providers, default %s", len(providers), s.deps.Providers.DefaultProviderName()),
			}
		} else {
			health.Checks["stt"] = CheckResult{Status: "degraded", Message: "No STT providers registered"}
			s.degrade(&health)
		}
	}

	if s.deps.Publisher != nil {
		if s.deps.Publisher.IsConnected() {
			health.Checks["amqp"] = CheckResult{Status: "healthy", Message: "AMQP connected"}
		} else {
			health.Checks["amqp"] = CheckResult{Status: "degraded", Message: "AMQP disconnected"}
			s.degrade(&health)
		}
	}

	if s.deps.Hub != nil && s.deps.Hub.IsRunning() {
		health.Checks["websocket"] = CheckResult{Status: "healthy", Message: "WebSocket hub is running"}
		health.System.WebsocketClients = s.deps.Hub.ClientCount()
	} else if s.deps.Hub != nil {
		health.Checks["websocket"] = CheckResult{Status: "degraded", Message: "WebSocket hub not running"}
		s.degrade(&health)
	}

	if s.deps.Recorder != nil {
		health.System.ActiveSession = s.deps.Recorder.ActiveSession()
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	health.System.GoRoutines = runtime.NumGoroutine()
	health.System.MemoryMB = m.Alloc / 1024 / 1024
	health.System.CPUCount = runtime.NumCPU()

	if r.URL.Query().Get("detailed") == "true" {
		s.logger.WithFields(logrus.Fields{
			"status":   health.Status,
			"checks":   health.Checks,
			"duration": time.Since(startTime),
		}).Debug("Health check performed")
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

// LivenessHandler handles kubernetes liveness probe
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// ReadinessHandler reports ready once the store answers and an analyzer is configured
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyzer == nil || s.pingStore(r.Context()) != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (s *Server) pingStore(ctx context.Context) error {
	if s.deps.Store == nil {
		return fmt.Errorf("store not initialized")
	}
	p, ok := s.deps.Store.(store.Pinger)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, storePingTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}

func (s *Server) degrade(h *HealthStatus) {
	if h.Status == "healthy" {
		h.Status = "degraded"
	}
}
