package http

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/analysis"
	"cognivox-server/pkg/capture"
	"cognivox-server/pkg/config"
	"cognivox-server/pkg/correlation"
	"cognivox-server/pkg/errors"
	"cognivox-server/pkg/messaging"
	"cognivox-server/pkg/metrics"
	"cognivox-server/pkg/ratelimit"
	"cognivox-server/pkg/store"
	"cognivox-server/pkg/submission"
	"cognivox-server/pkg/version"
)

// RecordingControl is the server-side capture device
type RecordingControl interface {
	Start(ctx context.Context, sessionID string) error
	Stop(sessionID string) (capture.SessionInfo, error)
	Delete(sessionID string) error
	Sessions() []capture.SessionInfo
	Claim() ([]capture.Captured, func())
	ActiveSession() string
}

// Submitter stores captured sessions
type Submitter interface {
	Submit(ctx context.Context, sessions []capture.Captured) (*submission.Report, error)
}

// ProviderLister reports the registered transcription providers
type ProviderLister interface {
	Providers() []string
	DefaultProviderName() string
}

// Deps are the components served over HTTP. Nil members disable their routes.
type Deps struct {
	Analyzer  analysis.Analyzer
	Store     store.Store
	Recorder  RecordingControl
	Submitter Submitter
	Publisher messaging.Publisher
	Providers ProviderLister
	Hub       *AnalysisHub
}

// Server exposes analysis, collections, recording control, health and metrics
type Server struct {
	config     *config.HTTPConfig
	logger     *logrus.Logger
	httpServer *http.Server
	mux        *http.ServeMux
	deps       Deps
	limiter    *ratelimit.HTTPMiddleware
	startTime  time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(logger *logrus.Logger, cfg *config.HTTPConfig, deps Deps) *Server {
	server := &Server{
		config:    cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		deps:      deps,
		startTime: time.Now(),
	}
	if cfg.RateLimitRPS > 0 {
		server.limiter = ratelimit.NewHTTPMiddleware(logger, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	server.routes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return server
}

func (s *Server) routes() {
	mux := s.mux

	mux.HandleFunc("GET /health", s.HealthHandler)
	mux.HandleFunc("GET /health/live", s.LivenessHandler)
	mux.HandleFunc("GET /health/ready", s.ReadinessHandler)
	mux.HandleFunc("GET /status", s.statusHandler)

	if s.config.EnableMetrics && metrics.IsMetricsEnabled() {
		metrics.RegisterHandler(mux)
		s.logger.Info("Prometheus metrics endpoint enabled at /metrics")
	} else {
		s.logger.Info("Metrics endpoints disabled")
	}

	if s.deps.Analyzer != nil {
		mux.HandleFunc("POST /analyze-speech", s.limited(s.analyzeSpeechHandler))
	}

	if s.deps.Store != nil {
		mux.HandleFunc("GET /api/collections/{name}", s.listCollectionHandler)
		mux.HandleFunc("POST /api/collections/{name}", s.createDocumentHandler)
		mux.HandleFunc("GET /api/dashboard", s.dashboardHandler)
		mux.HandleFunc("GET /api/comparison", s.comparisonHandler)
	}

	if s.deps.Recorder != nil {
		mux.HandleFunc("GET /api/recordings", s.listRecordingsHandler)
		mux.HandleFunc("POST /api/recordings/{id}/start", s.startRecordingHandler)
		mux.HandleFunc("POST /api/recordings/{id}/stop", s.stopRecordingHandler)
		mux.HandleFunc("POST /api/recordings/{id}/delete", s.deleteRecordingHandler)
		if s.deps.Submitter != nil {
			mux.HandleFunc("POST /api/recordings/submit", s.limited(s.submitRecordingsHandler))
		}
	}

	if s.deps.Hub != nil {
		mux.HandleFunc("GET /ws/analysis", s.deps.Hub.ServeWs)
		s.logger.Info("Analysis WebSocket endpoint registered at /ws/analysis")
	}
}

// limited applies the per-client rate limit when one is configured
func (s *Server) limited(h http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return h
	}
	return s.limiter.Wrap(h)
}

// Handler returns the root handler with correlation IDs and the Server header applied
func (s *Server) Handler() http.Handler {
	tracked := correlation.NewHTTPMiddleware(s.logger, true).Middleware(s.mux)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", version.ServerHeader())
		tracked.ServeHTTP(w, r)
	})
}

// Start serves in a goroutine. Listen errors are logged.
func (s *Server) Start() {
	s.logger.WithField("port", s.config.Port).Info("Starting HTTP server")

	go func() {
		var err error
		if s.config.TLSEnabled {
			s.httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			err = s.httpServer.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server failed")
		}
	}()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")
	if s.limiter != nil {
		s.limiter.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

// statusHandler handles the /status endpoint
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":     "ok",
		"uptime":     time.Since(s.startTime).Round(time.Second).String(),
		"version":    version.Version,
		"started_at": s.startTime.Format(time.RFC3339),
	}
	if s.deps.Analyzer != nil {
		status["analyzer"] = s.deps.Analyzer.Name()
	}
	if s.deps.Recorder != nil {
		status["active_session"] = s.deps.Recorder.ActiveSession()
	}
	if s.deps.Providers != nil {
		status["stt_providers"] = s.deps.Providers.Providers()
		status["stt_default_provider"] = s.deps.Providers.DefaultProviderName()
	}
	if s.deps.Hub != nil {
		status["websocket_clients"] = s.deps.Hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, status)
}

// ErrorResponse sends a standardized error response
func (s *Server) ErrorResponse(w http.ResponseWriter, err error) {
	errors.WriteError(w, err)
	s.logger.WithError(err).Warn("HTTP error response sent")
}

func (s *Server) broadcast(eventType string, data interface{}) {
	if s.deps.Hub != nil {
		s.deps.Hub.Broadcast(eventType, data)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
