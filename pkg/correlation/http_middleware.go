package correlation

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPMiddleware adds correlation ID tracking and access logging to HTTP requests
type HTTPMiddleware struct {
	logger      *logrus.Logger
	logRequests bool
}

// NewHTTPMiddleware creates a new HTTP correlation middleware
func NewHTTPMiddleware(logger *logrus.Logger, logRequests bool) *HTTPMiddleware {
	return &HTTPMiddleware{logger: logger, logRequests: logRequests}
}

// Middleware wraps next. A missing ID is generated and echoed in the response headers.
func (m *HTTPMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		id := extractCorrelationID(r)
		if id.IsEmpty() {
			id = New()
		}
		clientIP := getClientIP(r)

		ctx := WithCorrelationID(r.Context(), id)
		ctx = WithClientIP(ctx, clientIP)
		r = r.WithContext(ctx)

		w.Header().Set(HTTPHeader, id.String())
		w.Header().Set(HTTPRequestIDHeader, id.String())

		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		if !m.logRequests || m.logger == nil {
			return
		}
		fields := logrus.Fields{
			"correlation_id": id.String(),
			"method":         r.Method,
			"path":           r.URL.Path,
			"status":         wrapper.statusCode,
			"duration_ms":    time.Since(startTime).Milliseconds(),
			"client_ip":      clientIP,
		}
		switch {
		case wrapper.statusCode >= 500:
			m.logger.WithFields(fields).Error("HTTP request completed with server error")
		case wrapper.statusCode >= 400:
			m.logger.WithFields(fields).Warn("HTTP request completed with client error")
		default:
			m.logger.WithFields(fields).Debug("HTTP request completed")
		}
	})
}

func extractCorrelationID(r *http.Request) ID {
	if id := r.Header.Get(HTTPHeader); id != "" {
		return ID(id)
	}
	return ID(r.Header.Get(HTTPRequestIDHeader))
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); net.ParseIP(xri) != nil {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// responseWrapper captures the status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (w *responseWrapper) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWrapper) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter
func (w *responseWrapper) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack lets websocket upgrades through the wrapper
func (w *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}
