package ratelimit

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/correlation"
	"cognivox-server/pkg/metrics"
)

// HTTPMiddleware rejects requests from clients that ran out of tokens
type HTTPMiddleware struct {
	limiter *Limiter
	rps     float64
	logger  *logrus.Logger
}

// NewHTTPMiddleware creates a middleware allowing rps sustained requests per client with burst
func NewHTTPMiddleware(logger *logrus.Logger, rps float64, burst int) *HTTPMiddleware {
	logger.WithFields(logrus.Fields{
		"rps":   rps,
		"burst": burst,
	}).Info("HTTP rate limiting enabled for analysis endpoints")

	return &HTTPMiddleware{
		limiter: NewLimiter(rps, burst),
		rps:     rps,
		logger:  logger,
	}
}

// Wrap applies the limit to next. Clients are keyed by the IP the correlation
// middleware resolved, falling back to the remote address.
func (m *HTTPMiddleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := correlation.ClientIPFromContext(r.Context())
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%.0f", m.rps))
		if !m.limiter.Allow(clientIP) {
			retry := int(math.Ceil(m.limiter.RetryAfter(clientIP).Seconds()))
			if retry < 1 {
				retry = 1
			}
			correlation.Entry(r.Context(), m.logger).WithFields(logrus.Fields{
				"path":        r.URL.Path,
				"retry_after": retry,
			}).Warn("Rate limit exceeded")
			metrics.RecordRateLimited(r.URL.Path)

			w.Header().Set("Retry-After", fmt.Sprintf("%d", retry))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "Too many requests, please retry later"})
			return
		}

		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%.0f", math.Floor(m.limiter.Tokens(clientIP))))
		next(w, r)
	}
}

// Close releases the limiter
func (m *HTTPMiddleware) Close() {
	m.limiter.Close()
}
