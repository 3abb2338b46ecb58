package correlation

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeneratesUniqueIDs(t *testing.T) {
	seen := make(map[ID]bool)
	for i := 0; i < 500; i++ {
		id := New()
		require.False(t, id.IsEmpty())
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), ID("abc"))
	ctx = WithClientIP(ctx, "10.0.0.1")

	assert.Equal(t, ID("abc"), FromContext(ctx))
	assert.Equal(t, "10.0.0.1", ClientIPFromContext(ctx))
	assert.True(t, FromContext(context.Background()).IsEmpty())
	assert.Empty(t, ClientIPFromContext(nil))
}

func TestEntryCarriesFields(t *testing.T) {
	logger := logrus.New()
	ctx := WithCorrelationID(context.Background(), ID("req-1"))

	entry := Entry(ctx, logger)
	assert.Equal(t, "req-1", entry.Data["correlation_id"])
	assert.NotContains(t, entry.Data, "client_ip")
}

func TestMiddlewareGeneratesID(t *testing.T) {
	var seen ID
	h := NewHTTPMiddleware(nil, false).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.False(t, seen.IsEmpty())
	assert.Equal(t, seen.String(), rec.Header().Get(HTTPHeader))
	assert.Equal(t, seen.String(), rec.Header().Get(HTTPRequestIDHeader))
}

func TestMiddlewareKeepsIncomingID(t *testing.T) {
	var seen ID
	var ip string
	h := NewHTTPMiddleware(nil, false).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		ip = ClientIPFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HTTPRequestIDHeader, "given-id")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, ID("given-id"), seen)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestMiddlewareLogsByStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	h := NewHTTPMiddleware(logger, true).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/analyze-speech", nil))

	assert.Contains(t, buf.String(), `"status":500`)
	assert.Contains(t, buf.String(), "server error")
}

func TestGetClientIPFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.4:5555"
	assert.Equal(t, "192.0.2.4", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", getClientIP(req))
}
