// Package correlation tags HTTP requests and analysis runs with a request ID
// so log lines for one upload or submission can be grouped.
package correlation

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Header names accepted on incoming requests, in lookup order
const (
	HTTPHeader          = "X-Correlation-ID"
	HTTPRequestIDHeader = "X-Request-ID"
)

type contextKey int

const (
	correlationIDKey contextKey = iota
	clientIPKey
)

// ID represents a correlation ID
type ID string

func (id ID) String() string {
	return string(id)
}

// IsEmpty returns true if the correlation ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// New generates a new correlation ID
func New() ID {
	return ID(uuid.NewString())
}

// WithCorrelationID returns a new context with the correlation ID attached
func WithCorrelationID(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// FromContext extracts the correlation ID from a context
func FromContext(ctx context.Context) ID {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDKey).(ID); ok {
		return id
	}
	return ""
}

// WithClientIP returns a new context with the client IP attached
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext extracts the client IP from a context
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// Entry returns a log entry carrying the correlation fields found in ctx
func Entry(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	fields := logrus.Fields{}
	if id := FromContext(ctx); !id.IsEmpty() {
		fields["correlation_id"] = id.String()
	}
	if ip := ClientIPFromContext(ctx); ip != "" {
		fields["client_ip"] = ip
	}
	return logger.WithFields(fields)
}
