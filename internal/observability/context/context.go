package context

import (
	"context"
	"strings"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	reporterIDKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithReporterID tags the context with the operator entering data. The value is opaque.
func WithReporterID(ctx context.Context, reporterID string) context.Context {
	return context.WithValue(ctx, reporterIDKey, strings.TrimSpace(reporterID))
}

func ReporterIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(reporterIDKey).(string)
	return value
}
