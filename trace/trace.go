// Package trace carries request identifiers through contexts so that every
// renderer request issued for one command or seed run can be correlated.
package trace

import (
	"context"
	"encoding/hex"

	"github.com/google/uuid"
)

type contextKey string

const (
	traceIDKey     contextKey = "trace_id"
	traceParentKey contextKey = "traceparent"

	// HeaderXRequestID is the header used for request ID propagation.
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header.
	HeaderTraceParent = "traceparent"
)

// WithTraceID stores traceID in ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// IDFromContext returns the trace ID stored in ctx, if any.
func IDFromContext(ctx context.Context) (string, bool) {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok && traceID != "" {
		return traceID, true
	}
	return "", false
}

// EnsureTraceID returns the trace ID from ctx or a new random UUID.
func EnsureTraceID(ctx context.Context) string {
	if traceID, ok := IDFromContext(ctx); ok {
		return traceID
	}
	return uuid.NewString()
}

// Ensure returns ctx carrying a trace ID, generating one when absent, along with the ID.
func Ensure(ctx context.Context) (context.Context, string) {
	if traceID, ok := IDFromContext(ctx); ok {
		return ctx, traceID
	}
	traceID := uuid.NewString()
	return WithTraceID(ctx, traceID), traceID
}

// WithTraceParent stores a W3C traceparent value in ctx.
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return context.WithValue(ctx, traceParentKey, traceParent)
}

// ParentFromContext returns the traceparent stored in ctx, if any.
func ParentFromContext(ctx context.Context) (string, bool) {
	if tp, ok := ctx.Value(traceParentKey).(string); ok && tp != "" {
		return tp, true
	}
	return "", false
}

// GenerateTraceParent creates a sampled W3C traceparent value,
// "00-<32 hex trace id>-<16 hex span id>-01".
func GenerateTraceParent() string {
	traceID := uuid.New()
	spanID := uuid.New()
	return "00-" + hex.EncodeToString(traceID[:]) + "-" + hex.EncodeToString(spanID[:8]) + "-01"
}
