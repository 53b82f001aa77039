package shared

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ContextKey is the type of context keys owned by this package
type ContextKey string

const (
	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of random bytes in a generated trace ID,
	// which is rendered as twice as many hex digits
	TraceIDLength = 16

	// TraceIDHeader carries the trace ID back to the client
	TraceIDHeader = "X-Trace-ID"
)

// SetTraceID adds a trace ID to the context. An existing non-empty id, such
// as the one assigned by chi's RequestID middleware, is reused so logs and
// responses agree.
func SetTraceID(ctx context.Context, existing string) context.Context {
	traceID := existing
	if traceID == "" {
		traceID = generateTraceID()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// generateTraceID returns the 32 hex digits of a random UUID.
func generateTraceID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		slog.Warn("random trace id unavailable, using time-based id", "error", err)
		return generateFallbackTraceID()
	}
	return hex.EncodeToString(id[:])
}

// generateFallbackTraceID derives an id from the current time so that two
// requests never share a static value.
func generateFallbackTraceID() string {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(time.Now().Format(time.RFC3339Nano)))
	return hex.EncodeToString(id[:])
}
