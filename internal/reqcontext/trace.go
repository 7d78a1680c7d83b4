// Package reqcontext provides per-invocation trace ids and their context
// plumbing. Every envelope and every log line carries the same trace id.
package reqcontext

import (
	"context"
	"crypto/rand"
	"regexp"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	// TraceIDHeader is the HTTP header the trace id travels in.
	TraceIDHeader = "X-Request-Id"

	// MaxTraceIDLength bounds caller-supplied trace ids.
	MaxTraceIDLength = 256
)

// traceIDPattern permits alphanumerics, dashes and underscores.
var traceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,256}$`)

// IsValidTraceID checks whether a caller-supplied trace id is usable.
func IsValidTraceID(id string) bool {
	if id == "" || len(id) > MaxTraceIDLength {
		return false
	}
	return traceIDPattern.MatchString(id)
}

// NewTraceID generates a ULID trace id. ULIDs sort by creation time, which
// keeps log output greppable in order.
func NewTraceID() string {
	id, err := ulid.New(ulid.Now(), rand.Reader)
	if err != nil {
		// crypto/rand failure; fall back to a UUID.
		return uuid.New().String()
	}
	return id.String()
}

// GetOrGenerate returns the provided trace id when valid, a fresh one otherwise.
func GetOrGenerate(provided string) string {
	if IsValidTraceID(provided) {
		return provided
	}
	return NewTraceID()
}

// IsUUID reports whether s is UUID-shaped. Task ids use this check.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

type contextKey string

const traceIDKey contextKey = "trace_id"

// WithTraceID attaches a trace id to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext retrieves the trace id, or "" when absent.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}
