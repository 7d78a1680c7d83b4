// Package envelope builds the uniform response record every tool invocation
// returns. The envelope is always a JSON-serializable map with an "ok" flag
// and a trace id; the caller never sees a raw error.
package envelope

import (
	"time"

	"github.com/qolaba/qolaba-mcp-go/internal/schema"
)

// Kind labels the failure class of an ok:false envelope.
type Kind string

const (
	KindValidation Kind = "validation"
	KindUpstream   Kind = "upstream"
	KindTransport  Kind = "transport"
	KindInternal   Kind = "internal"
)

// Envelope is a plain map so it serializes to the tool protocol unchanged.
type Envelope map[string]any

// Success wraps an upstream result.
func Success(operation, traceID string, data map[string]any, status int, latency time.Duration) Envelope {
	return Envelope{
		"ok":         true,
		"operation":  operation,
		"trace_id":   traceID,
		"data":       data,
		"status":     status,
		"latency_ms": latency.Milliseconds(),
	}
}

// Validation reports rejected input. No network call was made.
func Validation(traceID string, issues []schema.Issue) Envelope {
	list := make([]map[string]any, 0, len(issues))
	for _, is := range issues {
		list = append(list, map[string]any{
			"path":    is.Path,
			"message": is.Message,
			"code":    is.Code,
		})
	}
	return Envelope{
		"ok":       false,
		"kind":     string(KindValidation),
		"trace_id": traceID,
		"issues":   list,
	}
}

// Upstream reports a definitive upstream failure. code, details and
// retryAfter are best-effort extractions and omitted when absent.
func Upstream(traceID string, status int, code, message string, details any, retryAfter time.Duration) Envelope {
	env := Envelope{
		"ok":       false,
		"kind":     string(KindUpstream),
		"trace_id": traceID,
		"status":   status,
		"message":  message,
	}
	if code != "" {
		env["code"] = code
	}
	if details != nil {
		env["details"] = details
	}
	if retryAfter > 0 {
		env["retry_after_ms"] = retryAfter.Milliseconds()
	}
	return env
}

// Transport reports a network-level failure after the attempt budget ran out.
func Transport(traceID, message, cause string, attempts int) Envelope {
	return Envelope{
		"ok":       false,
		"kind":     string(KindTransport),
		"trace_id": traceID,
		"message":  message,
		"cause":    cause,
		"attempts": attempts,
	}
}

// Internal reports an unexpected fault. The message must already be scrubbed:
// no secrets, no stack traces.
func Internal(traceID, message string) Envelope {
	return Envelope{
		"ok":       false,
		"kind":     string(KindInternal),
		"trace_id": traceID,
		"message":  message,
	}
}

// OK reports whether the envelope is a success record.
func (e Envelope) OK() bool {
	ok, _ := e["ok"].(bool)
	return ok
}

// Kind returns the failure kind, or "" for success envelopes.
func (e Envelope) Kind() Kind {
	k, _ := e["kind"].(string)
	return Kind(k)
}

// TraceID returns the envelope's trace id.
func (e Envelope) TraceID() string {
	id, _ := e["trace_id"].(string)
	return id
}
