package upstream

import (
	"net/http"
	"strconv"
	"time"
)

// Class is the retry-relevant classification of an upstream response.
type Class string

const (
	ClassSuccess     Class = "success"      // 2xx
	ClassAuthStale   Class = "auth_stale"   // 401
	ClassRateLimited Class = "rate_limited" // 429
	ClassTransient   Class = "transient"    // 408, 502, 503, 504
	ClassClientError Class = "client_error" // other 4xx
	ClassServerError Class = "server_error" // other 5xx
)

// Classify maps an HTTP status onto its class.
func Classify(status int) Class {
	switch {
	case status >= 200 && status < 300:
		return ClassSuccess
	case status == http.StatusUnauthorized:
		return ClassAuthStale
	case status == http.StatusTooManyRequests:
		return ClassRateLimited
	case status == http.StatusRequestTimeout,
		status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout:
		return ClassTransient
	case status >= 400 && status < 500:
		return ClassClientError
	default:
		return ClassServerError
	}
}

// RawResult is the transport's view of one upstream response.
type RawResult struct {
	Status      int
	Headers     http.Header
	ContentType string

	// JSON holds the decoded body when the response was JSON; Body always
	// holds the raw bytes.
	JSON map[string]any
	Body []byte

	Class Class

	RetryAfter    time.Duration
	HasRetryAfter bool
}

// parseRetryAfter handles both the delta-seconds and the HTTP-date form of
// Retry-After. An unparseable value reports absence so the caller falls back
// to exponential backoff.
func parseRetryAfter(headers http.Header, now time.Time) (time.Duration, bool) {
	raw := headers.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(raw); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
