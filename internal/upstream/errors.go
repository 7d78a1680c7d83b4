package upstream

import (
	"errors"
	"fmt"
)

// Transport-failure reasons carried by TransportError.
const (
	ReasonNetwork        = "network"
	ReasonTimeout        = "timeout"
	ReasonCancelled      = "cancelled"
	ReasonRateLimitLocal = "rate_limit_local"
	ReasonEncode         = "encode"
)

// ErrRateLimitLocal indicates the client-side token bucket could not yield a
// token within the per-request timeout.
var ErrRateLimitLocal = errors.New("local rate limit exceeded")

// TransportError is a request that never produced an HTTP response.
type TransportError struct {
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %v", e.Reason, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
