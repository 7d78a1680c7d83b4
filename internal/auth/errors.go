package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for consistent handling across the bridge.
var (
	// ErrUnconfigured indicates auth mode "none": no credentials to send.
	ErrUnconfigured = errors.New("no authentication configured")

	// ErrRefreshFailed indicates the token endpoint rejected the refresh.
	ErrRefreshFailed = errors.New("OAuth token refresh failed")
)

// RefreshError carries the token endpoint's HTTP status alongside the cause.
// Status is 0 when the endpoint was unreachable.
type RefreshError struct {
	Status int
	Err    error
}

func (e *RefreshError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("OAuth token refresh failed with status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("OAuth token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRefreshFailed) match RefreshError values.
func (e *RefreshError) Is(target error) bool { return target == ErrRefreshFailed }
