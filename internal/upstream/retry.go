package upstream

import (
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/qolaba/qolaba-mcp-go/internal/config"
)

// Policy decides retry eligibility and delay. It is stateless; per-invocation
// backoff state lives in the Schedule returned by NewSchedule.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

// NewPolicy builds the policy from validated settings.
func NewPolicy(rs config.RetrySettings) *Policy {
	return &Policy{
		MaxAttempts: rs.MaxAttempts,
		BaseDelay:   rs.BaseDelay,
		MaxDelay:    rs.MaxDelay,
		Jitter:      rs.Jitter,
	}
}

// Retryable reports whether a response class may be retried. auth_stale is
// retryable exactly once per invocation; transport errors are always
// retryable (budget permitting).
func (p *Policy) Retryable(class Class, authStaleUsed bool) bool {
	switch class {
	case ClassTransient, ClassRateLimited:
		return true
	case ClassAuthStale:
		return !authStaleUsed
	default:
		return false
	}
}

// Schedule carries the per-invocation exponential backoff state.
type Schedule struct {
	policy *Policy
	exp    *backoff.ExponentialBackOff
}

// NewSchedule starts a fresh backoff sequence for one invocation.
func (p *Policy) NewSchedule() *Schedule {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = p.Jitter
	exp.MaxInterval = p.MaxDelay
	exp.Reset()
	return &Schedule{policy: p, exp: exp}
}

// NextDelay computes the wait before the next attempt. A server-directed
// Retry-After wins over exponential backoff and is clamped to the maximum
// delay; the backoff sequence still advances so a later fallback continues
// where it should.
func (s *Schedule) NextDelay(res *RawResult) time.Duration {
	computed := s.exp.NextBackOff()
	if res != nil && res.Class == ClassRateLimited && res.HasRetryAfter {
		d := res.RetryAfter
		if d > s.policy.MaxDelay {
			d = s.policy.MaxDelay
		}
		return d
	}
	if computed > s.policy.MaxDelay {
		computed = s.policy.MaxDelay
	}
	return computed
}
