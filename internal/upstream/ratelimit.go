package upstream

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/qolaba/qolaba-mcp-go/internal/config"
)

// RateLimiter is the client-side token bucket shared across invocations:
// capacity MaxRequests, refilled linearly over Window. A nil inner limiter
// means local rate limiting is disabled.
type RateLimiter struct {
	lim *rate.Limiter
}

// NewRateLimiter builds the bucket from settings.
func NewRateLimiter(rl config.RateLimitSettings) *RateLimiter {
	if rl.MaxRequests <= 0 || rl.Window <= 0 {
		return &RateLimiter{}
	}
	perSecond := float64(rl.MaxRequests) / rl.Window.Seconds()
	return &RateLimiter{lim: rate.NewLimiter(rate.Limit(perSecond), rl.MaxRequests)}
}

// Acquire takes one token, waiting at most maxWait (and no longer than the
// context allows). Exhausting the wait returns ErrRateLimitLocal.
func (r *RateLimiter) Acquire(ctx context.Context, maxWait time.Duration) error {
	if r.lim == nil {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	if err := r.lim.Wait(waitCtx); err != nil {
		// The parent context being cancelled is reported as-is; only the
		// local wait budget maps to the local rate limit error.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrRateLimitLocal
	}
	return nil
}
