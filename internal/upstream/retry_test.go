package upstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/qolaba/qolaba-mcp-go/internal/config"
)

func testPolicy() *Policy {
	return NewPolicy(config.RetrySettings{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Jitter:      0, // deterministic delays for assertions
	})
}

func TestRetryable(t *testing.T) {
	p := testPolicy()

	tests := []struct {
		class         Class
		authStaleUsed bool
		expected      bool
	}{
		{ClassTransient, false, true},
		{ClassTransient, true, true},
		{ClassRateLimited, false, true},
		{ClassRateLimited, true, true},
		{ClassAuthStale, false, true},
		{ClassAuthStale, true, false},
		{ClassClientError, false, false},
		{ClassServerError, false, false},
		{ClassSuccess, false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, p.Retryable(tt.class, tt.authStaleUsed),
			"class %s authStaleUsed %v", tt.class, tt.authStaleUsed)
	}
}

func TestScheduleExponentialGrowth(t *testing.T) {
	sched := testPolicy().NewSchedule()

	assert.Equal(t, 1*time.Second, sched.NextDelay(nil))
	assert.Equal(t, 2*time.Second, sched.NextDelay(nil))
	assert.Equal(t, 4*time.Second, sched.NextDelay(nil))
	assert.Equal(t, 8*time.Second, sched.NextDelay(nil))
	// Clamped at MaxDelay from here on.
	assert.Equal(t, 10*time.Second, sched.NextDelay(nil))
	assert.Equal(t, 10*time.Second, sched.NextDelay(nil))
}

func TestScheduleRetryAfterOverride(t *testing.T) {
	sched := testPolicy().NewSchedule()

	res := &RawResult{Class: ClassRateLimited, RetryAfter: 3 * time.Second, HasRetryAfter: true}
	assert.Equal(t, 3*time.Second, sched.NextDelay(res))

	// The exponential sequence advanced underneath; the fallback continues
	// from the second step.
	assert.Equal(t, 2*time.Second, sched.NextDelay(nil))
}

func TestScheduleRetryAfterClamped(t *testing.T) {
	sched := testPolicy().NewSchedule()

	res := &RawResult{Class: ClassRateLimited, RetryAfter: 5 * time.Minute, HasRetryAfter: true}
	assert.Equal(t, 10*time.Second, sched.NextDelay(res))
}

func TestScheduleRetryAfterZero(t *testing.T) {
	sched := testPolicy().NewSchedule()

	res := &RawResult{Class: ClassRateLimited, RetryAfter: 0, HasRetryAfter: true}
	assert.Equal(t, time.Duration(0), sched.NextDelay(res))
}

func TestScheduleRetryAfterIgnoredForOtherClasses(t *testing.T) {
	sched := testPolicy().NewSchedule()

	res := &RawResult{Class: ClassTransient, RetryAfter: 3 * time.Second, HasRetryAfter: true}
	assert.Equal(t, 1*time.Second, sched.NextDelay(res))
}

func TestScheduleJitterStaysWithinBounds(t *testing.T) {
	p := NewPolicy(config.RetrySettings{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    time.Minute,
		Jitter:      0.25,
	})

	sched := p.NewSchedule()
	first := sched.NextDelay(nil)
	assert.GreaterOrEqual(t, first, 750*time.Millisecond)
	assert.LessOrEqual(t, first, 1250*time.Millisecond)
}
