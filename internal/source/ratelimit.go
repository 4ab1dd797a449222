package source

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces out requests to the classifieds site with a token bucket
// and honours upstream back-off requests (429 + Retry-After) by refusing
// calls until the back-off window has passed.
type RateLimiter struct {
	limiter     *rate.Limiter
	calls       atomic.Int64
	mu          sync.Mutex
	pausedUntil time.Time
	nowFunc     func() time.Time
}

// RateLimiterOption configures the RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterNowFunc overrides the time function for testing.
func WithRateLimiterNowFunc(f func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) {
		r.nowFunc = f
	}
}

// NewRateLimiter creates a rate limiter allowing perSecond requests with the
// given burst.
func NewRateLimiter(perSecond float64, burst int, opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Wait blocks until the token bucket allows the call, or the context is
// canceled. During a back-off window it fails fast with ErrRateLimited so
// the loop counts a transient failure instead of stalling the iteration.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if until, paused := r.paused(); paused {
		return fmt.Errorf("%w: backing off until %s", ErrRateLimited, until.Format(time.RFC3339))
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	r.calls.Add(1)
	return nil
}

// Penalize starts (or extends) a back-off window of d.
func (r *RateLimiter) Penalize(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until := r.nowFunc().Add(d)
	if until.After(r.pausedUntil) {
		r.pausedUntil = until
	}
}

// PausedUntil returns the end of the current back-off window, or the zero
// time when not backing off.
func (r *RateLimiter) PausedUntil() time.Time {
	until, paused := r.paused()
	if !paused {
		return time.Time{}
	}
	return until
}

// Calls returns the number of requests let through so far.
func (r *RateLimiter) Calls() int64 {
	return r.calls.Load()
}

func (r *RateLimiter) paused() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pausedUntil, r.nowFunc().Before(r.pausedUntil)
}
