package transport

import (
	"time"

	"github.com/reglet-dev/scriptnet/domain/entities"
	"github.com/reglet-dev/scriptnet/domain/errors"
)

// RateLimiter is the global fixed-window admission control shared by every
// request of a Client.
type RateLimiter struct {
	windowStart time.Time
	clock       func() time.Time
	window      time.Duration
	max         int
	count       int
}

// NewRateLimiter returns a limiter with the fixed window and capacity.
// A nil clock uses time.Now.
func NewRateLimiter(clock func() time.Time) *RateLimiter {
	return &RateLimiter{
		clock:  clock,
		window: entities.RateLimitWindow,
		max:    entities.RateLimitMax,
	}
}

// CheckAndIncrement admits one request or returns a *errors.RateLimitError.
// An expired window is reset before this call is counted. A rejected call
// does not count against the window.
func (r *RateLimiter) CheckAndIncrement() error {
	now := r.now()
	if r.windowStart.IsZero() || now.Sub(r.windowStart) >= r.window {
		r.count = 0
		r.windowStart = now
	}

	r.count++
	if r.count > r.max {
		r.count--
		retryAfter := r.windowStart.Add(r.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return &errors.RateLimitError{RetryAfter: retryAfter}
	}
	return nil
}

// Count returns the admissions in the current window.
func (r *RateLimiter) Count() int {
	return r.count
}

// WindowStart returns when the current window opened.
func (r *RateLimiter) WindowStart() time.Time {
	return r.windowStart
}

func (r *RateLimiter) now() time.Time {
	if r.clock != nil {
		return r.clock()
	}
	return time.Now()
}
