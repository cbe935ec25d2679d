package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPolicy is returned when a policy has a non-positive limit or window.
var ErrInvalidPolicy = errors.New("invalid rate limit policy")

// Policy is the number of events allowed per identifier within a sliding window.
type Policy struct {
	Limit  int64
	Window time.Duration
}

// NewPolicy creates a validated policy.
func NewPolicy(limit int64, window time.Duration) (Policy, error) {
	p := Policy{Limit: limit, Window: window}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}

	return p, nil
}

// Validate rejects policies the limiter cannot evaluate meaningfully.
// The window has millisecond resolution.
func (p Policy) Validate() error {
	if p.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidPolicy, p.Limit)
	}

	if p.Window.Milliseconds() <= 0 {
		return fmt.Errorf("%w: window must be at least 1ms, got %s", ErrInvalidPolicy, p.Window)
	}

	return nil
}

// Result is the outcome of a single evaluation.
type Result struct {
	Success   bool
	Limit     int64
	Remaining int64
	// Reset is when the oldest counted event leaves the window.
	Reset time.Time
}

// ResetMillis returns Reset as a Unix timestamp in milliseconds.
func (r Result) ResetMillis() int64 {
	return r.Reset.UnixMilli()
}

// RetryAfter returns the whole seconds, rounded up, until Reset. It is never negative.
func (r Result) RetryAfter(now time.Time) int64 {
	ms := r.Reset.UnixMilli() - now.UnixMilli()
	if ms <= 0 {
		return 0
	}

	return (ms + 999) / 1000
}
