package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Limiter decides whether an identifier may perform one more event under a policy.
type Limiter interface {
	// Evaluate never fails: store errors resolve to an allowing result.
	Evaluate(ctx context.Context, identifier string, policy Policy) Result
}

// SlidingWindowLimiter implements rate limiting using a sliding window over a sorted set.
// Each event is stored with its timestamp as score; events older than the window are
// purged before counting.
//
// Concurrent evaluations for the same identifier are not serialized. Two callers can
// both observe a count below the limit and both add, briefly admitting more than
// Limit events.
type SlidingWindowLimiter struct {
	store    WindowStore
	now      func() time.Time
	prefix   string
	newToken TokenGenerator
	logger   *zap.Logger
	observer Observer
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(store WindowStore, opts ...Option) *SlidingWindowLimiter {
	l := &SlidingWindowLimiter{
		store:    store,
		now:      time.Now,
		prefix:   DefaultKeyPrefix,
		logger:   zap.NewNop(),
		observer: noopObserver{},
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.newToken == nil {
		l.newToken = defaultTokenGenerator()
	}

	return l
}

// Key returns the store key holding the window of identifier.
func (l *SlidingWindowLimiter) Key(identifier string) string {
	return l.prefix + identifier
}

// Evaluate records an event for identifier if the policy allows it.
//
// The policy is not validated here; callers should build it with NewPolicy.
// Rejected attempts are not recorded, so they never push the reset time further out.
// When any store call fails the request is allowed with the full limit remaining.
func (l *SlidingWindowLimiter) Evaluate(ctx context.Context, identifier string, policy Policy) Result {
	nowMs := l.now().UnixMilli()
	windowMs := policy.Window.Milliseconds()

	// Store calls run to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	result, err := l.evaluate(ctx, l.Key(identifier), nowMs, windowMs, policy.Limit)
	if err != nil {
		l.logger.Error("rate limit store failure, failing open",
			zap.String("identifier", identifier),
			zap.Error(err),
		)
		l.observer.Observe(OutcomeFailedOpen)

		return Result{
			Success:   true,
			Limit:     policy.Limit,
			Remaining: policy.Limit,
			Reset:     time.UnixMilli(nowMs + windowMs).UTC(),
		}
	}

	if result.Success {
		l.observer.Observe(OutcomeAllowed)
	} else {
		l.observer.Observe(OutcomeRejected)
	}

	return result
}

func (l *SlidingWindowLimiter) evaluate(ctx context.Context, key string, nowMs, windowMs, limit int64) (Result, error) {
	windowStart := nowMs - windowMs

	if err := l.store.RemoveRangeByScore(ctx, key, 0, float64(windowStart)); err != nil {
		return Result{}, err
	}

	count, err := l.store.Count(ctx, key)
	if err != nil {
		return Result{}, err
	}

	if count >= limit {
		oldest, err := l.store.RangeWithScores(ctx, key, 0, 0)
		if err != nil {
			return Result{}, err
		}

		// An empty range here means another caller emptied the set between the two calls.
		resetMs := nowMs + windowMs
		if len(oldest) > 0 {
			resetMs = int64(oldest[0].Score) + windowMs
		}

		return Result{
			Success:   false,
			Limit:     limit,
			Remaining: 0,
			Reset:     time.UnixMilli(resetMs).UTC(),
		}, nil
	}

	member := fmt.Sprintf("%d-%s", nowMs, l.newToken())
	if err := l.store.Add(ctx, key, float64(nowMs), member); err != nil {
		return Result{}, err
	}

	if err := l.store.Expire(ctx, key, ttlFor(windowMs)); err != nil {
		return Result{}, err
	}

	return Result{
		Success:   true,
		Limit:     limit,
		Remaining: limit - (count + 1),
		Reset:     time.UnixMilli(nowMs + windowMs).UTC(),
	}, nil
}

// ttlFor rounds the window up to whole seconds.
func ttlFor(windowMs int64) time.Duration {
	return time.Duration((windowMs+999)/1000) * time.Second
}
