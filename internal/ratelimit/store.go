package ratelimit

import (
	"context"
	"time"
)

// Entry is a sorted set member together with its score.
type Entry struct {
	Member string
	Score  float64
}

// WindowStore defines the sorted set primitives the sliding window limiter is built on.
// Every method is a single round trip to the backing store and may fail on its own.
type WindowStore interface {
	// RemoveRangeByScore deletes all members whose score lies in [minScore, maxScore].
	RemoveRangeByScore(ctx context.Context, key string, minScore, maxScore float64) error

	// Count returns the number of members stored at key.
	Count(ctx context.Context, key string) (int64, error)

	// RangeWithScores returns the members ranked start..stop (0-indexed, inclusive)
	// in ascending score order.
	RangeWithScores(ctx context.Context, key string, start, stop int64) ([]Entry, error)

	// Add inserts member with the given score. Members are unique per key.
	Add(ctx context.Context, key string, score float64, member string) error

	// Expire sets or refreshes the time to live of the whole key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
