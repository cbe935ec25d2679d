package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/guild-stats/internal/ratelimit"
)

// RedisWindowStore is a Redis implementation of ratelimit.WindowStore backed by sorted sets.
// Timeouts come from the client's dial/read/write options.
type RedisWindowStore struct {
	client *redis.Client
}

// NewRedisWindowStore creates a new Redis-backed window store.
func NewRedisWindowStore(client *redis.Client) *RedisWindowStore {
	return &RedisWindowStore{client: client}
}

func (r *RedisWindowStore) RemoveRangeByScore(ctx context.Context, key string, minScore, maxScore float64) error {
	err := r.client.ZRemRangeByScore(ctx, key, formatScore(minScore), formatScore(maxScore)).Err()

	return errors.Wrapf(err, "failed to remove scores from key %v", key)
}

func (r *RedisWindowStore) Count(ctx context.Context, key string) (int64, error) {
	count, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count members of key %v", key)
	}

	return count, nil
}

func (r *RedisWindowStore) RangeWithScores(ctx context.Context, key string, start, stop int64) ([]ratelimit.Entry, error) {
	zs, err := r.client.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to range over key %v", key)
	}

	entries := make([]ratelimit.Entry, 0, len(zs))
	for _, z := range zs {
		entries = append(entries, ratelimit.Entry{
			Member: fmt.Sprint(z.Member),
			Score:  z.Score,
		})
	}

	return entries, nil
}

func (r *RedisWindowStore) Add(ctx context.Context, key string, score float64, member string) error {
	err := r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()

	return errors.Wrapf(err, "failed to add member to key %v", key)
}

func (r *RedisWindowStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	err := r.client.Expire(ctx, key, ttl).Err()

	return errors.Wrapf(err, "failed to set an expiration to key %v", key)
}

// Ping checks Redis connectivity.
func (r *RedisWindowStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// Compile-time check.
var _ ratelimit.WindowStore = (*RedisWindowStore)(nil)
