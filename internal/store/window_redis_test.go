package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/guild-stats/internal/ratelimit"
	"github.com/serroba/guild-stats/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: server.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return server, client
}

func TestRedisWindowStore(t *testing.T) {
	ctx := context.Background()

	t.Run("adds and counts members", func(t *testing.T) {
		_, client := newMiniredisClient(t)
		s := store.NewRedisWindowStore(client)

		require.NoError(t, s.Add(ctx, "ratelimit:1.2.3.4", 1000, "1000-a"))
		require.NoError(t, s.Add(ctx, "ratelimit:1.2.3.4", 2000, "2000-b"))

		count, err := s.Count(ctx, "ratelimit:1.2.3.4")

		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("count of missing key is zero", func(t *testing.T) {
		_, client := newMiniredisClient(t)
		s := store.NewRedisWindowStore(client)

		count, err := s.Count(ctx, "missing")

		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("ranges with scores in ascending order", func(t *testing.T) {
		_, client := newMiniredisClient(t)
		s := store.NewRedisWindowStore(client)

		_ = s.Add(ctx, "key", 3000, "c")
		_ = s.Add(ctx, "key", 1000, "a")
		_ = s.Add(ctx, "key", 2000, "b")

		oldest, err := s.RangeWithScores(ctx, "key", 0, 0)

		require.NoError(t, err)
		assert.Equal(t, []ratelimit.Entry{{Member: "a", Score: 1000}}, oldest)
	})

	t.Run("removes the closed score interval", func(t *testing.T) {
		_, client := newMiniredisClient(t)
		s := store.NewRedisWindowStore(client)

		_ = s.Add(ctx, "key", 1000, "a")
		_ = s.Add(ctx, "key", 2000, "b")
		_ = s.Add(ctx, "key", 3000, "c")

		require.NoError(t, s.RemoveRangeByScore(ctx, "key", 0, 2000))

		entries, err := s.RangeWithScores(ctx, "key", 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []ratelimit.Entry{{Member: "c", Score: 3000}}, entries)
	})

	t.Run("sets a ttl on the key", func(t *testing.T) {
		server, client := newMiniredisClient(t)
		s := store.NewRedisWindowStore(client)

		_ = s.Add(ctx, "key", 1000, "a")
		require.NoError(t, s.Expire(ctx, "key", 60*time.Second))

		assert.Equal(t, 60*time.Second, server.TTL("key"))

		server.FastForward(61 * time.Second)

		count, err := s.Count(ctx, "key")
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("ping succeeds against a live server", func(t *testing.T) {
		_, client := newMiniredisClient(t)
		s := store.NewRedisWindowStore(client)

		assert.NoError(t, s.Ping(ctx))
	})

	t.Run("wraps errors with the key", func(t *testing.T) {
		server, client := newMiniredisClient(t)
		s := store.NewRedisWindowStore(client)

		server.SetError("boom")

		_, err := s.Count(ctx, "key")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to count members of key key")
		assert.Contains(t, err.Error(), "boom")
	})
}
