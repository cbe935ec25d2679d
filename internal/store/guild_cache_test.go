package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/serroba/guild-stats/internal/discord"
	"github.com/serroba/guild-stats/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	stats *discord.MemberStats
	err   error
	calls int
}

func (f *countingFetcher) GuildCounts(_ context.Context, _ string) (*discord.MemberStats, error) {
	f.calls++

	return f.stats, f.err
}

func TestGuildStatsCache(t *testing.T) {
	ctx := context.Background()

	t.Run("second read is served from redis", func(t *testing.T) {
		_, client := newMiniredisClient(t)
		fetcher := &countingFetcher{stats: &discord.MemberStats{TotalMembers: 100, OnlineMembers: 7}}
		cache := store.NewGuildStatsCache(fetcher, client, time.Minute)

		first, err := cache.GuildCounts(ctx, "123")
		require.NoError(t, err)

		second, err := cache.GuildCounts(ctx, "123")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, fetcher.calls)
	})

	t.Run("entries expire after the ttl", func(t *testing.T) {
		server, client := newMiniredisClient(t)
		fetcher := &countingFetcher{stats: &discord.MemberStats{TotalMembers: 100, OnlineMembers: 7}}
		cache := store.NewGuildStatsCache(fetcher, client, 30*time.Second)

		_, _ = cache.GuildCounts(ctx, "123")

		assert.Equal(t, 30*time.Second, server.TTL("guildstats:123"))

		server.FastForward(31 * time.Second)

		_, _ = cache.GuildCounts(ctx, "123")

		assert.Equal(t, 2, fetcher.calls)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		server, client := newMiniredisClient(t)
		fetcher := &countingFetcher{err: discord.ErrGuildNotFound}
		cache := store.NewGuildStatsCache(fetcher, client, time.Minute)

		_, err := cache.GuildCounts(ctx, "123")

		require.ErrorIs(t, err, discord.ErrGuildNotFound)
		assert.False(t, server.Exists("guildstats:123"))
	})

	t.Run("falls through to the fetcher when redis is down", func(t *testing.T) {
		server, client := newMiniredisClient(t)
		fetcher := &countingFetcher{stats: &discord.MemberStats{TotalMembers: 5, OnlineMembers: 1}}
		cache := store.NewGuildStatsCache(fetcher, client, time.Minute)

		server.SetError("LOADING")

		stats, err := cache.GuildCounts(ctx, "123")

		require.NoError(t, err)
		assert.Equal(t, int64(5), stats.TotalMembers)
	})

	t.Run("fetcher errors pass through unchanged", func(t *testing.T) {
		_, client := newMiniredisClient(t)
		boom := errors.New("boom")
		cache := store.NewGuildStatsCache(&countingFetcher{err: boom}, client, time.Minute)

		_, err := cache.GuildCounts(ctx, "123")

		assert.ErrorIs(t, err, boom)
	})
}
