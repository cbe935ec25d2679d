package store

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/guild-stats/internal/discord"
)

var errCacheMiss = errors.New("guild stats cache miss")

// GuildStatsCache wraps a discord.Fetcher with a Redis read-through cache.
// Errors from the fetcher are never cached.
type GuildStatsCache struct {
	fetcher discord.Fetcher
	client  *redis.Client
	prefix  string
	ttl     time.Duration
}

// NewGuildStatsCache creates a new Redis-cached fetcher decorator.
func NewGuildStatsCache(fetcher discord.Fetcher, client *redis.Client, ttl time.Duration) *GuildStatsCache {
	return &GuildStatsCache{
		fetcher: fetcher,
		client:  client,
		prefix:  "guildstats:",
		ttl:     ttl,
	}
}

// GuildCounts returns cached counts when present and fetches them otherwise.
func (c *GuildStatsCache) GuildCounts(ctx context.Context, guildID string) (*discord.MemberStats, error) {
	if stats, err := c.getFromCache(ctx, guildID); err == nil {
		return stats, nil
	}

	stats, err := c.fetcher.GuildCounts(ctx, guildID)
	if err != nil {
		return nil, err
	}

	c.cacheStats(ctx, guildID, stats)

	return stats, nil
}

func (c *GuildStatsCache) getFromCache(ctx context.Context, guildID string) (*discord.MemberStats, error) {
	result, err := c.client.HGetAll(ctx, c.prefix+guildID).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read cached stats of guild %v", guildID)
	}

	if len(result) == 0 {
		return nil, errCacheMiss
	}

	total, err := strconv.ParseInt(result["total"], 10, 64)
	if err != nil {
		return nil, errCacheMiss
	}

	online, err := strconv.ParseInt(result["online"], 10, 64)
	if err != nil {
		return nil, errCacheMiss
	}

	return &discord.MemberStats{TotalMembers: total, OnlineMembers: online}, nil
}

func (c *GuildStatsCache) cacheStats(ctx context.Context, guildID string, stats *discord.MemberStats) {
	key := c.prefix + guildID
	pipe := c.client.Pipeline()

	pipe.HSet(ctx, key, map[string]any{
		"total":  stats.TotalMembers,
		"online": stats.OnlineMembers,
	})
	pipe.Expire(ctx, key, c.ttl)

	_, _ = pipe.Exec(ctx)
}

// Compile-time check.
var _ discord.Fetcher = (*GuildStatsCache)(nil)
