package container

import (
	"fmt"
	"os"
	"time"

	"github.com/serroba/guild-stats/internal/ratelimit"
)

const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Options is the service configuration. Every field can be set by flag or by
// a SERVICE_<NAME> environment variable.
type Options struct {
	Port      int    `default:"8888"       help:"Port to listen on"                   short:"p"`
	LogFormat string `default:"json"       help:"Log format: json or console"`
	LogLevel  string `default:"info"       help:"Log level: debug, info, warn, error"`
	Store     string `default:"redis"      help:"Rate limit store: redis, postgres or memory" short:"s"`

	RedisAddr     string `default:"localhost:6379" help:"Redis server address" short:"r"`
	RedisPassword string `default:""               help:"Redis password"`
	RedisDB       int    `default:"0"              help:"Redis database number"`
	DatabaseURL   string `default:"postgres://localhost:5432/guildstats?sslmode=disable" help:"PostgreSQL connection URL; put credentials here or in PGUSER/PGPASSWORD"`

	RateLimitMax      int    `default:"10"         help:"Requests allowed per client within the window"`
	RateLimitWindowMS int    `default:"60000"      help:"Sliding window length in milliseconds"`
	RateLimitPrefix   string `default:"ratelimit:" help:"Key prefix for rate limit entries"`
	SweepIntervalSec  int    `default:"60"         help:"Seconds between sweeps of expired keys (memory and postgres stores), 0 disables"`

	AllowedOrigin    string `default:"*"                           help:"Value of Access-Control-Allow-Origin"`
	DiscordToken     string `default:""                            help:"Discord bot token (falls back to DISCORD_BOT_TOKEN)"`
	DiscordBaseURL   string `default:"https://discord.com/api/v10" help:"Discord REST API base URL"`
	DiscordTimeoutMS int    `default:"5000"                        help:"Discord request timeout in milliseconds"`
	StatsCacheTTL    int    `default:"0"                           help:"Seconds to cache member counts in Redis, 0 disables"`

	Events bool `default:"false" help:"Publish rate limit and usage events to Redis Streams"`
}

// Policy returns the validated default rate limit policy.
func (o *Options) Policy() (ratelimit.Policy, error) {
	policy, err := ratelimit.NewPolicy(int64(o.RateLimitMax), time.Duration(o.RateLimitWindowMS)*time.Millisecond)
	if err != nil {
		return ratelimit.Policy{}, fmt.Errorf("rate limit options: %w", err)
	}

	return policy, nil
}

// BotToken returns the configured Discord token, falling back to DISCORD_BOT_TOKEN.
func (o *Options) BotToken() string {
	if o.DiscordToken != "" {
		return o.DiscordToken
	}

	return os.Getenv("DISCORD_BOT_TOKEN")
}

// DiscordTimeout returns the per-request Discord timeout.
func (o *Options) DiscordTimeout() time.Duration {
	return time.Duration(o.DiscordTimeoutMS) * time.Millisecond
}

// SweepInterval returns how often expired rate limit keys are swept; zero disables sweeping.
func (o *Options) SweepInterval() time.Duration {
	return time.Duration(o.SweepIntervalSec) * time.Second
}

// CacheTTL returns how long member counts are cached; zero disables caching.
func (o *Options) CacheTTL() time.Duration {
	return time.Duration(o.StatsCacheTTL) * time.Second
}
