package container

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/guild-stats/internal/analytics"
	analyticsstore "github.com/serroba/guild-stats/internal/analytics/store"
	"github.com/serroba/guild-stats/internal/discord"
	"github.com/serroba/guild-stats/internal/handlers"
	"github.com/serroba/guild-stats/internal/health"
	"github.com/serroba/guild-stats/internal/messaging"
	"github.com/serroba/guild-stats/internal/metrics"
	"github.com/serroba/guild-stats/internal/middleware"
	"github.com/serroba/guild-stats/internal/ratelimit"
	"github.com/serroba/guild-stats/internal/store"
	"go.uber.org/zap"
)

const (
	analyticsConsumerGroup = "guild-stats-analytics"
	migrateTimeout         = 10 * time.Second
)

// RedisClient wraps the shared Redis client so the injector closes it on shutdown.
type RedisClient struct {
	*redis.Client
}

func (c *RedisClient) Shutdown() error {
	return c.Close()
}

// PostgresPool wraps the pgx pool so the injector closes it on shutdown.
type PostgresPool struct {
	*pgxpool.Pool
}

func (p *PostgresPool) Shutdown() error {
	p.Close()

	return nil
}

// WindowStore is the selected rate limit backend together with its name.
// Backends that do not expire keys themselves get a background sweeper,
// stopped on shutdown.
type WindowStore struct {
	ratelimit.WindowStore
	Backend string

	stopSweeper context.CancelFunc
	sweeperDone chan struct{}
}

func (w *WindowStore) startSweeper(interval time.Duration, logger *zap.Logger) {
	sweeper, ok := w.WindowStore.(store.Sweeper)
	if !ok || interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.stopSweeper = cancel
	w.sweeperDone = make(chan struct{})

	go func() {
		defer close(w.sweeperDone)
		store.RunSweeper(ctx, sweeper, interval, logger)
	}()
}

func (w *WindowStore) Shutdown() error {
	if w.stopSweeper == nil {
		return nil
	}

	w.stopSweeper()
	<-w.sweeperDone

	return nil
}

func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		return NewLogger(opts.LogFormat, opts.LogLevel)
	})
}

func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*RedisClient, error) {
		opts := do.MustInvoke[*Options](i)

		return &RedisClient{Client: redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})}, nil
	})
}

func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*PostgresPool, error) {
		opts := do.MustInvoke[*Options](i)

		pool, err := pgxpool.New(context.Background(), opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}

		return &PostgresPool{Pool: pool}, nil
	})
}

// WindowStorePackage provides the rate limit store selected by Options.Store.
// Backends are created lazily, so only the selected one connects.
func WindowStorePackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*WindowStore, error) {
		opts := do.MustInvoke[*Options](i)

		windowStore, err := newWindowStore(i, opts)
		if err != nil {
			return nil, err
		}

		windowStore.startSweeper(opts.SweepInterval(), do.MustInvoke[*zap.Logger](i).Named("sweeper"))

		return windowStore, nil
	})
}

func newWindowStore(i *do.Injector, opts *Options) (*WindowStore, error) {
	switch opts.Store {
	case StoreRedis:
		client, err := do.Invoke[*RedisClient](i)
		if err != nil {
			return nil, err
		}

		return &WindowStore{WindowStore: store.NewRedisWindowStore(client.Client), Backend: StoreRedis}, nil
	case StorePostgres:
		pool, err := do.Invoke[*PostgresPool](i)
		if err != nil {
			return nil, err
		}

		pgStore := store.NewPostgresWindowStore(pool.Pool)

		ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
		defer cancel()

		if err := pgStore.Migrate(ctx); err != nil {
			return nil, err
		}

		return &WindowStore{WindowStore: pgStore, Backend: StorePostgres}, nil
	case StoreMemory:
		return &WindowStore{WindowStore: store.NewMemoryWindowStore(nil), Backend: StoreMemory}, nil
	default:
		return nil, fmt.Errorf("unknown rate limit store %q", opts.Store)
	}
}

func MetricsPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*metrics.Metrics, error) {
		return metrics.New(), nil
	})
}

func RateLimitPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (ratelimit.Policy, error) {
		return do.MustInvoke[*Options](i).Policy()
	})

	do.Provide(i, func(i *do.Injector) (ratelimit.Limiter, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		m := do.MustInvoke[*metrics.Metrics](i)

		windowStore, err := do.Invoke[*WindowStore](i)
		if err != nil {
			return nil, err
		}

		return ratelimit.NewSlidingWindowLimiter(windowStore.WindowStore,
			ratelimit.WithKeyPrefix(opts.RateLimitPrefix),
			ratelimit.WithLogger(logger.Named("ratelimit")),
			ratelimit.WithObserver(m),
		), nil
	})
}

// DiscordPackage provides the member count fetcher, cached in Redis when a TTL is configured.
func DiscordPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (discord.Fetcher, error) {
		opts := do.MustInvoke[*Options](i)
		client := discord.NewClient(opts.DiscordBaseURL, opts.BotToken(), opts.DiscordTimeout())

		if opts.CacheTTL() <= 0 {
			return client, nil
		}

		redisClient, err := do.Invoke[*RedisClient](i)
		if err != nil {
			return nil, err
		}

		return store.NewGuildStatsCache(client, redisClient.Client, opts.CacheTTL()), nil
	})
}

func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		client := do.MustInvoke[*RedisClient](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: client.Client},
			messaging.NewZapLogger(logger.Named("events")),
		)
		if err != nil {
			return nil, fmt.Errorf("create redis stream publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})
}

// EventsPackage provides the analytics publishers. When events are disabled
// they discard everything and Redis is never touched.
func EventsPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (analytics.Publishers, error) {
		if !do.MustInvoke[*Options](i).Events {
			return analytics.DiscardPublishers(), nil
		}

		group, err := do.Invoke[*messaging.PublisherGroup](i)
		if err != nil {
			return analytics.Publishers{}, err
		}

		return analytics.NewPublishers(group.Publisher()), nil
	})
}

func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		client := do.MustInvoke[*RedisClient](i)
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        client.Client,
				ConsumerGroup: analyticsConsumerGroup,
			},
			messaging.NewZapLogger(logger.Named("events")),
		)
		if err != nil {
			return nil, fmt.Errorf("create redis stream subscriber: %w", err)
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		analytics.RegisterConsumers(group, analyticsstore.NewNoop(logger), logger)

		return group, nil
	})
}

func HealthPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*health.Handler, error) {
		windowStore, err := do.Invoke[*WindowStore](i)
		if err != nil {
			return nil, err
		}

		checker, ok := windowStore.WindowStore.(health.Checker)
		if !ok {
			return nil, fmt.Errorf("store %q cannot be health checked", windowStore.Backend)
		}

		return health.NewHandler(windowStore.Backend, checker), nil
	})
}

// HTTPPackage provides the router and the API. Invoking huma.API registers all routes.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*chi.Mux, error) {
		opts := do.MustInvoke[*Options](i)
		m := do.MustInvoke[*metrics.Metrics](i)

		router := chi.NewMux()
		router.Use(m.Middleware("/metrics"))
		router.Use(middleware.CORS(opts.AllowedOrigin))
		router.Handle("/metrics", m.Handler())

		return router, nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		router := do.MustInvoke[*chi.Mux](i)
		logger := do.MustInvoke[*zap.Logger](i)
		publishers := do.MustInvoke[analytics.Publishers](i)

		policy, err := do.Invoke[ratelimit.Policy](i)
		if err != nil {
			return nil, err
		}

		limiter, err := do.Invoke[ratelimit.Limiter](i)
		if err != nil {
			return nil, err
		}

		fetcher, err := do.Invoke[discord.Fetcher](i)
		if err != nil {
			return nil, err
		}

		healthHandler, err := do.Invoke[*health.Handler](i)
		if err != nil {
			return nil, err
		}

		api := humachi.New(router, huma.DefaultConfig("Guild Stats", "1.0.0"))
		api.UseMiddleware(middleware.RequestMeta(api))
		api.UseMiddleware(middleware.RateLimiter(api, limiter, policy, publishers.RequestRejected, logger))

		handlers.RegisterRoutes(api, handlers.NewMembersHandler(fetcher, publishers.MembersServed, logger))
		health.RegisterRoutes(api, healthHandler)

		return api, nil
	})
}
