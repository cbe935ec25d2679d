package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/serroba/guild-stats/internal/ratelimit"
)

// PostgresWindowStore is a PostgreSQL implementation of ratelimit.WindowStore.
//
// A key's TTL is stamped on every row of the key. Rows past their expiry are
// invisible to reads. RemoveRangeByScore deletes them for its own key and
// Sweep deletes them for every key.
type PostgresWindowStore struct {
	pool *pgxpool.Pool
}

// NewPostgresWindowStore creates a new PostgreSQL-backed window store.
func NewPostgresWindowStore(pool *pgxpool.Pool) *PostgresWindowStore {
	return &PostgresWindowStore{pool: pool}
}

// Migrate creates the events table if it does not exist.
func (p *PostgresWindowStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS rate_limit_events (
			key        TEXT             NOT NULL,
			member     TEXT             NOT NULL,
			score      DOUBLE PRECISION NOT NULL,
			expires_at TIMESTAMPTZ,
			PRIMARY KEY (key, member)
		)`,
		`CREATE INDEX IF NOT EXISTS rate_limit_events_key_score_idx
			ON rate_limit_events (key, score)`,
		`CREATE INDEX IF NOT EXISTS rate_limit_events_expires_at_idx
			ON rate_limit_events (expires_at)`,
	}

	for _, stmt := range statements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate rate_limit_events")
		}
	}

	return nil
}

func (p *PostgresWindowStore) RemoveRangeByScore(ctx context.Context, key string, minScore, maxScore float64) error {
	query := `
		DELETE FROM rate_limit_events
		WHERE key = $1
		  AND ((score >= $2 AND score <= $3) OR expires_at <= now())
	`

	_, err := p.pool.Exec(ctx, query, key, minScore, maxScore)

	return errors.Wrapf(err, "failed to remove scores from key %v", key)
}

func (p *PostgresWindowStore) Count(ctx context.Context, key string) (int64, error) {
	query := `
		SELECT count(*)
		FROM rate_limit_events
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())
	`

	var count int64
	if err := p.pool.QueryRow(ctx, query, key).Scan(&count); err != nil {
		return 0, errors.Wrapf(err, "failed to count members of key %v", key)
	}

	return count, nil
}

func (p *PostgresWindowStore) RangeWithScores(ctx context.Context, key string, start, stop int64) ([]ratelimit.Entry, error) {
	if start < 0 || stop < 0 {
		return nil, ErrInvalidRange
	}

	if start > stop {
		return []ratelimit.Entry{}, nil
	}

	query := `
		SELECT member, score
		FROM rate_limit_events
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())
		ORDER BY score, member
		LIMIT $2 OFFSET $3
	`

	rows, err := p.pool.Query(ctx, query, key, stop-start+1, start)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to range over key %v", key)
	}

	entries, err := pgx.CollectRows(rows, pgx.RowToStructByPos[ratelimit.Entry])
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan range of key %v", key)
	}

	return entries, nil
}

func (p *PostgresWindowStore) Add(ctx context.Context, key string, score float64, member string) error {
	query := `
		INSERT INTO rate_limit_events (key, member, score)
		VALUES ($1, $2, $3)
		ON CONFLICT (key, member) DO UPDATE SET score = EXCLUDED.score
	`

	_, err := p.pool.Exec(ctx, query, key, member, score)

	return errors.Wrapf(err, "failed to add member to key %v", key)
}

func (p *PostgresWindowStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		_, err := p.pool.Exec(ctx, `DELETE FROM rate_limit_events WHERE key = $1`, key)

		return errors.Wrapf(err, "failed to expire key %v", key)
	}

	query := `
		UPDATE rate_limit_events
		SET expires_at = now() + make_interval(secs => $2)
		WHERE key = $1
	`

	_, err := p.pool.Exec(ctx, query, key, ttl.Seconds())

	return errors.Wrapf(err, "failed to set an expiration to key %v", key)
}

// Sweep deletes every row past its expiry and returns how many were deleted.
func (p *PostgresWindowStore) Sweep(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM rate_limit_events WHERE expires_at <= now()`)
	if err != nil {
		return 0, errors.Wrap(err, "failed to sweep expired rate limit events")
	}

	return tag.RowsAffected(), nil
}

// Ping checks PostgreSQL connectivity.
func (p *PostgresWindowStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Compile-time checks.
var (
	_ ratelimit.WindowStore = (*PostgresWindowStore)(nil)
	_ Sweeper               = (*PostgresWindowStore)(nil)
)
