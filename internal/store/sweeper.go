package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper is a window store that only enforces key TTLs when asked to.
// Redis expires keys itself and does not need one.
type Sweeper interface {
	// Sweep deletes everything past its TTL and reports how much was removed.
	Sweep(ctx context.Context) (int64, error)
}

// RunSweeper calls Sweep every interval until ctx is done.
func RunSweeper(ctx context.Context, sweeper Sweeper, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := sweeper.Sweep(ctx)
			if err != nil {
				logger.Warn("failed to sweep expired rate limit entries", zap.Error(err))

				continue
			}

			if removed > 0 {
				logger.Debug("swept expired rate limit entries", zap.Int64("removed", removed))
			}
		}
	}
}
