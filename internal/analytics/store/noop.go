package store

import (
	"context"

	"github.com/serroba/guild-stats/internal/analytics"
	"go.uber.org/zap"
)

// Noop is a no-op implementation of analytics.Store that logs events.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new no-op analytics store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveRequestRejected(_ context.Context, event *analytics.RequestRejectedEvent) error {
	n.logger.Info("request rejected event received",
		zap.String("identifier", event.Identifier),
		zap.String("path", event.Path),
		zap.Int64("limit", event.Limit),
		zap.Time("reset", event.Reset),
		zap.Time("occurredAt", event.OccurredAt),
	)

	return nil
}

func (n *Noop) SaveMembersServed(_ context.Context, event *analytics.MembersServedEvent) error {
	n.logger.Info("members served event received",
		zap.String("guildId", event.GuildID),
		zap.Int64("totalMembers", event.TotalMembers),
		zap.Int64("onlineMembers", event.OnlineMembers),
		zap.Time("servedAt", event.ServedAt),
	)

	return nil
}

// Compile-time check.
var _ analytics.Store = (*Noop)(nil)
