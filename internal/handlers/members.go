package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/guild-stats/internal/analytics"
	"github.com/serroba/guild-stats/internal/discord"
	"github.com/serroba/guild-stats/internal/messaging"
	"go.uber.org/zap"
)

// MembersHandler serves guild member counts.
type MembersHandler struct {
	fetcher              discord.Fetcher
	publishMembersServed messaging.Publish[analytics.MembersServedEvent]
	logger               *zap.Logger
	now                  func() time.Time
}

// NewMembersHandler creates a new members handler.
func NewMembersHandler(
	fetcher discord.Fetcher,
	publishMembersServed messaging.Publish[analytics.MembersServedEvent],
	logger *zap.Logger,
) *MembersHandler {
	return &MembersHandler{
		fetcher:              fetcher,
		publishMembersServed: publishMembersServed,
		logger:               logger,
		now:                  time.Now,
	}
}

func (h *MembersHandler) GetMembers(ctx context.Context, req *GetMembersRequest) (*GetMembersResponse, error) {
	if req.GuildID == "" {
		return nil, huma.Error400BadRequest("Guild ID is required")
	}

	stats, err := h.fetcher.GuildCounts(ctx, req.GuildID)
	if err != nil {
		return nil, h.mapFetchError(req.GuildID, err)
	}

	meta := RequestMetaFromContext(ctx)
	event := &analytics.MembersServedEvent{
		RequestID:     meta.RequestID,
		GuildID:       req.GuildID,
		TotalMembers:  stats.TotalMembers,
		OnlineMembers: stats.OnlineMembers,
		ClientIP:      meta.ClientIP,
		ServedAt:      h.now().UTC(),
	}

	if err := h.publishMembersServed(ctx, event); err != nil {
		h.logger.Error("failed to publish members served event",
			zap.String("guild_id", req.GuildID),
			zap.Error(err),
		)
	}

	resp := &GetMembersResponse{}
	resp.Body.TotalMembers = stats.TotalMembers
	resp.Body.OnlineMembers = stats.OnlineMembers

	return resp, nil
}

func (h *MembersHandler) mapFetchError(guildID string, err error) error {
	switch {
	case errors.Is(err, discord.ErrMissingToken):
		h.logger.Error("discord bot token is not configured")

		return huma.Error500InternalServerError("Missing bot token configuration")
	case errors.Is(err, discord.ErrGuildNotFound):
		return huma.Error404NotFound("Guild not found or bot not in server")
	case errors.Is(err, discord.ErrForbidden):
		return huma.Error403Forbidden("Bot does not have permission to access this server")
	default:
		h.logger.Error("discord api error", zap.String("guild_id", guildID), zap.Error(err))

		return huma.Error500InternalServerError("Failed to fetch member counts")
	}
}
