package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is Discord's REST API root.
const DefaultBaseURL = "https://discord.com/api/v10"

var (
	ErrMissingToken  = errors.New("missing bot token")
	ErrGuildNotFound = errors.New("guild not found or bot not in guild")
	ErrForbidden     = errors.New("bot cannot access guild")
	ErrUpstream      = errors.New("discord request failed")
)

// MemberStats is the pair of counts served to callers.
type MemberStats struct {
	TotalMembers  int64 `json:"totalMembers"`
	OnlineMembers int64 `json:"onlineMembers"`
}

// Guild is the subset of Discord's guild object returned with with_counts=true.
type Guild struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	ApproximateMemberCount   int64  `json:"approximate_member_count"`
	ApproximatePresenceCount int64  `json:"approximate_presence_count"`
}

// Fetcher retrieves member counts for a guild.
type Fetcher interface {
	GuildCounts(ctx context.Context, guildID string) (*MemberStats, error)
}

// Client calls the Discord REST API with a bot token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a Discord client. An empty baseURL falls back to DefaultBaseURL.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// Guild fetches a guild with approximate counts.
func (c *Client) Guild(ctx context.Context, guildID string) (*Guild, error) {
	if c.token == "" {
		return nil, ErrMissingToken
	}

	endpoint := fmt.Sprintf("%s/guilds/%s?with_counts=true", c.baseURL, url.PathEscape(guildID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrGuildNotFound
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrForbidden
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var guild Guild
	if err := json.NewDecoder(resp.Body).Decode(&guild); err != nil {
		return nil, fmt.Errorf("%w: decode guild: %w", ErrUpstream, err)
	}

	return &guild, nil
}

// GuildCounts returns the total and online member counts of a guild.
func (c *Client) GuildCounts(ctx context.Context, guildID string) (*MemberStats, error) {
	guild, err := c.Guild(ctx, guildID)
	if err != nil {
		return nil, err
	}

	return &MemberStats{
		TotalMembers:  guild.ApproximateMemberCount,
		OnlineMembers: guild.ApproximatePresenceCount,
	}, nil
}

// Compile-time check.
var _ Fetcher = (*Client)(nil)
