package analytics

import "time"

const (
	TopicRequestRejected = "ratelimit.rejected"
	TopicMembersServed   = "members.served"
)

// RequestRejectedEvent is emitted when a caller exceeds its rate limit.
type RequestRejectedEvent struct {
	RequestID  string    `json:"requestId,omitempty"`
	Identifier string    `json:"identifier"`
	Path       string    `json:"path"`
	Limit      int64     `json:"limit"`
	Reset      time.Time `json:"reset"`
	OccurredAt time.Time `json:"occurredAt"`
	UserAgent  string    `json:"userAgent,omitempty"`
}

// MembersServedEvent is emitted after member counts are returned to a caller.
type MembersServedEvent struct {
	RequestID     string    `json:"requestId,omitempty"`
	GuildID       string    `json:"guildId"`
	TotalMembers  int64     `json:"totalMembers"`
	OnlineMembers int64     `json:"onlineMembers"`
	ClientIP      string    `json:"clientIp"`
	ServedAt      time.Time `json:"servedAt"`
}
