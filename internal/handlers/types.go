package handlers

// GetMembersRequest is the request for fetching a guild's member counts.
type GetMembersRequest struct {
	GuildID string `doc:"Discord guild (server) ID" example:"123456789012345678" query:"guildId"`
}

// GetMembersResponse is the response carrying a guild's member counts.
type GetMembersResponse struct {
	Body struct {
		TotalMembers  int64 `doc:"Approximate number of members"        example:"1500" json:"totalMembers"`
		OnlineMembers int64 `doc:"Approximate number of online members" example:"320"  json:"onlineMembers"`
	}
}
