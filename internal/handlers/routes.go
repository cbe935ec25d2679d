package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterRoutes registers the member count routes. They use the default rate limit policy.
func RegisterRoutes(api huma.API, membersHandler *MembersHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-members",
		Method:      http.MethodGet,
		Path:        "/members",
		Summary:     "Get guild member counts",
		Description: "Returns the approximate total and online member counts of a Discord guild.",
		Tags:        []string{"Members"},
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
		},
	}, membersHandler.GetMembers)
}
