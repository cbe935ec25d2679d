package middleware

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/serroba/guild-stats/internal/handlers"
)

const (
	// UnknownClient identifies callers that carry none of the proxy address headers.
	UnknownClient = "unknown"

	HeaderRequestID = "X-Request-ID"

	maxRequestIDLength = 128
)

// ClientIdentifier resolves the caller's address from proxy headers, in order:
// CF-Connecting-IP, X-Real-IP, then the first X-Forwarded-For entry.
func ClientIdentifier(header func(name string) string) string {
	if ip := header("CF-Connecting-IP"); ip != "" {
		return ip
	}

	if ip := header("X-Real-IP"); ip != "" {
		return ip
	}

	if xff := header("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	return UnknownClient
}

// RequestID returns the caller's X-Request-ID, or a new UUID when it is
// missing or implausibly long.
func RequestID(header func(name string) string) string {
	if id := strings.TrimSpace(header(HeaderRequestID)); id != "" && len(id) <= maxRequestIDLength {
		return id
	}

	return uuid.NewString()
}

// RequestMeta is a middleware that adds the request id, client identifier and
// user-agent to the request context. The request id is echoed back as X-Request-ID.
func RequestMeta(_ huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := handlers.RequestMeta{
			RequestID: RequestID(ctx.Header),
			ClientIP:  ClientIdentifier(ctx.Header),
			UserAgent: ctx.Header("User-Agent"),
		}

		ctx.SetHeader(HeaderRequestID, meta.RequestID)

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)
		ctx = huma.WithContext(ctx, newCtx)

		next(ctx)
	}
}
