package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/guild-stats/internal/analytics"
	"github.com/serroba/guild-stats/internal/handlers"
	"github.com/serroba/guild-stats/internal/messaging"
	"github.com/serroba/guild-stats/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"

	// ResetLayout renders X-RateLimit-Reset as an ISO 8601 UTC timestamp with milliseconds.
	ResetLayout = "2006-01-02T15:04:05.000Z07:00"

	rateLimitExceededMessage = "Rate limit exceeded. Please try again later."
)

// RateLimitErrorModel is the 429 body: a problem document that also carries
// the Retry-After value in seconds.
type RateLimitErrorModel struct {
	huma.ErrorModel

	RetryAfter int64 `json:"retryAfter" doc:"Seconds until the caller may retry"`
}

// RateLimiter returns a Huma middleware that applies the sliding-window limiter
// per client identifier. Operations may override the policy or opt out through
// ratelimit.MetadataKey metadata.
func RateLimiter(
	api huma.API,
	limiter ratelimit.Limiter,
	policy ratelimit.Policy,
	publishRejected messaging.Publish[analytics.RequestRejectedEvent],
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		cfg := ratelimit.GetEndpointConfig(ctx)
		if cfg != nil && cfg.Disabled {
			next(ctx)

			return
		}

		identifier := ClientIdentifier(ctx.Header)
		result := limiter.Evaluate(ctx.Context(), identifier, cfg.PolicyFor(policy))

		ctx.SetHeader(HeaderLimit, strconv.FormatInt(result.Limit, 10))
		ctx.SetHeader(HeaderRemaining, strconv.FormatInt(result.Remaining, 10))
		ctx.SetHeader(HeaderReset, result.Reset.UTC().Format(ResetLayout))

		if !result.Success {
			now := time.Now()
			retryAfter := result.RetryAfter(now)
			ctx.SetHeader(HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))

			logger.Warn("rate limit exceeded",
				zap.String("identifier", identifier),
				zap.String("path", operationPath(ctx)),
				zap.Int64("limit", result.Limit),
				zap.Time("reset", result.Reset),
			)

			event := &analytics.RequestRejectedEvent{
				RequestID:  handlers.RequestMetaFromContext(ctx.Context()).RequestID,
				Identifier: identifier,
				Path:       operationPath(ctx),
				Limit:      result.Limit,
				Reset:      result.Reset,
				OccurredAt: now.UTC(),
				UserAgent:  ctx.Header("User-Agent"),
			}

			if err := publishRejected(ctx.Context(), event); err != nil {
				logger.Error("failed to publish rate limit event",
					zap.String("identifier", identifier),
					zap.Error(err),
				)
			}

			if err := writeRateLimitExceeded(api, ctx, retryAfter); err != nil {
				logger.Error("failed to write rate limit response", zap.Error(err))
			}

			return
		}

		next(ctx)
	}
}

func writeRateLimitExceeded(api huma.API, ctx huma.Context, retryAfter int64) error {
	body := &RateLimitErrorModel{
		ErrorModel: huma.ErrorModel{
			Status: http.StatusTooManyRequests,
			Title:  http.StatusText(http.StatusTooManyRequests),
			Detail: rateLimitExceededMessage,
		},
		RetryAfter: retryAfter,
	}

	ct, err := api.Negotiate(ctx.Header("Accept"))
	if err != nil {
		ct = "application/json"
	}

	ctx.SetHeader("Content-Type", body.ContentType(ct))
	ctx.SetStatus(http.StatusTooManyRequests)

	tval, err := api.Transform(ctx, strconv.Itoa(http.StatusTooManyRequests), body)
	if err != nil {
		return err
	}

	return api.Marshal(ctx.BodyWriter(), ct, tval)
}

// operationPath extracts the route template from the operation, if available.
func operationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}
