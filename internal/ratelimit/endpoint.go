package ratelimit

import "github.com/danielgtaylor/huma/v2"

// MetadataKey is the key used to store rate limit config in operation metadata.
const MetadataKey = "rateLimit"

// EndpointConfig defines per-endpoint rate limit configuration.
// This can be attached to Huma operations via the Metadata field.
type EndpointConfig struct {
	// Policy overrides the default policy for this endpoint. Nil keeps the default.
	//
	// NOTE: identifiers share one window across endpoints, so an override only
	// changes how many events the endpoint tolerates, not where they are counted.
	Policy *Policy

	// Disabled skips rate limiting entirely for this endpoint.
	Disabled bool
}

// PolicyFor returns the policy that applies given the default one.
func (c *EndpointConfig) PolicyFor(fallback Policy) Policy {
	if c == nil || c.Policy == nil {
		return fallback
	}

	return *c.Policy
}

// GetEndpointConfig extracts the EndpointConfig from operation metadata, if present.
func GetEndpointConfig(ctx huma.Context) *EndpointConfig {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}
