package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/serroba/guild-stats/internal/handlers"
	"github.com/serroba/guild-stats/internal/middleware"
	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		want      string
		generated bool
	}{
		{name: "uses the caller's id", header: "abc-123", want: "abc-123"},
		{name: "trims whitespace", header: "  abc-123 ", want: "abc-123"},
		{name: "generates when missing", generated: true},
		{name: "generates when blank", header: "   ", generated: true},
		{name: "generates when too long", header: strings.Repeat("x", 129), generated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := func(string) string { return tt.header }

			got := middleware.RequestID(header)

			if tt.generated {
				assert.NoError(t, uuid.Validate(got))

				return
			}

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClientIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "cloudflare header wins over forwarded-for",
			headers: map[string]string{"CF-Connecting-IP": "1.2.3.4", "X-Forwarded-For": "5.6.7.8"},
			want:    "1.2.3.4",
		},
		{
			name:    "real ip wins over forwarded-for",
			headers: map[string]string{"X-Real-IP": "10.0.0.1", "X-Forwarded-For": "5.6.7.8"},
			want:    "10.0.0.1",
		},
		{
			name:    "cloudflare header wins over real ip",
			headers: map[string]string{"CF-Connecting-IP": "1.2.3.4", "X-Real-IP": "10.0.0.1"},
			want:    "1.2.3.4",
		},
		{
			name:    "first forwarded-for entry",
			headers: map[string]string{"X-Forwarded-For": "5.6.7.8, 9.9.9.9"},
			want:    "5.6.7.8",
		},
		{
			name:    "single forwarded-for entry is trimmed",
			headers: map[string]string{"X-Forwarded-For": "  5.6.7.8  "},
			want:    "5.6.7.8",
		},
		{
			name:    "blank first forwarded-for entry",
			headers: map[string]string{"X-Forwarded-For": " , 9.9.9.9"},
			want:    "unknown",
		},
		{
			name:    "no relevant headers",
			headers: map[string]string{"User-Agent": "curl/8.0"},
			want:    "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := func(name string) string { return tt.headers[name] }

			assert.Equal(t, tt.want, middleware.ClientIdentifier(header))
		})
	}
}

type testOutput struct {
	Body string `json:"body"`
}

func setupTestAPI(t *testing.T) (*chi.Mux, huma.API) {
	t.Helper()

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("Test", "1.0.0"))
	api.UseMiddleware(middleware.RequestMeta(api))

	return router, api
}

func TestRequestMeta(t *testing.T) {
	t.Run("stores client identifier and user-agent in the context", func(t *testing.T) {
		router, api := setupTestAPI(t)

		metaChan := make(chan handlers.RequestMeta, 1)

		huma.Get(api, "/test", func(ctx context.Context, _ *struct{}) (*testOutput, error) {
			metaChan <- handlers.RequestMetaFromContext(ctx)

			return &testOutput{Body: "ok"}, nil
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("User-Agent", "TestAgent/1.0")
		req.Header.Set("X-Forwarded-For", "192.168.1.1, 10.0.0.1")

		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		meta := <-metaChan
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "192.168.1.1", meta.ClientIP)
		assert.Equal(t, "TestAgent/1.0", meta.UserAgent)
		assert.NoError(t, uuid.Validate(meta.RequestID))
		assert.Equal(t, meta.RequestID, w.Header().Get("X-Request-ID"))
	})

	t.Run("keeps the caller's request id", func(t *testing.T) {
		router, api := setupTestAPI(t)

		metaChan := make(chan handlers.RequestMeta, 1)

		huma.Get(api, "/test", func(ctx context.Context, _ *struct{}) (*testOutput, error) {
			metaChan <- handlers.RequestMetaFromContext(ctx)

			return &testOutput{Body: "ok"}, nil
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Request-ID", "edge-7f3a")

		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, "edge-7f3a", (<-metaChan).RequestID)
		assert.Equal(t, "edge-7f3a", w.Header().Get("X-Request-ID"))
	})

	t.Run("falls back to unknown without address headers", func(t *testing.T) {
		router, api := setupTestAPI(t)

		metaChan := make(chan handlers.RequestMeta, 1)

		huma.Get(api, "/test", func(ctx context.Context, _ *struct{}) (*testOutput, error) {
			metaChan <- handlers.RequestMetaFromContext(ctx)

			return &testOutput{Body: "ok"}, nil
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, "unknown", (<-metaChan).ClientIP)
	})
}
