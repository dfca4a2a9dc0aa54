package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/eventflow/internal/auth"
	"github.com/agentstation/eventflow/pkg/logging"
)

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Enabled     bool
	HeaderName  string
	PublicPaths []string
}

// DefaultAuthConfig returns default authentication configuration. The
// WebSocket endpoints authenticate in-band and are public at the HTTP layer.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Enabled:     true,
		HeaderName:  "X-API-Key",
		PublicPaths: []string{"/", "/ws", "/health", "/favicon.ico"},
	}
}

type identityKey struct{}

// Identity returns the identity attached by Auth, if any.
func Identity(r *http.Request) (auth.Identity, bool) {
	id, ok := r.Context().Value(identityKey{}).(auth.Identity)
	return id, ok
}

// Auth middleware validates API keys for protected endpoints.
func Auth(config AuthConfig, authenticator auth.Authenticator, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.Enabled || isPublicPath(r.URL.Path, config.PublicPaths) {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := extractAPIKey(r, config)
			identity, err := authenticator.Authenticate(r.Context(), apiKey)
			if err != nil {
				logger.Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Bool("key_provided", apiKey != "").
					Msg("Authentication failed")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"data":null,"error":{"code":"UNAUTHORIZED","message":"unknown API key","details":"Provide a valid API key in the ` + config.HeaderName + ` header"}}`))
				return
			}

			ctx := logging.WithField(r.Context(), "identity", identity.Name)
			ctx = contextWithIdentity(ctx, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// isPublicPath checks if a path is in the public paths list.
func isPublicPath(path string, publicPaths []string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// extractAPIKey extracts the API key from the request.
func extractAPIKey(r *http.Request, config AuthConfig) string {
	if apiKey := r.Header.Get(config.HeaderName); apiKey != "" {
		return apiKey
	}

	if authz := r.Header.Get("Authorization"); authz != "" {
		return strings.TrimPrefix(authz, "Bearer ")
	}

	// EventSource clients cannot set headers.
	return r.URL.Query().Get("api_key")
}

func contextWithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}
