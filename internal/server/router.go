package server

import (
	"net/http"

	"github.com/agentstation/eventflow/internal/server/middleware"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return s.applyMiddleware(mux)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	h := s.handlers

	// Favicon handler (return 204 No Content to avoid 404 logs)
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Session endpoints; "/" is the fixed path legacy clients dial.
	mux.HandleFunc("/ws", h.HandleWebSocket)
	mux.HandleFunc("/{$}", h.HandleWebSocket)

	mux.HandleFunc("/health", h.HandleHealth)

	mux.HandleFunc("/api/v1/current", h.HandleCurrent)
	mux.HandleFunc("/api/v1/current.ics", h.HandleCurrentICS)
	mux.HandleFunc("/api/v1/stream", h.HandleSSE)
}

// applyMiddleware wraps handler with middleware chain.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	authConfig := middleware.DefaultAuthConfig()
	authConfig.Enabled = s.config.AuthEnabled
	if s.config.AuthHeader != "" {
		authConfig.HeaderName = s.config.AuthHeader
	}

	return middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.Logger(s.logger),
		middleware.Auth(authConfig, s.deps.Auth, s.logger),
	)(handler)
}
