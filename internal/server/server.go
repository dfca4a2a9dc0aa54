// Package server exposes the state node over HTTP: WebSocket sessions on
// "/" and "/ws", plus read-only JSON, iCalendar and SSE surfaces.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/eventflow/internal/auth"
	"github.com/agentstation/eventflow/internal/node"
	"github.com/agentstation/eventflow/internal/server/handlers"
	"github.com/agentstation/eventflow/internal/server/sse"
	ws "github.com/agentstation/eventflow/internal/server/websocket"
	"github.com/agentstation/eventflow/internal/session"
	"github.com/agentstation/eventflow/pkg/errors"
	"github.com/agentstation/eventflow/pkg/events"
)

// Deps are the collaborators the server is built from.
type Deps struct {
	Node     *node.Node
	Events   events.EventSource
	Resolver *events.Resolver
	Auth     auth.Authenticator

	// Game serves game-purpose sessions; nil rejects them.
	Game session.GameHandler

	Logger *zerolog.Logger
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	config   Config
	deps     Deps
	sessions *session.Manager
	hub      *ws.Hub
	sse      *sse.Handler
	handlers *handlers.Handlers
	logger   *zerolog.Logger
}

// New creates a new server instance with the given configuration.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Node == nil || deps.Events == nil || deps.Resolver == nil || deps.Auth == nil {
		return nil, errors.NewConfigError("server", "node, event source, resolver and authenticator are required", nil)
	}
	if cfg.ListenAddr == "" {
		return nil, errors.NewValidationError("listen_addr", cfg.ListenAddr, "must not be empty")
	}
	logger := deps.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	opts := []session.Option{
		session.WithPingInterval(cfg.PingInterval),
		session.WithLogger(logger),
	}
	if deps.Game != nil {
		opts = append(opts, session.WithGameHandler(deps.Game))
	}

	s := &Server{
		config:   cfg,
		deps:     deps,
		sessions: session.NewManager(deps.Node, deps.Auth, opts...),
		hub:      ws.NewHub(logger),
		sse:      sse.NewHandler(deps.Node, cfg.PingInterval, logger),
		logger:   logger,
	}
	s.handlers = handlers.New(handlers.Deps{
		Node:     deps.Node,
		Sessions: s.sessions,
		SSE:      s.sse,
		Hub:      s.hub,
		Events:   deps.Events,
		Resolver: deps.Resolver,
		Logger:   logger,
	})

	logger.Debug().Str("listen_addr", cfg.ListenAddr).Msg("Server instance created")
	return s, nil
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// Hub returns the WebSocket connection registry.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// ListenAndServe binds the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return errors.WrapTransport("listen", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully: in-flight requests get ShutdownTimeout to finish and every
// WebSocket session is closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("Server listening")
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WrapTransport("serve", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down server")
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	s.hub.CloseAll()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("Server shutdown timed out")
		return err
	}
	<-errCh
	s.logger.Info().Msg("Server shut down")
	return nil
}
