// Package serve provides the eventflow serve command.
package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/eventflow/cmd/application"
	"github.com/agentstation/eventflow/internal/auth"
	"github.com/agentstation/eventflow/internal/node"
	"github.com/agentstation/eventflow/internal/server"
	"github.com/agentstation/eventflow/pkg/errors"
)

// NewCommand creates the serve command using app context.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		GroupID: "core",
		Short:   "Start the state node and the WebSocket server",
		Long: `Start the state node and serve it over HTTP.

The node resolves the current event once at startup, or continuously with
--live. A live server rescans immediately on SIGHUP.

Clients connect over WebSocket on / or /ws, send an API key and a
purpose, and receive the current state followed by every change.

Read-only surfaces on the same listener:
  GET /health               node phase and connection counts
  GET /api/v1/current       current event and version as JSON
  GET /api/v1/current.ics   current event as iCalendar
  GET /api/v1/stream        Server-Sent Events stream of state deltas`,
		Example: `  # Serve on the configured address (default 127.0.0.1:24802)
  eventflow serve

  # Recompute whenever the events directory changes, and every 5 minutes
  eventflow serve --live --rescan "@every 5m"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app)
		},
	}

	cmd.Flags().String("listen", "", "Bind address (overrides listen_addr)")
	cmd.Flags().Bool("live", false, "Recompute on directory changes and at event boundaries")
	cmd.Flags().String("rescan", "", "Cron spec for periodic rescans in live mode")
	cmd.Flags().Duration("ping-interval", 0, "Heartbeat period (overrides ping_interval)")

	return cmd
}

func run(cmd *cobra.Command, app application.Application) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	logger := app.Logger()
	settings := applyFlags(cmd, app.Settings())

	if settings.RescanSchedule != "" && !settings.Live {
		return errors.NewValidationError("rescan", settings.RescanSchedule, "requires --live")
	}

	resolver, err := app.Resolver()
	if err != nil {
		return err
	}
	store := app.Store()

	authenticator := app.Authenticator()
	if keys, ok := authenticator.(*auth.StaticKeys); ok && keys.Len() == 0 {
		logger.Warn().Msg("No API keys configured, every session will be rejected")
	}

	n, err := node.New(app.Watcher(), store, resolver, app.Versions(),
		node.WithLogger(logger),
		node.WithLive(settings.Live),
		node.WithRescanSchedule(settings.RescanSchedule),
	)
	if err != nil {
		return err
	}

	logger.Info().
		Str("events_path", store.EventsPath()).
		Bool("live", settings.Live).
		Str("rescan", settings.RescanSchedule).
		Msg("Starting state node")

	snap := n.Start(ctx)
	if snap.Err != nil {
		// Clients still connect and receive the error.
		logger.Error().Err(snap.Err).Msg("State node failed to initialize")
	}
	if settings.Live {
		go rescanOnHangup(ctx, n, logger)
	}

	cfg := server.DefaultConfig()
	cfg.ListenAddr = settings.ListenAddr
	cfg.PingInterval = settings.PingInterval
	cfg.AuthEnabled = settings.AuthEnabled

	srv, err := server.New(cfg, server.Deps{
		Node:     n,
		Events:   store,
		Resolver: resolver,
		Auth:     authenticator,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	err = srv.ListenAndServe(ctx)

	// The node stops with ctx, also when the listener failed.
	cancel()
	select {
	case <-n.Done():
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn().Msg("State node did not stop in time")
	}
	return err
}

// rescanOnHangup triggers a rescan on every SIGHUP until ctx is done.
func rescanOnHangup(ctx context.Context, n *node.Node, logger *zerolog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			logger.Info().Msg("Rescan requested")
			n.Rescan()
		case <-ctx.Done():
			return
		}
	}
}

// applyFlags overrides settings with the flags that were set.
func applyFlags(cmd *cobra.Command, s application.Settings) application.Settings {
	flags := cmd.Flags()
	if flags.Changed("listen") {
		s.ListenAddr, _ = flags.GetString("listen")
	}
	if flags.Changed("live") {
		s.Live, _ = flags.GetBool("live")
	}
	if flags.Changed("rescan") {
		s.RescanSchedule, _ = flags.GetString("rescan")
	}
	if flags.Changed("ping-interval") {
		s.PingInterval, _ = flags.GetDuration("ping-interval")
	}
	return s
}
