// Package resolve provides the eventflow resolve command.
package resolve

import (
	"context"
	"time"

	"github.com/agentstation/utc"
	"github.com/spf13/cobra"

	"github.com/agentstation/eventflow/cmd/application"
	"github.com/agentstation/eventflow/internal/cmd/output"
	"github.com/agentstation/eventflow/pkg/constants"
	"github.com/agentstation/eventflow/pkg/errors"
	"github.com/agentstation/eventflow/pkg/state"
)

// NewCommand creates the resolve command using app context.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resolve",
		GroupID: "core",
		Short:   "Print the event that is current right now",
		Long: `Resolve the events directory once and print the current event.

The result is the same one a freshly started server would publish. Any
descriptor problem (a non-.json file, a broken descriptor, an unknown
location, a timestamp that falls into a DST gap or fold, or overlapping
events) is reported and the command exits non-zero.`,
		Example: `  # What is on right now?
  eventflow resolve

  # What was on at a given instant, as iCalendar
  eventflow resolve --at 2024-07-06T15:00:00+02:00 -o ics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, app)
		},
	}

	cmd.Flags().String("at", "", "Instant to resolve at (RFC 3339, default now)")

	return cmd
}

func run(cmd *cobra.Command, app application.Application) error {
	logger := app.Logger()

	at := utc.Now()
	if s, _ := cmd.Flags().GetString("at"); s != "" {
		t, err := utc.Parse(time.RFC3339, s)
		if err != nil {
			return errors.NewValidationError("at", s, "must be an RFC 3339 timestamp")
		}
		at = t
	}

	format, err := output.ParseFormat(app.OutputFormat())
	if err != nil {
		return err
	}
	format = output.DetectFormat(string(format))

	resolver, err := app.Resolver()
	if err != nil {
		return err
	}
	store := app.Store()

	ctx, cancel := context.WithTimeout(cmd.Context(), constants.DefaultTimeout)
	defer cancel()

	ids, err := store.ListEvents(ctx)
	if err != nil {
		return err
	}
	res, err := resolver.LoadAndResolve(ctx, store, ids, at.Time)
	if err != nil {
		logger.Debug().Str("debug", errors.Debug(err)).Msg("Resolution failed")
		return err
	}

	var latest *state.Version
	if v, err := app.Versions().LatestVersion(ctx); err != nil {
		logger.Warn().Err(err).Msg("Deployed version unavailable")
	} else {
		latest = &v
	}

	logger.Debug().
		Int("events", len(ids)).
		Time("at", at.Time).
		Bool("current", res.Current != nil).
		Msg("Resolved")

	return output.NewFormatter(format).Format(cmd.OutOrStdout(), output.NewResolution(at, res, latest))
}
