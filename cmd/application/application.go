// Package application provides the application interface for eventflow commands.
//
// The Application interface defines the contract between the application layer and
// command implementations, enabling dependency injection and testability.
//
// Usage in Commands:
//
//	func NewCommand(app application.Application) *cobra.Command {
//	    return &cobra.Command{
//	        RunE: func(cmd *cobra.Command, args []string) error {
//	            resolver, err := app.Resolver()
//	            if err != nil {
//	                return err
//	            }
//	            // ... resolve against app.Store()
//	            return nil
//	        },
//	    }
//	}
//
// Testing with Mocks:
//
//	mock := &application.Mock{
//	    StoreFunc: func() *descriptors.FSStore {
//	        return descriptors.NewFSStore("/ev", "/loc", descriptors.WithFs(fs))
//	    },
//	}
//	cmd := NewCommand(mock)
package application

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/eventflow/internal/auth"
	"github.com/agentstation/eventflow/internal/version"
	"github.com/agentstation/eventflow/internal/watch"
	"github.com/agentstation/eventflow/pkg/descriptors"
	"github.com/agentstation/eventflow/pkg/events"
)

// Application provides what commands need from the application.
// The App struct from cmd/eventflow/app implements this interface.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// Store returns the descriptor store over the configured directories.
	Store() *descriptors.FSStore

	// Resolver returns the event resolver, falling back to the configured
	// default timezone. It fails when that zone is unknown.
	Resolver() (*events.Resolver, error)

	// Watcher returns a watcher over the events directory.
	Watcher() watch.Watcher

	// Versions returns the deployed-version provider.
	Versions() version.Provider

	// Authenticator maps session credentials to identities.
	Authenticator() auth.Authenticator

	// Settings returns the serving options.
	Settings() Settings

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (table, json, yaml, ics).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}

// Settings are the serving options taken from configuration.
type Settings struct {
	ListenAddr     string
	PingInterval   time.Duration
	AuthEnabled    bool
	Live           bool
	RescanSchedule string
}
