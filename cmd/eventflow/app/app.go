// Package app provides the application context and dependency management
// for the eventflow CLI. It centralizes configuration, logging and the
// construction of the collaborators commands are built from.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/agentstation/eventflow/cmd/application"
	"github.com/agentstation/eventflow/internal/auth"
	"github.com/agentstation/eventflow/internal/version"
	"github.com/agentstation/eventflow/internal/watch"
	"github.com/agentstation/eventflow/pkg/constants"
	"github.com/agentstation/eventflow/pkg/descriptors"
	"github.com/agentstation/eventflow/pkg/errors"
	"github.com/agentstation/eventflow/pkg/events"
)

// App represents the eventflow application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	// Configuration
	config *Config

	// Logger
	logger *zerolog.Logger

	// Descriptor filesystem, the OS filesystem unless replaced for tests.
	fs afero.Fs

	// Lazily built collaborators
	mu       sync.Mutex
	store    *descriptors.FSStore
	resolver *events.Resolver
}

var _ application.Application = (*App)(nil)

// New creates a new App instance with the given version information.
// Configuration is loaded from the environment, .env files and the default
// config file; options may replace it.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		fs:      afero.NewOsFs(),
	}

	// Apply any custom options
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.config == nil {
		config, err := LoadConfig("")
		if err != nil {
			return nil, err
		}
		app.config = config
	}

	if app.logger == nil {
		logger := NewLogger(app.config)
		app.logger = &logger
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// Store returns the descriptor store, creating it on first use.
func (a *App) Store() *descriptors.FSStore {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.storeLocked()
}

func (a *App) storeLocked() *descriptors.FSStore {
	if a.store == nil {
		a.store = descriptors.NewFSStore(a.config.EventsPath, a.config.LocationsPath, descriptors.WithFs(a.fs))
	}
	return a.store
}

// Resolver returns the event resolver, creating it on first use.
func (a *App) Resolver() (*events.Resolver, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.resolver != nil {
		return a.resolver, nil
	}
	zone, err := descriptors.LoadZone(a.config.DefaultTimezone)
	if err != nil {
		return nil, errors.NewValidationError("default_timezone", a.config.DefaultTimezone, "unknown time zone")
	}
	a.resolver = events.NewResolver(a.storeLocked(), zone)
	return a.resolver, nil
}

// Watcher returns a new watcher over the events directory.
func (a *App) Watcher() watch.Watcher {
	return watch.NewDirWatcher(a.config.EventsPath,
		watch.WithFs(a.fs),
		watch.WithDebounce(constants.WatchDebounce),
		watch.WithLogger(a.logger),
	)
}

// Versions returns the git-backed deployed-version provider.
func (a *App) Versions() version.Provider {
	return version.NewGitProvider(a.config.VersionRepoPath)
}

// Authenticator returns the static API key table. With no keys and
// auth_enabled off every credential is accepted.
func (a *App) Authenticator() auth.Authenticator {
	if len(a.config.APIKeys) == 0 && !a.config.AuthEnabled {
		return auth.AllowAll{}
	}
	return auth.NewStaticKeys(a.config.APIKeys)
}

// Settings returns the serving options.
func (a *App) Settings() application.Settings {
	return application.Settings{
		ListenAddr:     a.config.ListenAddr,
		PingInterval:   a.config.PingInterval,
		AuthEnabled:    a.config.AuthEnabled,
		Live:           a.config.Live,
		RescanSchedule: a.config.RescanSchedule,
	}
}

// Shutdown performs graceful shutdown of the application. Commands stop
// their own node and server through the command context, so nothing is
// left running here.
func (a *App) Shutdown(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.logger.Debug().Msg("Application shut down")
	return nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		if err := config.Validate(); err != nil {
			return err
		}
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithFs replaces the filesystem descriptors are read from.
func WithFs(fs afero.Fs) Option {
	return func(a *App) error {
		a.fs = fs
		return nil
	}
}
