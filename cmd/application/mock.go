package application

import (
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/agentstation/eventflow/internal/auth"
	"github.com/agentstation/eventflow/internal/version"
	"github.com/agentstation/eventflow/internal/watch"
	"github.com/agentstation/eventflow/pkg/constants"
	"github.com/agentstation/eventflow/pkg/descriptors"
	"github.com/agentstation/eventflow/pkg/events"
)

// Mock provides a mock implementation of Application for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default value.
type Mock struct {
	StoreFunc         func() *descriptors.FSStore
	ResolverFunc      func() (*events.Resolver, error)
	WatcherFunc       func() watch.Watcher
	VersionsFunc      func() version.Provider
	AuthenticatorFunc func() auth.Authenticator
	SettingsFunc      func() Settings
	LoggerFunc        func() *zerolog.Logger
	OutputFormatFunc  func() string
	VersionFunc       func() string
	CommitFunc        func() string
	DateFunc          func() string
	BuiltByFunc       func() string
}

var _ Application = (*Mock)(nil)

// Store returns a store using the mock function or an empty in-memory store.
func (m *Mock) Store() *descriptors.FSStore {
	if m.StoreFunc != nil {
		return m.StoreFunc()
	}
	return descriptors.NewFSStore(constants.DefaultEventsPath, constants.DefaultLocationsPath,
		descriptors.WithFs(afero.NewMemMapFs()))
}

// Resolver returns a resolver using the mock function or one over Store
// with the default timezone.
func (m *Mock) Resolver() (*events.Resolver, error) {
	if m.ResolverFunc != nil {
		return m.ResolverFunc()
	}
	zone, err := descriptors.LoadZone(constants.DefaultTimezone)
	if err != nil {
		return nil, err
	}
	return events.NewResolver(m.Store(), zone), nil
}

// Watcher returns a watcher using the mock function or an empty static one.
func (m *Mock) Watcher() watch.Watcher {
	if m.WatcherFunc != nil {
		return m.WatcherFunc()
	}
	return watch.NewStatic()
}

// Versions returns a provider using the mock function or a zero static one.
func (m *Mock) Versions() version.Provider {
	if m.VersionsFunc != nil {
		return m.VersionsFunc()
	}
	return version.Static{}
}

// Authenticator returns an authenticator using the mock function or one
// that rejects every credential.
func (m *Mock) Authenticator() auth.Authenticator {
	if m.AuthenticatorFunc != nil {
		return m.AuthenticatorFunc()
	}
	return auth.NewStaticKeys(nil)
}

// Settings returns settings using the mock function or the defaults.
func (m *Mock) Settings() Settings {
	if m.SettingsFunc != nil {
		return m.SettingsFunc()
	}
	return Settings{
		ListenAddr:   constants.DefaultListenAddr,
		PingInterval: constants.DefaultPingInterval,
		AuthEnabled:  true,
	}
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns the format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns builder using the mock function or "unknown".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "unknown"
}
