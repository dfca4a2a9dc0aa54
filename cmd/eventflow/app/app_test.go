package app

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/agentstation/eventflow/pkg/errors"
)

func testConfig() *Config {
	return &Config{
		EventsPath:      "/ev",
		LocationsPath:   "/loc",
		VersionRepoPath: "/repo",
		DefaultTimezone: "Europe/Berlin",
		ListenAddr:      "127.0.0.1:0",
		PingInterval:    time.Second,
		AuthEnabled:     true,
		APIKeys:         map[string]string{"k": "alice"},
		LogFormat:       "json",
		LogOutput:       "discard",
	}
}

func newTestApp(t *testing.T, fs afero.Fs) *App {
	t.Helper()
	logger := zerolog.Nop()
	app, err := New("1.0.0", "abc123", "2024-01-01", "test",
		WithConfig(testConfig()),
		WithLogger(&logger),
		WithFs(fs),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return app
}

// TestApp_New verifies app initialization.
func TestApp_New(t *testing.T) {
	app := newTestApp(t, afero.NewMemMapFs())

	if app.Version() != "1.0.0" {
		t.Errorf("Version() = %s, want 1.0.0", app.Version())
	}
	if app.Commit() != "abc123" {
		t.Errorf("Commit() = %s, want abc123", app.Commit())
	}
	if app.Date() != "2024-01-01" {
		t.Errorf("Date() = %s, want 2024-01-01", app.Date())
	}
	if app.BuiltBy() != "test" {
		t.Errorf("BuiltBy() = %s, want test", app.BuiltBy())
	}
	if app.Logger() == nil {
		t.Error("Logger() returned nil")
	}
	if app.Config() == nil {
		t.Error("Config() returned nil")
	}
}

// TestApp_WithInvalidConfig verifies option validation.
func TestApp_WithInvalidConfig(t *testing.T) {
	config := testConfig()
	config.PingInterval = 0
	if _, err := New("dev", "", "", "", WithConfig(config)); !errors.IsValidationError(err) {
		t.Errorf("New() error = %v, want validation error", err)
	}
}

// TestApp_Collaborators verifies the configured collaborators.
func TestApp_Collaborators(t *testing.T) {
	app := newTestApp(t, afero.NewMemMapFs())

	if app.Store() != app.Store() {
		t.Error("Store() should return the same instance")
	}
	if app.Store().EventsPath() != "/ev" {
		t.Errorf("EventsPath() = %s, want /ev", app.Store().EventsPath())
	}

	r1, err := app.Resolver()
	if err != nil {
		t.Fatalf("Resolver() failed: %v", err)
	}
	r2, _ := app.Resolver()
	if r1 != r2 {
		t.Error("Resolver() should return the same instance")
	}
	if got := r1.DefaultZone().String(); got != "Europe/Berlin" {
		t.Errorf("DefaultZone() = %s, want Europe/Berlin", got)
	}

	id, err := app.Authenticator().Authenticate(context.Background(), "k")
	if err != nil || id.Name != "alice" {
		t.Errorf("Authenticate() = %v, %v", id, err)
	}
	if _, err := app.Authenticator().Authenticate(context.Background(), "nope"); !errors.IsAPIKeyError(err) {
		t.Errorf("Authenticate(unknown) error = %v", err)
	}

	s := app.Settings()
	if s.ListenAddr != "127.0.0.1:0" || s.PingInterval != time.Second || !s.AuthEnabled || s.Live {
		t.Errorf("Settings() = %+v", s)
	}
}

// TestApp_AuthDisabled verifies that disabling auth without keys accepts
// any credential.
func TestApp_AuthDisabled(t *testing.T) {
	app := newTestApp(t, afero.NewMemMapFs())
	app.config.AuthEnabled = false

	if _, err := app.Authenticator().Authenticate(context.Background(), "k"); err != nil {
		t.Errorf("configured key rejected: %v", err)
	}

	app.config.APIKeys = nil
	if _, err := app.Authenticator().Authenticate(context.Background(), "anything"); err != nil {
		t.Errorf("Authenticate() with auth disabled failed: %v", err)
	}
}

// TestApp_UnknownTimezone verifies the resolver reports a bad default zone.
func TestApp_UnknownTimezone(t *testing.T) {
	app := newTestApp(t, afero.NewMemMapFs())
	app.config.DefaultTimezone = "Mars/Olympus_Mons"

	if _, err := app.Resolver(); !errors.IsValidationError(err) {
		t.Errorf("Resolver() error = %v, want validation error", err)
	}
}

// TestApp_Execute runs the root command end to end against an in-memory
// events directory.
func TestApp_Execute(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, dir := range []string{"/ev", "/loc"} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	event := `{"start":"2024-01-01T10:00:00","end":"2024-01-01T12:00:00"}`
	if err := afero.WriteFile(fs, path.Join("/ev", "sil.json"), []byte(event), 0o644); err != nil {
		t.Fatal(err)
	}
	app := newTestApp(t, fs)

	root := app.createRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"resolve", "-o", "json", "--log-level", "error", "--at", "2024-01-01T10:30:00Z"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	var got struct {
		Event struct {
			ID string `json:"id"`
		} `json:"event"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out.String(), err)
	}
	if got.Event.ID != "sil" {
		t.Errorf("event = %q, want sil", got.Event.ID)
	}
	if app.OutputFormat() != "json" {
		t.Errorf("OutputFormat() = %s, want json", app.OutputFormat())
	}
}

// TestApp_WatcherUsesAppFs verifies listings come from the same filesystem as the store.
func TestApp_WatcherUsesAppFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/ev/sil.json", []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	app := newTestApp(t, fs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listings, err := app.Watcher().Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() failed: %v", err)
	}
	first := <-listings
	if first.Err != nil {
		t.Fatalf("listing failed: %v", first.Err)
	}
	if len(first.Names) != 1 || first.Names[0] != "sil.json" {
		t.Errorf("listing = %v, want [sil.json]", first.Names)
	}
}

// TestApp_ExecuteRejectsFormat verifies the global format flag is checked.
func TestApp_ExecuteRejectsFormat(t *testing.T) {
	app := newTestApp(t, afero.NewMemMapFs())
	if err := app.Execute(context.Background(), []string{"version", "-o", "xml"}); !errors.IsValidationError(err) {
		t.Errorf("Execute() error = %v, want validation error", err)
	}
}

// TestApp_Shutdown verifies shutdown is safe without running commands.
func TestApp_Shutdown(t *testing.T) {
	app := newTestApp(t, afero.NewMemMapFs())
	if err := app.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() failed: %v", err)
	}
}
