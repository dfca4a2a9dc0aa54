package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentstation/eventflow/pkg/constants"
	"github.com/agentstation/eventflow/pkg/errors"
)

// isolate runs the test in an empty working and home directory so no
// developer .env or config file leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}

// TestLoadConfig verifies defaults.
func TestLoadConfig(t *testing.T) {
	isolate(t)

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.EventsPath != constants.DefaultEventsPath {
		t.Errorf("EventsPath = %s, want %s", config.EventsPath, constants.DefaultEventsPath)
	}
	if config.ListenAddr != constants.DefaultListenAddr {
		t.Errorf("ListenAddr = %s, want %s", config.ListenAddr, constants.DefaultListenAddr)
	}
	if config.DefaultTimezone != "Europe/Berlin" {
		t.Errorf("DefaultTimezone = %s, want Europe/Berlin", config.DefaultTimezone)
	}
	if config.PingInterval != 30*time.Second {
		t.Errorf("PingInterval = %v, want 30s", config.PingInterval)
	}
	if config.Live {
		t.Error("Live should default to false")
	}
	if config.LogFormat != "auto" {
		t.Errorf("LogFormat = %s, want auto", config.LogFormat)
	}
	if len(config.APIKeys) != 0 {
		t.Errorf("APIKeys = %v, want none", config.APIKeys)
	}
}

// TestConfig_EnvironmentVariables verifies environment variable loading.
func TestConfig_EnvironmentVariables(t *testing.T) {
	isolate(t)
	t.Setenv("EVENTFLOW_EVENTS_PATH", "/srv/events")
	t.Setenv("EVENTFLOW_LIVE", "true")
	t.Setenv("EVENTFLOW_RESCAN_SCHEDULE", "@every 1m")
	t.Setenv("EVENTFLOW_PING_INTERVAL", "5s")
	t.Setenv("EVENTFLOW_API_KEY", "secret")
	t.Setenv("EVENTFLOW_API_IDENTITY", "bot")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.EventsPath != "/srv/events" {
		t.Errorf("EventsPath = %s, want /srv/events", config.EventsPath)
	}
	if !config.Live {
		t.Error("EVENTFLOW_LIVE not loaded")
	}
	if config.RescanSchedule != "@every 1m" {
		t.Errorf("RescanSchedule = %q, want @every 1m", config.RescanSchedule)
	}
	if config.PingInterval != 5*time.Second {
		t.Errorf("PingInterval = %v, want 5s", config.PingInterval)
	}
	if config.APIKeys["secret"] != "bot" {
		t.Errorf("APIKeys = %v, want secret -> bot", config.APIKeys)
	}
}

// TestConfig_File verifies that a config file is read and that the
// environment still wins over it.
func TestConfig_File(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "eventflow.yaml")
	content := `
listen_addr: 0.0.0.0:9000
default_timezone: Asia/Tokyo
api_keys:
  k1: alice
  k2: bob
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EVENTFLOW_LISTEN_ADDR", "127.0.0.1:9100")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.ConfigFile != path {
		t.Errorf("ConfigFile = %s, want %s", config.ConfigFile, path)
	}
	if config.DefaultTimezone != "Asia/Tokyo" {
		t.Errorf("DefaultTimezone = %s, want Asia/Tokyo", config.DefaultTimezone)
	}
	if config.ListenAddr != "127.0.0.1:9100" {
		t.Errorf("ListenAddr = %s, want env override", config.ListenAddr)
	}
	if len(config.APIKeys) != 2 || config.APIKeys["k2"] != "bob" {
		t.Errorf("APIKeys = %v", config.APIKeys)
	}
}

// TestConfig_DotEnv verifies .env loading from the working directory.
func TestConfig_DotEnv(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("EVENTFLOW_LOCATIONS_PATH=/srv/loc\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv sets the variable process-wide; restore it afterwards.
	t.Setenv("EVENTFLOW_LOCATIONS_PATH", "")
	os.Unsetenv("EVENTFLOW_LOCATIONS_PATH")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if config.LocationsPath != "/srv/loc" {
		t.Errorf("LocationsPath = %s, want /srv/loc", config.LocationsPath)
	}
}

// TestConfig_MissingFile verifies an explicit config file must exist.
func TestConfig_MissingFile(t *testing.T) {
	dir := isolate(t)

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
	var cfgErr *errors.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("error = %T, want *errors.ConfigError", err)
	}
}

// TestConfig_Validate verifies rejected combinations.
func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			EventsPath:    "/ev",
			LocationsPath: "/loc",
			ListenAddr:    "127.0.0.1:0",
			PingInterval:  time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "live with schedule", mutate: func(c *Config) { c.Live, c.RescanSchedule = true, "@every 1m" }},
		{name: "schedule without live", mutate: func(c *Config) { c.RescanSchedule = "@every 1m" }, wantErr: true},
		{name: "zero ping interval", mutate: func(c *Config) { c.PingInterval = 0 }, wantErr: true},
		{name: "empty listen address", mutate: func(c *Config) { c.ListenAddr = "" }, wantErr: true},
		{name: "empty events path", mutate: func(c *Config) { c.EventsPath = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestConfig_UpdateFromFlags verifies that only set flags override config.
func TestConfig_UpdateFromFlags(t *testing.T) {
	c := &Config{Format: "yaml", LogLevel: "error"}

	c.UpdateFromFlags(true, false, false, "", "")
	if !c.Verbose {
		t.Error("Verbose not applied")
	}
	if c.Format != "yaml" {
		t.Errorf("Format = %s, want yaml kept", c.Format)
	}
	if c.LogLevel != "error" {
		t.Errorf("LogLevel = %s, want error kept", c.LogLevel)
	}

	c.UpdateFromFlags(false, false, true, "json", "trace")
	if c.Format != "json" || !c.NoColor || c.logLevelFlag != "trace" {
		t.Errorf("flags not applied: %+v", c)
	}
}
