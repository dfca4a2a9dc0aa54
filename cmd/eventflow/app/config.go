package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/eventflow/pkg/constants"
	"github.com/agentstation/eventflow/pkg/errors"
)

// EnvPrefix prefixes every environment variable eventflow reads.
const EnvPrefix = "EVENTFLOW"

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Descriptor directories
	EventsPath    string
	LocationsPath string

	// VersionRepoPath is the git checkout whose HEAD is the deployed version.
	VersionRepoPath string

	// DefaultTimezone applies to events that are online or name no location.
	DefaultTimezone string

	// Server configuration
	ListenAddr   string
	PingInterval time.Duration
	AuthEnabled  bool

	// Live recomputation
	Live           bool
	RescanSchedule string

	// APIKeys maps credentials to identity names.
	APIKeys map[string]string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string

	// logLevelFlag is the explicit --log-level, which beats -v and -q.
	logLevelFlag string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (applied later by UpdateFromFlags)
// 2. Environment variables (EVENTFLOW_*)
// 3. .env files
// 4. Config file (configFile, or ~/.eventflow.yaml / ./.eventflow.yaml)
// 5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "cannot read "+configFile, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".eventflow")

		// A missing config file is fine, a broken one is not.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.NewConfigError("config", "cannot read config file", err)
			}
		}
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color") || os.Getenv("NO_COLOR") != "",
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		EventsPath:      v.GetString("events_path"),
		LocationsPath:   v.GetString("locations_path"),
		VersionRepoPath: v.GetString("version_repo_path"),
		DefaultTimezone: v.GetString("default_timezone"),

		ListenAddr:   v.GetString("listen_addr"),
		PingInterval: v.GetDuration("ping_interval"),
		AuthEnabled:  v.GetBool("auth_enabled"),

		Live:           v.GetBool("live"),
		RescanSchedule: v.GetString("rescan_schedule"),

		APIKeys: apiKeys(v),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LogOutput: v.GetString("log_output"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("events_path", constants.DefaultEventsPath)
	v.SetDefault("locations_path", constants.DefaultLocationsPath)
	v.SetDefault("version_repo_path", constants.DefaultVersionRepoPath)
	v.SetDefault("default_timezone", constants.DefaultTimezone)
	v.SetDefault("listen_addr", constants.DefaultListenAddr)
	v.SetDefault("ping_interval", constants.DefaultPingInterval)
	v.SetDefault("auth_enabled", true)
	v.SetDefault("live", false)
	v.SetDefault("rescan_schedule", "")
	v.SetDefault("api_identity", "default")
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
}

// apiKeys merges the api_keys table with the single EVENTFLOW_API_KEY /
// EVENTFLOW_API_IDENTITY pair.
func apiKeys(v *viper.Viper) map[string]string {
	keys := make(map[string]string)
	for key, identity := range v.GetStringMapString("api_keys") {
		keys[key] = identity
	}
	if key := v.GetString("api_key"); key != "" {
		keys[key] = v.GetString("api_identity")
	}
	return keys
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.EventsPath == "" {
		return errors.NewValidationError("events_path", c.EventsPath, "must not be empty")
	}
	if c.LocationsPath == "" {
		return errors.NewValidationError("locations_path", c.LocationsPath, "must not be empty")
	}
	if c.ListenAddr == "" {
		return errors.NewValidationError("listen_addr", c.ListenAddr, "must not be empty")
	}
	if c.PingInterval <= 0 {
		return errors.NewValidationError("ping_interval", c.PingInterval, "must be positive")
	}
	if c.RescanSchedule != "" && !c.Live {
		return errors.NewValidationError("rescan_schedule", c.RescanSchedule, "requires live mode")
	}
	return nil
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = c.Verbose || verbose
	c.Quiet = c.Quiet || quiet
	c.NoColor = c.NoColor || noColor
	if format != "" {
		c.Format = format
	}
	c.logLevelFlag = logLevel
}

// loadEnvFiles loads environment variables from .env files.
func loadEnvFiles() {
	// godotenv never overrides variables that are already set, so the
	// first file wins: .env.local overrides .env.
	envFiles := []string{
		".env.local",
		".env",
	}

	for _, envFile := range envFiles {
		_ = godotenv.Load(envFile)
	}
}
