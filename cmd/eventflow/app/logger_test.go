package app

import (
	"testing"
)

// TestDetermineLogLevel tests the log level precedence logic.
func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected string
	}{
		{
			name:     "default level when nothing set",
			config:   &Config{},
			expected: "info",
		},
		{
			name:     "verbose flag sets debug",
			config:   &Config{Verbose: true},
			expected: "debug",
		},
		{
			name:     "quiet flag sets warn",
			config:   &Config{Quiet: true},
			expected: "warn",
		},
		{
			name:     "both flags prefer quiet",
			config:   &Config{Verbose: true, Quiet: true},
			expected: "warn",
		},
		{
			name:     "configured level used without flags",
			config:   &Config{LogLevel: "error"},
			expected: "error",
		},
		{
			name:     "verbose beats configured level",
			config:   &Config{LogLevel: "error", Verbose: true},
			expected: "debug",
		},
		{
			name:     "explicit log-level overrides verbose",
			config:   &Config{Verbose: true, logLevelFlag: "error"},
			expected: "error",
		},
		{
			name:     "explicit log-level overrides both flags",
			config:   &Config{Verbose: true, Quiet: true, logLevelFlag: "trace"},
			expected: "trace",
		},
		{
			name:     "invalid level falls back to info",
			config:   &Config{logLevelFlag: "loud"},
			expected: "info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := determineLogLevel(tt.config); got != tt.expected {
				t.Errorf("determineLogLevel() = %s, want %s", got, tt.expected)
			}
		})
	}
}

// TestValidateLogLevel tests log level validation.
func TestValidateLogLevel(t *testing.T) {
	for _, level := range []string{"trace", "debug", "info", "warn", "error"} {
		if got := validateLogLevel(level); got != level {
			t.Errorf("validateLogLevel(%q) = %q", level, got)
		}
	}
	if got := validateLogLevel("WARN"); got != "info" {
		t.Errorf("validateLogLevel(WARN) = %q, want info", got)
	}
}
