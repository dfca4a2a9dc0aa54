package server

import (
	"time"

	"github.com/agentstation/eventflow/pkg/constants"
)

// Config holds server configuration.
type Config struct {
	// ListenAddr is the host:port the server binds.
	ListenAddr string

	// PingInterval is the session and SSE heartbeat period.
	PingInterval time.Duration

	// Authentication of the read-only HTTP surfaces. WebSocket sessions
	// always authenticate in-band.
	AuthEnabled bool
	AuthHeader  string

	// HTTP timeouts
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:        constants.DefaultListenAddr,
		PingInterval:      constants.DefaultPingInterval,
		AuthEnabled:       true,
		AuthHeader:        "X-API-Key",
		ReadHeaderTimeout: constants.ReadHeaderTimeout,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   constants.ShutdownTimeout,
	}
}
