// Package constants provides shared constants used throughout the eventflow codebase.
// This includes default paths, timeouts, buffer sizes and other values that
// should be consistent across the application.
package constants

import "time"

// Path constants
const (
	// DefaultEventsPath is the directory holding one <id>.json descriptor per event
	DefaultEventsPath = "/usr/local/share/fidera/event"

	// DefaultLocationsPath is the directory holding one <id>.json descriptor per location
	DefaultLocationsPath = "/usr/local/share/fidera/loc"

	// DefaultVersionRepoPath is the git checkout whose HEAD commit is the deployed version
	DefaultVersionRepoPath = "/opt/git/github.com/dasgefolge/sil/master"

	// DescriptorExt is the required suffix of every descriptor file
	DescriptorExt = ".json"
)

// Time zone constants
const (
	// DefaultTimezone is the zone used when an event names neither a zone nor a location
	DefaultTimezone = "Europe/Berlin"

	// OnlineLocation is the location sentinel for events without a physical venue
	OnlineLocation = "online"
)

// Network constants
const (
	// DefaultListenAddr is the loopback address the server binds by default
	DefaultListenAddr = "127.0.0.1:24802"

	// DefaultPingInterval is the heartbeat period on client sessions
	DefaultPingInterval = 30 * time.Second

	// WriteWait is the time allowed to write a message to the peer
	WriteWait = 10 * time.Second

	// MaxMessageSize is the largest client message accepted on a session
	MaxMessageSize = 4096

	// ShutdownTimeout bounds graceful server shutdown
	ShutdownTimeout = 30 * time.Second

	// ReadHeaderTimeout bounds reading request headers
	ReadHeaderTimeout = 10 * time.Second
)

// Timeout constants
const (
	// DefaultTimeout is the standard timeout for one-shot operations such as a CLI resolve
	DefaultTimeout = 10 * time.Second

	// WatchDebounce coalesces bursts of filesystem notifications into one listing
	WatchDebounce = 250 * time.Millisecond

	// DefaultRescanSchedule is the cron spec for the periodic live-mode rescan
	DefaultRescanSchedule = "@every 5m"
)

// Limit constants
const (
	// SubscriberBufferSize is the per-subscriber delta queue length
	SubscriberBufferSize = 64

	// ChannelBufferSize is the default buffer size for internal channels
	ChannelBufferSize = 16

	// VersionLength is the byte length of a deployed-code identifier (SHA-1)
	VersionLength = 20
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Format constants
const (
	// TimeFormatNaive is the canonical layout for zone-less descriptor timestamps
	TimeFormatNaive = "2006-01-02T15:04:05"

	// TimeFormatHuman is a human-readable time format
	TimeFormatHuman = "Jan 2, 2006 at 3:04pm MST"

	// TimeFormatLog is the format used in log files
	TimeFormatLog = "2006-01-02 15:04:05.000"
)
