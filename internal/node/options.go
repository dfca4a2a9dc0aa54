package node

import (
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Node.
type Option func(*Node)

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithLive makes the node recompute on directory changes, on the rescan
// schedule and at the end of the current event. By default the node
// resolves once at start.
func WithLive(live bool) Option {
	return func(n *Node) {
		n.live = live
	}
}

// WithRescanSchedule sets a cron spec (e.g. "@every 5m") for live-mode
// rescans, which also refresh the deployed version.
func WithRescanSchedule(spec string) Option {
	return func(n *Node) {
		n.scheduleSpec = spec
	}
}

// WithBufferSize sets the per-subscriber queue length.
func WithBufferSize(size int) Option {
	return func(n *Node) {
		n.bufferSize = size
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Node) {
		n.now = now
	}
}
