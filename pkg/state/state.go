// Package state defines the value maintained by the state node, the deltas
// that change it, and the reducer that applies them.
package state

import (
	"encoding/hex"
	"fmt"

	"github.com/agentstation/eventflow/pkg/constants"
	"github.com/agentstation/eventflow/pkg/events"
)

// Version identifies the deployed code (a git commit hash).
type Version [constants.VersionLength]byte

// String returns the lowercase hex form.
func (v Version) String() string {
	return hex.EncodeToString(v[:])
}

// ParseVersion parses a 40 character hex commit hash.
func ParseVersion(s string) (Version, error) {
	var v Version
	b, err := hex.DecodeString(s)
	if err != nil {
		return v, err
	}
	if len(b) != len(v) {
		return v, fmt.Errorf("version must be %d bytes, got %d", len(v), len(b))
	}
	copy(v[:], b)
	return v, nil
}

// State is the authoritative value: the current event, if any, and the
// deployed version.
type State struct {
	Event         *events.ResolvedEvent
	LatestVersion Version
}

// Clone returns a copy that shares no memory with s.
func (s State) Clone() State {
	if s.Event != nil {
		ev := *s.Event
		s.Event = &ev
	}
	return s
}

// Equal reports whether two states hold the same event and version.
func (s State) Equal(other State) bool {
	if s.LatestVersion != other.LatestVersion {
		return false
	}
	if s.Event == nil || other.Event == nil {
		return s.Event == nil && other.Event == nil
	}
	return *s.Event == *other.Event
}

// Snapshot is what a subscriber observes on joining: either a State or the
// terminal error that put the node into the failed state.
type Snapshot struct {
	State State
	Err   error
}

// Failed reports whether the snapshot carries a terminal error.
func (s Snapshot) Failed() bool {
	return s.Err != nil
}

// InitDeltas replays the snapshot as deltas: LatestVersion followed by
// NoEvent or CurrentEvent. A failed snapshot replays as exactly one Error.
func (s Snapshot) InitDeltas() []Delta {
	if s.Err != nil {
		return []Delta{ErrorDelta(s.Err)}
	}
	deltas := []Delta{LatestVersion(s.State.LatestVersion)}
	if s.State.Event != nil {
		return append(deltas, CurrentEvent(*s.State.Event))
	}
	return append(deltas, NoEvent())
}

// Diff returns the deltas that take from to to, in replay order.
func Diff(from, to State) []Delta {
	var deltas []Delta
	if from.LatestVersion != to.LatestVersion {
		deltas = append(deltas, LatestVersion(to.LatestVersion))
	}
	switch {
	case to.Event == nil && from.Event != nil:
		deltas = append(deltas, NoEvent())
	case to.Event != nil && (from.Event == nil || *from.Event != *to.Event):
		deltas = append(deltas, CurrentEvent(*to.Event))
	}
	return deltas
}
