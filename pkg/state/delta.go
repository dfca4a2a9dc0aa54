package state

import (
	"fmt"

	"github.com/agentstation/eventflow/pkg/errors"
	"github.com/agentstation/eventflow/pkg/events"
)

// DeltaKind tags a Delta. The numeric values are the wire tags.
type DeltaKind uint8

// Delta kinds.
const (
	KindPing DeltaKind = iota
	KindError
	KindNoEvent
	KindCurrentEvent
	KindLatestVersion
)

var deltaKindNames = map[DeltaKind]string{
	KindPing:          "ping",
	KindError:         "error",
	KindNoEvent:       "no_event",
	KindCurrentEvent:  "current_event",
	KindLatestVersion: "latest_version",
}

// String returns the snake_case name used in JSON.
func (k DeltaKind) String() string {
	if name, ok := deltaKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("DeltaKind(%d)", uint8(k))
}

// ParseDeltaKind is the inverse of DeltaKind.String.
func ParseDeltaKind(s string) (DeltaKind, bool) {
	for k, name := range deltaKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Delta is one ordered unit of change. Only the fields for its Kind are set.
type Delta struct {
	Kind DeltaKind

	// Error
	Debug   string
	Display string

	// CurrentEvent
	Event events.ResolvedEvent

	// LatestVersion
	Version Version
}

// Ping is a liveness message with no state change.
func Ping() Delta { return Delta{Kind: KindPing} }

// NoEvent clears the current event.
func NoEvent() Delta { return Delta{Kind: KindNoEvent} }

// CurrentEvent sets the current event.
func CurrentEvent(ev events.ResolvedEvent) Delta {
	return Delta{Kind: KindCurrentEvent, Event: ev}
}

// LatestVersion sets the deployed version.
func LatestVersion(v Version) Delta {
	return Delta{Kind: KindLatestVersion, Version: v}
}

// ErrorDelta converts err into a terminal Error delta.
func ErrorDelta(err error) Delta {
	return Delta{Kind: KindError, Debug: errors.Debug(err), Display: err.Error()}
}

// IsTerminal reports whether no delta may follow d.
func (d Delta) IsTerminal() bool {
	return d.Kind == KindError
}

// String renders d for logs.
func (d Delta) String() string {
	switch d.Kind {
	case KindError:
		return fmt.Sprintf("error(%s)", d.Display)
	case KindCurrentEvent:
		return fmt.Sprintf("current_event(%s, %s)", d.Event.ID, d.Event.Timezone)
	case KindLatestVersion:
		return fmt.Sprintf("latest_version(%s)", d.Version)
	default:
		return d.Kind.String()
	}
}

// Apply reduces d into s. Applying an Error delta is a programming error and
// panics: Error deltas are forwarded to clients, never applied.
func Apply(s *State, d Delta) {
	switch d.Kind {
	case KindPing:
	case KindError:
		panic(fmt.Sprintf("tried to apply error delta: %s", d.Display))
	case KindNoEvent:
		s.Event = nil
	case KindCurrentEvent:
		ev := d.Event
		s.Event = &ev
	case KindLatestVersion:
		s.LatestVersion = d.Version
	default:
		panic(fmt.Sprintf("unknown delta kind %d", d.Kind))
	}
}
