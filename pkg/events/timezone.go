// Package events resolves event descriptors into zoned intervals and
// determines which event, if any, is current at a given instant.
package events

import (
	"context"
	"sort"
	"time"

	"github.com/agentstation/eventflow/pkg/constants"
	"github.com/agentstation/eventflow/pkg/descriptors"
	"github.com/agentstation/eventflow/pkg/errors"
)

// LocationSource loads location descriptors by ID.
type LocationSource interface {
	Location(ctx context.Context, id string) (*descriptors.Location, error)
}

// Resolver turns event descriptors into zoned intervals.
type Resolver struct {
	locations   LocationSource
	defaultZone descriptors.Zone
}

// NewResolver returns a resolver that falls back to defaultZone for events
// that are online or name no location.
func NewResolver(locations LocationSource, defaultZone descriptors.Zone) *Resolver {
	return &Resolver{locations: locations, defaultZone: defaultZone}
}

// DefaultZone returns the fallback zone.
func (r *Resolver) DefaultZone() descriptors.Zone {
	return r.defaultZone
}

// Timezone returns the effective zone for ev. Precedence: the event's own
// timezone, then the online sentinel (default zone), then the named
// location's zone, then the default zone. A named location that cannot be
// loaded is an error.
func (r *Resolver) Timezone(ctx context.Context, ev *descriptors.Event) (descriptors.Zone, error) {
	return r.timezone(ctx, ev, nil)
}

func (r *Resolver) timezone(ctx context.Context, ev *descriptors.Event, memo map[string]descriptors.Zone) (descriptors.Zone, error) {
	if ev.Timezone != nil {
		return *ev.Timezone, nil
	}
	if ev.Location == nil {
		return r.defaultZone, nil
	}

	name := *ev.Location
	if name == constants.OnlineLocation {
		return r.defaultZone, nil
	}
	if zone, ok := memo[name]; ok {
		return zone, nil
	}

	loc, err := r.locations.Location(ctx, name)
	if err != nil {
		return descriptors.Zone{}, err
	}
	if memo != nil {
		memo[name] = loc.Timezone
	}
	return loc.Timezone, nil
}

// Offsets are sampled every conversionStep for conversionSteps steps on
// either side of a wall clock.
const (
	conversionStep  = 6 * time.Hour
	conversionSteps = 8
)

// ToInstant interprets the wall clock n in loc. A wall clock skipped by a
// forward transition fails with InvalidTimestampError; one repeated by a
// backward transition fails with AmbiguousTimestampError carrying both
// candidate instants.
func ToInstant(n descriptors.NaiveTime, loc *time.Location) (time.Time, error) {
	asUTC := n.In(time.UTC)

	offsets := make(map[int]struct{})
	for k := -conversionSteps; k <= conversionSteps; k++ {
		_, offset := asUTC.Add(time.Duration(k) * conversionStep).In(loc).Zone()
		offsets[offset] = struct{}{}
	}

	var candidates []time.Time
	for offset := range offsets {
		candidate := asUTC.Add(-time.Duration(offset) * time.Second).In(loc)
		if descriptors.NaiveFromTime(candidate) == n {
			candidates = append(candidates, candidate)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Before(candidates[j])
	})

	switch len(candidates) {
	case 0:
		return time.Time{}, &errors.InvalidTimestampError{Local: n.String(), Zone: loc.String()}
	case 1:
		return candidates[0], nil
	default:
		return time.Time{}, &errors.AmbiguousTimestampError{
			Earlier: candidates[0],
			Later:   candidates[len(candidates)-1],
		}
	}
}
