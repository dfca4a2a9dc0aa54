package events

import (
	"context"
	"io/fs"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/agentstation/eventflow/pkg/descriptors"
	"github.com/agentstation/eventflow/pkg/errors"
)

// ResolvedEvent is the externally visible form of the current event.
type ResolvedEvent struct {
	ID       string `json:"id" yaml:"id"`
	Timezone string `json:"timezone" yaml:"timezone"`
}

// Occurrence is a resolved event together with the interval that made it current.
type Occurrence struct {
	Event ResolvedEvent
	Start time.Time
	End   time.Time
}

// Resolution is the outcome of one resolution pass.
type Resolution struct {
	// Current is nil when no event is active.
	Current *Occurrence

	// NextChange is the earliest instant after now at which the result could
	// differ: the end of the current occurrence or the next start. Zero when
	// nothing is scheduled.
	NextChange time.Time
}

// offsetSlack bounds the distance between a wall clock read as UTC and the
// instant it denotes in any zone.
const offsetSlack = 26 * time.Hour

// interval is the occurrence of one descriptor relevant to now.
type interval struct {
	start, end time.Time
	next       time.Time // next start strictly after now, zero if none
	zone       descriptors.Zone
	scheduled  bool
}

// Interval resolves ev's zone and the occurrence of ev that is ongoing at or
// most recently started before now. Events without both a start and an end
// report ok == false and never consult the location store.
func (r *Resolver) Interval(ctx context.Context, ev *descriptors.Event, now time.Time) (start, end time.Time, ok bool, err error) {
	iv, err := r.interval(ctx, ev, now, nil)
	if err != nil || !iv.scheduled {
		return time.Time{}, time.Time{}, false, err
	}
	return iv.start, iv.end, true, nil
}

func (r *Resolver) interval(ctx context.Context, ev *descriptors.Event, now time.Time, memo map[string]descriptors.Zone) (interval, error) {
	if !ev.Scheduled() {
		return interval{}, nil
	}

	zone, err := r.timezone(ctx, ev, memo)
	if err != nil {
		return interval{}, err
	}
	loc := zone.Location()

	start, err := ToInstant(*ev.Start, loc)
	if err != nil {
		return interval{}, err
	}
	end, err := ToInstant(*ev.End, loc)
	if err != nil {
		return interval{}, err
	}

	iv := interval{start: start, end: end, zone: zone, scheduled: true}
	if start.After(now) {
		iv.next = start
	}
	if ev.RRule == "" {
		return iv, nil
	}

	rule, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		return interval{}, errors.WrapDescriptor(errors.DescriptorEvent, ev.ID, errors.WrapParse("rrule", ev.ID, err))
	}
	// The rule runs over wall clocks, with UTC standing in as a zone without
	// transitions; every occurrence near now goes through ToInstant.
	rule.DTStart(ev.Start.In(time.UTC))
	length := ev.End.In(time.UTC).Sub(ev.Start.In(time.UTC))
	wallNow := descriptors.NaiveFromTime(now.In(loc)).In(time.UTC)

	occurrence := func(wall time.Time) (time.Time, time.Time, error) {
		s, err := ToInstant(descriptors.NaiveFromTime(wall), loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		e, err := ToInstant(descriptors.NaiveFromTime(wall.Add(length)), loc)
		return s, e, err
	}

	for wall := rule.Before(wallNow.Add(offsetSlack), true); !wall.IsZero(); wall = rule.Before(wall, false) {
		s, e, err := occurrence(wall)
		if err != nil {
			return interval{}, err
		}
		if !s.After(now) {
			iv.start, iv.end = s, e
			break
		}
	}

	iv.next = time.Time{}
	for wall := rule.After(wallNow.Add(-offsetSlack), true); !wall.IsZero(); wall = rule.After(wall, false) {
		s, _, err := occurrence(wall)
		if err != nil {
			return interval{}, err
		}
		if s.After(now) {
			iv.next = s
			break
		}
	}
	return iv, nil
}

// ResolveCurrent returns the single event whose interval contains now
// (start <= now < end), or nil when none does. Two or more qualifying
// events fail with MultipleCurrentEventsError.
func (r *Resolver) ResolveCurrent(ctx context.Context, evs []*descriptors.Event, now time.Time) (*Occurrence, error) {
	res, err := r.resolve(ctx, evs, now)
	if err != nil {
		return nil, err
	}
	return res.Current, nil
}

// Resolve is ResolveCurrent plus the next instant the answer could change.
func (r *Resolver) Resolve(ctx context.Context, evs []*descriptors.Event, now time.Time) (Resolution, error) {
	return r.resolve(ctx, evs, now)
}

func (r *Resolver) resolve(ctx context.Context, evs []*descriptors.Event, now time.Time) (Resolution, error) {
	memo := make(map[string]descriptors.Zone)

	var (
		res     Resolution
		current []*Occurrence
	)
	for _, ev := range evs {
		if err := ctx.Err(); err != nil {
			return Resolution{}, err
		}
		iv, err := r.interval(ctx, ev, now, memo)
		if err != nil {
			return Resolution{}, err
		}
		if !iv.scheduled {
			continue
		}

		res.NextChange = earliest(res.NextChange, iv.next)
		if !iv.start.After(now) && now.Before(iv.end) {
			current = append(current, &Occurrence{
				Event: ResolvedEvent{ID: ev.ID, Timezone: iv.zone.String()},
				Start: iv.start,
				End:   iv.end,
			})
		}
	}

	switch len(current) {
	case 0:
	case 1:
		res.Current = current[0]
		res.NextChange = earliest(res.NextChange, current[0].End)
	default:
		ids := make([]string, len(current))
		for i, occ := range current {
			ids[i] = occ.Event.ID
		}
		return Resolution{}, &errors.MultipleCurrentEventsError{IDs: ids}
	}
	return res, nil
}

// EventSource loads event descriptors by ID.
type EventSource interface {
	Event(ctx context.Context, id string) (*descriptors.Event, error)
}

// LoadAndResolve loads every listed event fresh from src and resolves them.
// A listed descriptor that no longer exists when it is read was deleted after
// the listing and counts as absent.
func (r *Resolver) LoadAndResolve(ctx context.Context, src EventSource, ids []string, now time.Time) (Resolution, error) {
	evs := make([]*descriptors.Event, 0, len(ids))
	for _, id := range ids {
		ev, err := src.Event(ctx, id)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Resolution{}, err
		}
		evs = append(evs, ev)
	}
	return r.resolve(ctx, evs, now)
}

func earliest(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	default:
		return a
	}
}

// Occurrence loads one event and returns its occurrence that is ongoing at,
// or most recently started before, now. Unscheduled events yield nil.
func (r *Resolver) Occurrence(ctx context.Context, src EventSource, id string, now time.Time) (*Occurrence, error) {
	ev, err := src.Event(ctx, id)
	if err != nil {
		return nil, err
	}
	iv, err := r.interval(ctx, ev, now, nil)
	if err != nil || !iv.scheduled {
		return nil, err
	}
	return &Occurrence{
		Event: ResolvedEvent{ID: ev.ID, Timezone: iv.zone.String()},
		Start: iv.start,
		End:   iv.end,
	}, nil
}
