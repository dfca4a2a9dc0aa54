// Package descriptors provides read-only access to the on-disk event and
// location documents. Each document is a JSON file whose name, minus the
// .json suffix, is the descriptor ID.
package descriptors

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agentstation/eventflow/pkg/constants"
	"github.com/agentstation/eventflow/pkg/errors"
)

// naiveLayouts are the accepted zone-less timestamp forms, most specific first.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	constants.TimeFormatNaive,
	"2006-01-02T15:04",
}

// NaiveTime is a wall-clock date and time without a zone. It only becomes an
// instant once a timezone has been resolved for it.
type NaiveTime struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
	Nano   int
}

// ParseNaiveTime parses a timestamp such as "2024-01-01T10:00:00".
func ParseNaiveTime(s string) (NaiveTime, error) {
	for _, layout := range naiveLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return NaiveFromTime(t), nil
		}
	}
	return NaiveTime{}, fmt.Errorf("invalid naive timestamp %q", s)
}

// MustParseNaiveTime is like ParseNaiveTime but panics on error.
func MustParseNaiveTime(s string) NaiveTime {
	n, err := ParseNaiveTime(s)
	if err != nil {
		panic(err)
	}
	return n
}

// NaiveFromTime returns the wall clock of t, discarding its zone.
func NaiveFromTime(t time.Time) NaiveTime {
	return NaiveTime{
		Year:   t.Year(),
		Month:  t.Month(),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
		Nano:   t.Nanosecond(),
	}
}

// In returns the time.Time with this wall clock in loc. Go normalizes
// nonexistent or repeated wall clocks silently; callers needing gap and
// fold detection use events.ToInstant instead.
func (n NaiveTime) In(loc *time.Location) time.Time {
	return time.Date(n.Year, n.Month, n.Day, n.Hour, n.Minute, n.Second, n.Nano, loc)
}

// String formats the wall clock in the canonical descriptor layout.
func (n NaiveTime) String() string {
	return n.In(time.UTC).Format(constants.TimeFormatNaive)
}

// MarshalJSON implements json.Marshaler.
func (n NaiveTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NaiveTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseNaiveTime(s)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// Zone is an IANA timezone validated at decode time.
type Zone struct {
	loc *time.Location
}

// LoadZone looks up an IANA zone by name. The empty name and "Local" are
// rejected: they name no IANA zone and would resolve to UTC or the host zone.
func LoadZone(name string) (Zone, error) {
	if name == "" || name == "Local" {
		return Zone{}, fmt.Errorf("%q is not an IANA timezone name", name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Zone{}, err
	}
	return Zone{loc: loc}, nil
}

// MustLoadZone is like LoadZone but panics on error.
func MustLoadZone(name string) Zone {
	z, err := LoadZone(name)
	if err != nil {
		panic(err)
	}
	return z
}

// Location returns the zone's *time.Location (UTC for the zero Zone).
func (z Zone) Location() *time.Location {
	if z.loc == nil {
		return time.UTC
	}
	return z.loc
}

// IsZero reports whether z was never set.
func (z Zone) IsZero() bool {
	return z.loc == nil
}

// String returns the IANA name.
func (z Zone) String() string {
	return z.Location().String()
}

// MarshalJSON implements json.Marshaler.
func (z Zone) MarshalJSON() ([]byte, error) {
	return json.Marshal(z.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (z *Zone) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	zone, err := LoadZone(name)
	if err != nil {
		return fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	*z = zone
	return nil
}

// Location is a venue and the zone its local times are expressed in.
type Location struct {
	ID       string `json:"-"`
	Timezone Zone   `json:"timezone"`
}

// Event describes one calendar event. Start and End are wall-clock times in
// the event's resolved timezone; an event missing either is never current.
type Event struct {
	ID       string     `json:"-"`
	Start    *NaiveTime `json:"start,omitempty"`
	End      *NaiveTime `json:"end,omitempty"`
	Location *string    `json:"location,omitempty"`
	Timezone *Zone      `json:"timezone,omitempty"`

	// RRule optionally repeats the Start/End occurrence (RFC 5545 RRULE body).
	RRule string `json:"rrule,omitempty"`
}

// Scheduled reports whether the event has both a start and an end.
func (e *Event) Scheduled() bool {
	return e.Start != nil && e.End != nil
}

// EventID derives an event ID from a filename in the events directory.
func EventID(filename string) (string, error) {
	if !utf8.ValidString(filename) {
		return "", errors.WrapDescriptor(errors.DescriptorEvent, filename,
			errors.NewValidationError("filename", filename, "filename was not valid Unicode"))
	}
	id, ok := strings.CutSuffix(filename, constants.DescriptorExt)
	if !ok || id == "" {
		return "", &errors.NonJSONFileError{Filename: filename}
	}
	return id, nil
}

// EventIDs maps a directory listing to event IDs, failing on the first
// non-conforming filename.
func EventIDs(filenames []string) ([]string, error) {
	ids := make([]string, 0, len(filenames))
	for _, name := range filenames {
		id, err := EventID(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
