package output

import (
	"io"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/eventflow/internal/calendar"
	"github.com/agentstation/eventflow/pkg/constants"
	"github.com/agentstation/eventflow/pkg/events"
	"github.com/agentstation/eventflow/pkg/state"
)

// Resolution is the printable result of a one-shot resolution.
type Resolution struct {
	At            utc.Time              `json:"at" yaml:"at"`
	Event         *events.ResolvedEvent `json:"event" yaml:"event"`
	Start         *utc.Time             `json:"start,omitempty" yaml:"start,omitempty"`
	End           *utc.Time             `json:"end,omitempty" yaml:"end,omitempty"`
	NextChange    *utc.Time             `json:"next_change,omitempty" yaml:"next_change,omitempty"`
	LatestVersion string                `json:"latest_version,omitempty" yaml:"latest_version,omitempty"`

	occurrence *events.Occurrence
	version    state.Version
}

// NewResolution builds the printable form of res computed at at. All
// instants are serialized in UTC. A nil version leaves the version out.
func NewResolution(at utc.Time, res events.Resolution, version *state.Version) *Resolution {
	r := &Resolution{At: at, occurrence: res.Current}
	if occ := res.Current; occ != nil {
		ev := occ.Event
		start, end := utc.New(occ.Start), utc.New(occ.End)
		r.Event, r.Start, r.End = &ev, &start, &end
	}
	if !res.NextChange.IsZero() {
		next := utc.New(res.NextChange)
		r.NextChange = &next
	}
	if version != nil {
		r.version = *version
		r.LatestVersion = version.String()
	}
	return r
}

// TableData implements Tabular. Times are shown in the event's zone.
func (r *Resolution) TableData() Data {
	loc := time.UTC
	if r.Event != nil {
		if l, err := time.LoadLocation(r.Event.Timezone); err == nil {
			loc = l
		}
	}
	format := func(t *utc.Time) string {
		if t == nil {
			return "-"
		}
		return t.Time.In(loc).Format(constants.TimeFormatHuman)
	}

	event, zone := "none", "-"
	if r.Event != nil {
		event, zone = r.Event.ID, r.Event.Timezone
	}
	version := r.LatestVersion
	if version == "" {
		version = "-"
	}

	return Data{
		Headers: []string{"Property", "Value"},
		Rows: [][]string{
			{Title("at"), format(&r.At)},
			{Title("event"), event},
			{Title("timezone"), zone},
			{Title("start"), format(r.Start)},
			{Title("end"), format(r.End)},
			{Title("next_change"), format(r.NextChange)},
			{Title("latest_version"), version},
		},
		ColumnAlignment: []Align{AlignLeft, AlignLeft},
	}
}

// WriteICS implements Calendar.
func (r *Resolution) WriteICS(w io.Writer) error {
	return calendar.Render(w, r.occurrence, r.version, r.At.Time)
}
