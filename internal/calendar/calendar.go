// Package calendar renders the current event as an iCalendar document.
package calendar

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/agentstation/eventflow/pkg/events"
	"github.com/agentstation/eventflow/pkg/state"
)

const productID = "-//eventflow//current event//EN"

// PropertyVersion carries the deployed version on every rendered event.
const PropertyVersion ical.ComponentProperty = "X-EVENTFLOW-VERSION"

// Build returns a calendar holding occ, or an empty calendar when occ is
// nil. stamp is used as DTSTAMP.
func Build(occ *events.Occurrence, v state.Version, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName("Current event")

	if occ == nil {
		return cal
	}

	ev := cal.AddEvent(UID(occ))
	ev.SetDtStampTime(stamp)
	ev.SetStartAt(occ.Start)
	ev.SetEndAt(occ.End)
	ev.SetSummary(occ.Event.ID)
	ev.SetDescription("Timezone: " + occ.Event.Timezone)
	ev.AddProperty(PropertyVersion, v.String())
	return cal
}

// Render writes the calendar for occ to w.
func Render(w io.Writer, occ *events.Occurrence, v state.Version, stamp time.Time) error {
	return Build(occ, v, stamp).SerializeTo(w)
}

// UID identifies one occurrence of an event.
func UID(occ *events.Occurrence) string {
	return fmt.Sprintf("%s-%d@eventflow", occ.Event.ID, occ.Start.Unix())
}
