package handlers

import (
	"bytes"
	"net/http"

	"github.com/agentstation/eventflow/internal/calendar"
	"github.com/agentstation/eventflow/internal/server/response"
	"github.com/agentstation/eventflow/pkg/events"
	"github.com/agentstation/eventflow/pkg/state"
)

// CurrentView is the JSON body of GET /api/v1/current.
type CurrentView struct {
	Event         *events.ResolvedEvent `json:"event"`
	LatestVersion string                `json:"latest_version"`
}

// snapshot loads the node snapshot, writing the error response itself when
// the request cannot be answered.
func (h *Handlers) snapshot(w http.ResponseWriter, r *http.Request) (state.Snapshot, bool) {
	if r.Method != http.MethodGet {
		response.MethodNotAllowed(w, r.Method)
		return state.Snapshot{}, false
	}

	snap, err := h.Node.Current(r.Context())
	if err != nil {
		response.ServiceUnavailable(w, err.Error())
		return state.Snapshot{}, false
	}
	if snap.Failed() {
		response.StateError(w, snap.Err)
		return state.Snapshot{}, false
	}
	return snap, true
}

// HandleCurrent handles GET /api/v1/current.
func (h *Handlers) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	response.OK(w, CurrentView{
		Event:         snap.State.Event,
		LatestVersion: snap.State.LatestVersion.String(),
	})
}

// HandleCurrentICS handles GET /api/v1/current.ics. The occurrence times are
// resolved from the descriptor of the event the node reports as current.
func (h *Handlers) HandleCurrentICS(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	now := h.Now()
	var occ *events.Occurrence
	if snap.State.Event != nil {
		var err error
		occ, err = h.Resolver.Occurrence(r.Context(), h.Events, snap.State.Event.ID, now)
		if err != nil {
			h.Logger.Warn().Err(err).Str("event_id", snap.State.Event.ID).Msg("Failed to resolve current occurrence")
			response.ErrorFromType(w, err)
			return
		}
	}

	var buf bytes.Buffer
	if err := calendar.Render(&buf, occ, snap.State.LatestVersion, now); err != nil {
		response.InternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="current.ics"`)
	_, _ = w.Write(buf.Bytes())
}
