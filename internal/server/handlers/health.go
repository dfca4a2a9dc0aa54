package handlers

import (
	"net/http"
	"time"

	"github.com/agentstation/eventflow/internal/server/response"
)

// HandleHealth handles GET /health. It reports the state node phase and
// connection counts; a failed node is still a healthy process.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.MethodNotAllowed(w, r.Method)
		return
	}

	data := map[string]any{
		"status":      "healthy",
		"service":     "eventflow",
		"phase":       h.Node.Phase().String(),
		"subscribers": h.Node.SubscriberCount(),
		"uptime":      h.Now().Sub(h.startTime).Round(time.Second).String(),
	}
	if h.Hub != nil {
		data["websocket_clients"] = h.Hub.ClientCount()
	}
	if h.SSE != nil {
		data["sse_clients"] = h.SSE.ClientCount()
	}
	response.OK(w, data)
}
