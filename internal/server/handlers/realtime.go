package handlers

import (
	"net/http"

	"github.com/google/uuid"

	ws "github.com/agentstation/eventflow/internal/server/websocket"
	"github.com/agentstation/eventflow/pkg/logging"
)

// HandleWebSocket upgrades the request and runs one session on it until the
// session ends.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error.
		h.Logger.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	conn := ws.NewConn(uuid.NewString(), raw)
	h.Hub.Register(conn)
	defer func() {
		_ = conn.Close()
		h.Hub.Unregister(conn)
	}()

	ctx := logging.WithField(r.Context(), "remote_addr", r.RemoteAddr)
	_ = h.Sessions.Serve(ctx, conn)
}

// HandleSSE handles GET /api/v1/stream.
func (h *Handlers) HandleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.SSE.ServeHTTP(w, r)
}
