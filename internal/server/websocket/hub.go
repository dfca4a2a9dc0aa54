package websocket

import (
	"sync"

	"github.com/rs/zerolog"
)

// Hub tracks open session connections so a shutdown can close them;
// http.Server.Shutdown does not touch hijacked connections.
type Hub struct {
	clients map[*Conn]struct{}
	mu      sync.RWMutex
	logger  *zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		clients: make(map[*Conn]struct{}),
		logger:  logger,
	}
}

// Register adds c to the hub.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().
		Str("client_id", c.id).
		Int("total_clients", total).
		Msg("WebSocket client connected")
}

// Unregister removes c from the hub.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().
		Str("client_id", c.id).
		Int("total_clients", total).
		Msg("WebSocket client disconnected")
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every registered connection.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Conn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Conn]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.Close()
	}
	if len(clients) > 0 {
		h.logger.Info().Int("clients", len(clients)).Msg("Closed WebSocket clients")
	}
}
