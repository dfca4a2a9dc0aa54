// Package handlers provides the HTTP handlers of the eventflow server.
package handlers

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/eventflow/internal/node"
	"github.com/agentstation/eventflow/internal/server/sse"
	ws "github.com/agentstation/eventflow/internal/server/websocket"
	"github.com/agentstation/eventflow/internal/session"
	"github.com/agentstation/eventflow/pkg/events"
	"github.com/agentstation/eventflow/pkg/state"
)

// StateReader is the read side of the state node.
type StateReader interface {
	Current(ctx context.Context) (state.Snapshot, error)
	Phase() node.Phase
	SubscriberCount() int
}

// Deps are the collaborators of the handlers.
type Deps struct {
	Node     StateReader
	Sessions *session.Manager
	SSE      *sse.Handler
	Hub      *ws.Hub
	Events   events.EventSource
	Resolver *events.Resolver
	Logger   *zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	Deps
	upgrader  websocket.Upgrader
	startTime time.Time
}

// New creates a new Handlers instance.
func New(deps Deps) *Handlers {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		nop := zerolog.Nop()
		deps.Logger = &nop
	}
	return &Handlers{
		Deps:      deps,
		upgrader:  ws.NewUpgrader(),
		startTime: deps.Now(),
	}
}
