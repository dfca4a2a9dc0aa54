// Package sse streams the current-event deltas to browsers as Server-Sent
// Events, with the same replay, ordering and terminal-error rules as a
// WebSocket session.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/eventflow/internal/session"
	"github.com/agentstation/eventflow/pkg/constants"
	"github.com/agentstation/eventflow/pkg/errors"
	"github.com/agentstation/eventflow/pkg/logging"
	"github.com/agentstation/eventflow/pkg/state"
)

// Message is the JSON form of a delta.
type Message struct {
	Type     string `json:"type"`
	Debug    string `json:"debug,omitempty"`
	Display  string `json:"display,omitempty"`
	ID       string `json:"id,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	Version  string `json:"version,omitempty"`
}

// FromDelta converts d to its JSON form.
func FromDelta(d state.Delta) Message {
	m := Message{Type: d.Kind.String()}
	switch d.Kind {
	case state.KindError:
		m.Debug, m.Display = d.Debug, d.Display
	case state.KindCurrentEvent:
		m.ID, m.Timezone = d.Event.ID, d.Event.Timezone
	case state.KindLatestVersion:
		m.Version = d.Version.String()
	}
	return m
}

var errTerminalSent = errors.New("terminal error already sent")

// Writer writes deltas as SSE events. It is safe for concurrent use and
// refuses every write after an Error delta.
type Writer struct {
	w        http.ResponseWriter
	flusher  http.Flusher
	mu       sync.Mutex
	seq      uint64
	terminal bool
}

// NewWriter prepares w for streaming.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

// Send implements session.Sink.
func (sw *Writer) Send(_ context.Context, d state.Delta) error {
	data, err := json.Marshal(FromDelta(d))
	if err != nil {
		return err
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.terminal {
		return errTerminalSent
	}

	sw.seq++
	if _, err := fmt.Fprintf(sw.w, "event: %s\nid: %d\ndata: %s\n\n", d.Kind, sw.seq, data); err != nil {
		return errors.WrapTransport("write", err)
	}
	sw.flusher.Flush()
	if d.IsTerminal() {
		sw.terminal = true
	}
	return nil
}

func (sw *Writer) terminalSent() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.terminal
}

// Handler serves the delta stream.
type Handler struct {
	node         session.Subscriber
	pingInterval time.Duration
	logger       *zerolog.Logger
	clients      atomic.Int64
}

// NewHandler creates an SSE handler subscribing to n.
func NewHandler(n session.Subscriber, pingInterval time.Duration, logger *zerolog.Logger) *Handler {
	if pingInterval <= 0 {
		pingInterval = constants.DefaultPingInterval
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Handler{node: n, pingInterval: pingInterval, logger: logger}
}

// ClientCount returns the number of connected SSE clients.
func (h *Handler) ClientCount() int {
	return int(h.clients.Load())
}

// ServeHTTP replays the snapshot and forwards live deltas until the client
// goes away or the stream ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx)
	if log == logging.Default() {
		log = h.logger
	}

	sw, err := NewWriter(w)
	if err != nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	h.clients.Add(1)
	defer h.clients.Add(-1)
	log.Debug().Int64("total_clients", h.clients.Load()).Msg("SSE client connected")

	snap, sub, err := h.node.Subscribe(ctx)
	if err != nil {
		if ctx.Err() == nil {
			_ = sw.Send(ctx, state.ErrorDelta(err))
		}
		return
	}
	defer sub.Close()

	// The keepalive must be gone before the handler returns and w is reused.
	kctx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		keepalive(kctx, sw, h.pingInterval)
	}()
	defer wg.Wait()
	defer stop()

	err = session.Stream(ctx, snap, sub, sw)
	switch {
	case err == nil, ctx.Err() != nil, errors.Is(err, errTerminalSent):
		log.Debug().Msg("SSE client disconnected")
	default:
		if !sw.terminalSent() {
			_ = sw.Send(ctx, state.ErrorDelta(err))
		}
		log.Warn().Err(err).Str("kind", string(errors.KindOf(err))).Msg("SSE stream ended with error")
	}
}

func keepalive(ctx context.Context, sw *Writer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sw.Send(ctx, state.Ping()); err != nil {
				return
			}
		}
	}
}
