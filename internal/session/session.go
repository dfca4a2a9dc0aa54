// Package session runs one client connection: handshake, authentication,
// snapshot replay, live delta forwarding and keep-alive.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentstation/eventflow/internal/auth"
	"github.com/agentstation/eventflow/internal/node"
	"github.com/agentstation/eventflow/internal/protocol"
	"github.com/agentstation/eventflow/pkg/constants"
	"github.com/agentstation/eventflow/pkg/errors"
	"github.com/agentstation/eventflow/pkg/logging"
	"github.com/agentstation/eventflow/pkg/state"
)

// Subscriber is the part of the state node a session needs.
type Subscriber interface {
	Subscribe(ctx context.Context) (state.Snapshot, *node.Subscription, error)
}

// GameHandler serves sessions opened with the game purpose. Writes to conn
// are serialized with the session heartbeat.
type GameHandler interface {
	ServeGame(ctx context.Context, id auth.Identity, conn protocol.Conn) error
}

// Manager runs sessions against one state node.
type Manager struct {
	node         Subscriber
	auth         auth.Authenticator
	game         GameHandler
	pingInterval time.Duration
	logger       *zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithGameHandler routes game-purpose sessions to h.
func WithGameHandler(h GameHandler) Option {
	return func(m *Manager) {
		m.game = h
	}
}

// WithPingInterval sets the heartbeat period.
func WithPingInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pingInterval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a session manager.
func NewManager(n Subscriber, a auth.Authenticator, opts ...Option) *Manager {
	nop := zerolog.Nop()
	m := &Manager{
		node:         n,
		auth:         a,
		pingInterval: constants.DefaultPingInterval,
		logger:       &nop,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Serve runs a session on conn until the client disconnects, the node's
// stream ends, or an error occurs. A session that fails before a terminal
// Error delta went out sends one best-effort Error message describing the
// failure. A clean client disconnect returns nil. Cancelling ctx ends the
// session without an Error message and returns the context error.
func (m *Manager) Serve(parent context.Context, conn protocol.Conn) error {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	if logging.FromContext(ctx) == logging.Default() {
		ctx = logging.WithLogger(ctx, m.logger)
	}
	ctx = logging.WithSession(ctx, uuid.NewString())
	log := logging.FromContext(ctx)

	sink := newLockedConn(conn)
	err := m.serve(ctx, cancel, sink)

	if err == nil || errors.Is(err, errClientGone) || errors.Is(err, errTerminalSent) {
		log.Debug().Msg("Session closed")
		return nil
	}
	if parent.Err() != nil {
		log.Debug().Msg("Session cancelled")
		return parent.Err()
	}

	if !sink.terminalSent() {
		wctx, wcancel := context.WithTimeout(context.WithoutCancel(ctx), constants.WriteWait)
		_ = sink.Send(wctx, state.ErrorDelta(err))
		wcancel()
	}
	log.Warn().
		Err(err).
		Str("kind", string(errors.KindOf(err))).
		Msg("Session ended with error")
	return err
}

func (m *Manager) serve(ctx context.Context, cancel context.CancelCauseFunc, sink *lockedConn) error {
	msg, err := sink.ReadMessage(ctx)
	if err != nil {
		return errors.WrapTransport("read", err)
	}
	credential, err := protocol.DecodeCredential(msg)
	if err != nil {
		return err
	}
	identity, err := m.auth.Authenticate(ctx, credential)
	if err != nil {
		return err
	}

	ctx = logging.WithField(ctx, "identity", identity.Name)
	log := logging.FromContext(ctx)
	log.Debug().Msg("Session authenticated")

	go heartbeat(ctx, sink, m.pingInterval)

	msg, err = sink.ReadMessage(ctx)
	if err != nil {
		return errors.WrapTransport("read", err)
	}
	purpose, err := protocol.DecodePurpose(msg)
	if err != nil {
		return err
	}
	log.Debug().Str("purpose", purpose.String()).Msg("Session purpose selected")

	switch purpose {
	case protocol.PurposeCurrentEvent:
		go drain(ctx, cancel, sink)
		return m.streamCurrentEvent(ctx, sink)
	case protocol.PurposeGame:
		if m.game == nil {
			return errors.NewProtocolError("game sessions are not served here", nil)
		}
		return m.game.ServeGame(ctx, identity, sink)
	default:
		return errors.NewProtocolError("unhandled session purpose "+purpose.String(), nil)
	}
}

func (m *Manager) streamCurrentEvent(ctx context.Context, sink Sink) error {
	snap, sub, err := m.node.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	logging.FromContext(ctx).Debug().
		Str("subscription", sub.ID()).
		Bool("failed", snap.Failed()).
		Msg("Session subscribed")
	return Stream(ctx, snap, sub, sink)
}

// Stream replays snap as init deltas and then forwards every delta from sub
// until the subscription ends, a terminal Error delta is sent, or ctx is
// cancelled. It returns nil when the stream ended normally.
func Stream(ctx context.Context, snap state.Snapshot, sub *node.Subscription, sink Sink) error {
	for _, d := range snap.InitDeltas() {
		if err := sink.Send(ctx, d); err != nil {
			return err
		}
		if d.IsTerminal() {
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case d, ok := <-sub.C:
			if !ok {
				return sub.Err()
			}
			if err := sink.Send(ctx, d); err != nil {
				return err
			}
			if d.IsTerminal() {
				return nil
			}
		}
	}
}

// heartbeat sends a Ping every interval until a send fails or ctx ends. A
// failed ping is not reported; the next application send surfaces it.
func heartbeat(ctx context.Context, sink Sink, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sink.Send(ctx, state.Ping()); err != nil {
				return
			}
		}
	}
}

// errClientGone cancels a streaming session whose client closed the connection.
var errClientGone = errors.New("client closed the connection")

// drain reads and discards client messages so the transport keeps handling
// control frames, and cancels the session when the client goes away.
func drain(ctx context.Context, cancel context.CancelCauseFunc, conn protocol.Conn) {
	for {
		_, err := conn.ReadMessage(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, errors.ErrEndOfStream) {
			cancel(errClientGone)
		} else {
			cancel(errors.WrapTransport("read", err))
		}
		return
	}
}
