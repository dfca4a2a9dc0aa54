package session

import (
	"context"
	"sync"

	"github.com/agentstation/eventflow/internal/protocol"
	"github.com/agentstation/eventflow/pkg/errors"
	"github.com/agentstation/eventflow/pkg/state"
)

// Sink delivers deltas to one client.
type Sink interface {
	Send(ctx context.Context, d state.Delta) error
}

// errTerminalSent is returned by a sink once an Error delta has gone out.
var errTerminalSent = errors.New("terminal error already sent")

// lockedConn serializes every write to a connection. The heartbeat, the
// forwarder and an optional game handler all write through it.
type lockedConn struct {
	protocol.Conn

	mu       sync.Mutex
	terminal bool
}

func newLockedConn(conn protocol.Conn) *lockedConn {
	return &lockedConn{Conn: conn}
}

// WriteMessage implements protocol.Conn.
func (c *lockedConn) WriteMessage(ctx context.Context, msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminal {
		return errTerminalSent
	}
	return errors.WrapTransport("write", c.Conn.WriteMessage(ctx, msg))
}

// Send encodes and writes d. After an Error delta nothing else is written.
func (c *lockedConn) Send(ctx context.Context, d state.Delta) error {
	msg, err := protocol.EncodeDelta(d)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminal {
		return errTerminalSent
	}
	if err := c.Conn.WriteMessage(ctx, msg); err != nil {
		return errors.WrapTransport("write", err)
	}
	if d.IsTerminal() {
		c.terminal = true
	}
	return nil
}

// terminalSent reports whether an Error delta has been written.
func (c *lockedConn) terminalSent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminal
}
