// Package websocket adapts gorilla WebSocket connections to the session
// transport and tracks the connections a server has open.
package websocket

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentstation/eventflow/pkg/constants"
	"github.com/agentstation/eventflow/pkg/errors"
)

// NewUpgrader returns the upgrader used for session connections.
func NewUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(_ *http.Request) bool {
			return true // clients authenticate in-band
		},
	}
}

// Conn is a binary-message connection. It allows one concurrent reader and
// one concurrent writer; Close may be called from any goroutine.
type Conn struct {
	conn      *websocket.Conn
	id        string
	closeOnce sync.Once
}

// NewConn wraps an established gorilla connection.
func NewConn(id string, conn *websocket.Conn) *Conn {
	conn.SetReadLimit(constants.MaxMessageSize)
	return &Conn{conn: conn, id: id}
}

// ID returns the connection identifier.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ReadMessage returns the next binary message. A closed connection yields
// an error wrapping errors.ErrEndOfStream. Text messages are a protocol
// error. ctx is not observed while blocked; Close unblocks a pending read.
func (c *Conn) ReadMessage(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kind, msg, err := c.conn.ReadMessage()
	if err != nil {
		if isClosed(err) {
			return nil, errors.WrapTransport("read", errors.Join(errors.ErrEndOfStream, err))
		}
		return nil, err
	}
	if kind != websocket.BinaryMessage {
		return nil, errors.NewProtocolError("expected a binary message", nil)
	}
	return msg, nil
}

// WriteMessage writes msg as one binary message, bounded by ctx and by
// constants.WriteWait.
func (c *Conn) WriteMessage(ctx context.Context, msg []byte) error {
	deadline := time.Now().Add(constants.WriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, msg)
}

// Close sends a normal close frame and closes the underlying connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		frame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

func isClosed(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure,
	) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}
