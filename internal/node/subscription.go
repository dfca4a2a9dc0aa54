package node

import (
	"sync"

	"github.com/google/uuid"

	"github.com/agentstation/eventflow/pkg/state"
)

// Subscription is one subscriber's ordered delta queue. C closes when the
// node stops, fails, or drops the subscriber; Err then reports why.
type Subscription struct {
	C <-chan state.Delta

	id        string
	ch        chan state.Delta
	node      *Node
	err       error
	closeOnce sync.Once
}

func newSubscription(n *Node, size int) *Subscription {
	ch := make(chan state.Delta, size)
	return &Subscription{
		C:    ch,
		id:   uuid.NewString(),
		ch:   ch,
		node: n,
	}
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string {
	return s.id
}

// Err returns why C was closed: nil after a terminal Error delta, a
// LaggedError when the subscriber fell behind, or ErrNodeStopped on shutdown.
// It must only be called after C is closed.
func (s *Subscription) Err() error {
	return s.err
}

// Close detaches the subscription from the node. It is safe to call more
// than once and after the node has dropped it.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		select {
		case s.node.unregister <- s:
		case <-s.node.done:
		}
	})
}

// finish is called from the node loop only.
func (s *Subscription) finish(err error) {
	s.err = err
	close(s.ch)
}
