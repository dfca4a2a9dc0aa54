// Package node maintains the current-event state and distributes it to
// subscribers as a snapshot followed by an ordered stream of deltas.
//
// A Node is owned by a single goroutine. State, the subscriber registry and
// every recomputation live on that goroutine; subscribers only ever receive
// copies. Registration is handled by the same loop that broadcasts, so the
// snapshot a subscriber receives and the first delta on its channel are
// always adjacent in the node's history.
package node

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/agentstation/eventflow/internal/version"
	"github.com/agentstation/eventflow/internal/watch"
	"github.com/agentstation/eventflow/pkg/constants"
	"github.com/agentstation/eventflow/pkg/descriptors"
	"github.com/agentstation/eventflow/pkg/errors"
	"github.com/agentstation/eventflow/pkg/events"
	"github.com/agentstation/eventflow/pkg/state"
)

// Phase is the node's lifecycle state.
type Phase int

// Node phases.
const (
	Initializing Phase = iota
	Ready
	Failed
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "stopped"
	}
}

// boundarySlack delays boundary recomputation past the boundary itself.
const boundarySlack = 10 * time.Millisecond

// Node is the reactive state node.
type Node struct {
	watcher  watch.Watcher
	events   events.EventSource
	resolver *events.Resolver
	versions version.Provider
	logger   *zerolog.Logger

	live         bool
	schedule     cron.Schedule
	scheduleSpec string
	bufferSize   int
	now          func() time.Time

	startOnce sync.Once
	started   chan struct{}
	done      chan struct{}
	initial   state.Snapshot
	stopWatch context.CancelFunc

	register   chan chan registration
	unregister chan *Subscription
	current    chan chan state.Snapshot
	rescan     chan struct{}

	// mu guards phase and subscriberCount for readers outside the loop.
	mu              sync.RWMutex
	phase           Phase
	subscriberCount int

	// Owned by the loop goroutine.
	snap      state.Snapshot
	subs      map[*Subscription]struct{}
	lastNames []string
	boundary  *time.Timer
	cron      *cron.Cron
}

type registration struct {
	snap state.Snapshot
	sub  *Subscription
}

// New creates a node. Start must be called before Subscribe returns.
func New(w watch.Watcher, src events.EventSource, resolver *events.Resolver, versions version.Provider, opts ...Option) (*Node, error) {
	nop := zerolog.Nop()
	n := &Node{
		watcher:    w,
		events:     src,
		resolver:   resolver,
		versions:   versions,
		logger:     &nop,
		bufferSize: constants.SubscriberBufferSize,
		now:        time.Now,
		started:    make(chan struct{}),
		done:       make(chan struct{}),
		register:   make(chan chan registration),
		unregister: make(chan *Subscription),
		current:    make(chan chan state.Snapshot),
		rescan:     make(chan struct{}, 1),
		subs:       make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}

	if n.scheduleSpec != "" {
		schedule, err := cron.ParseStandard(n.scheduleSpec)
		if err != nil {
			return nil, errors.NewConfigError("node", "invalid rescan schedule "+n.scheduleSpec, err)
		}
		n.schedule = schedule
	}
	if n.bufferSize < 1 {
		return nil, errors.NewValidationError("buffer_size", n.bufferSize, "must be positive")
	}
	return n, nil
}

// Start runs initialization synchronously and then serves subscribers until
// ctx is cancelled. Any initialization failure is captured in the returned
// snapshot and puts the node permanently into the Failed phase; the node
// still serves subscribers in that case. Start only has an effect once.
func (n *Node) Start(ctx context.Context) state.Snapshot {
	n.startOnce.Do(func() {
		listings := n.initialize(ctx)
		n.initial = n.snapshot()
		close(n.started)
		go n.run(ctx, listings)
	})

	<-n.started
	return n.initial
}

func (n *Node) initialize(ctx context.Context) <-chan watch.Listing {
	log := n.logger.With().Str("phase", Initializing.String()).Logger()

	fail := func(err error) <-chan watch.Listing {
		if n.stopWatch != nil {
			n.stopWatch()
		}
		n.snap = state.Snapshot{Err: err}
		n.setPhase(Failed)
		log.Error().
			Err(err).
			Str("kind", string(errors.KindOf(err))).
			Msg("State node initialization failed")
		return nil
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	n.stopWatch = stopWatch

	listings, err := n.watcher.Watch(watchCtx)
	if err != nil {
		stopWatch()
		return fail(err)
	}

	var first watch.Listing
	select {
	case l, ok := <-listings:
		if !ok {
			return fail(errors.WrapIO("list", "", errors.ErrEndOfStream))
		}
		first = l
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	s, res, err := n.compute(ctx, first, state.Version{}, true)
	if err != nil {
		return fail(err)
	}

	n.snap = state.Snapshot{State: s}
	n.lastNames = first.Names
	n.setPhase(Ready)

	ev := log.Info().Str("version", s.LatestVersion.String())
	if s.Event != nil {
		ev = ev.Str("event_id", s.Event.ID).Str("timezone", s.Event.Timezone)
	}
	ev.Bool("live", n.live).Msg("State node initialized")

	if !n.live {
		// Only the first listing is consumed outside live mode.
		stopWatch()
		return nil
	}
	n.scheduleBoundary(res.NextChange)
	return listings
}

// compute derives a new State from a listing. When refreshVersion is false
// the given version is kept.
func (n *Node) compute(ctx context.Context, l watch.Listing, v state.Version, refreshVersion bool) (state.State, events.Resolution, error) {
	if l.Err != nil {
		return state.State{}, events.Resolution{}, l.Err
	}
	ids, err := descriptors.EventIDs(l.Names)
	if err != nil {
		return state.State{}, events.Resolution{}, err
	}
	res, err := n.resolver.LoadAndResolve(ctx, n.events, ids, n.now())
	if err != nil {
		return state.State{}, events.Resolution{}, err
	}
	if refreshVersion {
		if v, err = n.versions.LatestVersion(ctx); err != nil {
			return state.State{}, events.Resolution{}, err
		}
	}

	s := state.State{LatestVersion: v}
	if res.Current != nil {
		ev := res.Current.Event
		s.Event = &ev
	}
	return s, res, nil
}

func (n *Node) run(ctx context.Context, listings <-chan watch.Listing) {
	defer close(n.done)

	if n.live && n.schedule != nil && !n.snap.Failed() {
		n.cron = cron.New()
		n.cron.Schedule(n.schedule, cron.FuncJob(n.requestRescan))
		n.cron.Start()
	}
	defer n.stopTriggers()

	for {
		select {
		case <-ctx.Done():
			n.closeAll(errors.ErrNodeStopped)
			n.setPhase(Stopped)
			n.logger.Info().Msg("State node shut down")
			return

		case reply := <-n.register:
			sub := n.attach()
			reply <- registration{snap: n.snapshot(), sub: sub}

		case sub := <-n.unregister:
			n.detach(sub, nil)

		case reply := <-n.current:
			reply <- n.snapshot()

		case l, ok := <-listings:
			if !ok {
				listings = nil
				continue
			}
			n.lastNames = l.Names
			n.recompute(ctx, l, false, "listing")

		case <-n.rescan:
			n.recompute(ctx, watch.Listing{Names: n.lastNames}, true, "rescan")

		case <-n.boundaryC():
			n.boundary = nil
			n.recompute(ctx, watch.Listing{Names: n.lastNames}, false, "boundary")
		}

		if n.snap.Failed() {
			listings = nil
		}
	}
}

// recompute derives the new state and broadcasts the difference. A failure
// broadcasts one Error delta and fails the node.
func (n *Node) recompute(ctx context.Context, l watch.Listing, refreshVersion bool, trigger string) {
	if !n.live || n.snap.Failed() {
		return
	}

	s, res, err := n.compute(ctx, l, n.snap.State.LatestVersion, refreshVersion)
	if err != nil {
		n.fail(err)
		return
	}

	deltas := state.Diff(n.snap.State, s)
	for _, d := range deltas {
		state.Apply(&n.snap.State, d)
		n.broadcast(d)
	}
	n.scheduleBoundary(res.NextChange)

	n.logger.Debug().
		Str("trigger", trigger).
		Int("deltas", len(deltas)).
		Msg("State recomputed")
}

func (n *Node) fail(err error) {
	n.logger.Error().
		Err(err).
		Str("kind", string(errors.KindOf(err))).
		Msg("State node failed")

	n.broadcast(state.ErrorDelta(err))
	n.snap = state.Snapshot{Err: err}
	n.closeAll(nil)
	n.stopTriggers()
	n.setPhase(Failed)
}

// broadcast queues d on every subscriber. A subscriber whose queue is full
// is dropped rather than delaying the others or losing d silently.
func (n *Node) broadcast(d state.Delta) {
	for sub := range n.subs {
		select {
		case sub.ch <- d:
		default:
			n.logger.Warn().
				Str("subscriber", sub.id).
				Int("capacity", n.bufferSize).
				Msg("Subscriber lagged, dropping")
			n.detach(sub, &errors.LaggedError{Capacity: n.bufferSize})
		}
	}
}

func (n *Node) snapshot() state.Snapshot {
	return state.Snapshot{State: n.snap.State.Clone(), Err: n.snap.Err}
}

func (n *Node) attach() *Subscription {
	sub := newSubscription(n, n.bufferSize)
	if n.snap.Failed() {
		// Nothing can follow the Error; the snapshot already carries it.
		sub.finish(nil)
		return sub
	}
	n.subs[sub] = struct{}{}
	n.updateCount()
	return sub
}

func (n *Node) detach(sub *Subscription, err error) {
	if _, ok := n.subs[sub]; !ok {
		return
	}
	delete(n.subs, sub)
	sub.finish(err)
	n.updateCount()
}

func (n *Node) closeAll(err error) {
	for sub := range n.subs {
		delete(n.subs, sub)
		sub.finish(err)
	}
	n.updateCount()
}

func (n *Node) requestRescan() {
	select {
	case n.rescan <- struct{}{}:
	default:
	}
}

func (n *Node) scheduleBoundary(at time.Time) {
	if n.boundary != nil {
		n.boundary.Stop()
		n.boundary = nil
	}
	if !n.live || at.IsZero() {
		return
	}
	d := at.Sub(n.now()) + boundarySlack
	if d < 0 {
		d = 0
	}
	n.boundary = time.NewTimer(d)
}

func (n *Node) boundaryC() <-chan time.Time {
	if n.boundary == nil {
		return nil
	}
	return n.boundary.C
}

func (n *Node) stopTriggers() {
	if n.stopWatch != nil {
		n.stopWatch()
	}
	if n.boundary != nil {
		n.boundary.Stop()
		n.boundary = nil
	}
	if n.cron != nil {
		n.cron.Stop()
		n.cron = nil
	}
}

func (n *Node) setPhase(p Phase) {
	n.mu.Lock()
	n.phase = p
	n.mu.Unlock()
}

func (n *Node) updateCount() {
	n.mu.Lock()
	n.subscriberCount = len(n.subs)
	n.mu.Unlock()
}

// Phase returns the node's lifecycle phase.
func (n *Node) Phase() Phase {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.phase
}

// SubscriberCount returns the current number of subscribers.
func (n *Node) SubscriberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.subscriberCount
}

// Subscribe returns the current snapshot and a subscription that carries
// every delta applied after it, in order. It waits for initialization.
func (n *Node) Subscribe(ctx context.Context) (state.Snapshot, *Subscription, error) {
	if err := n.awaitStart(ctx); err != nil {
		return state.Snapshot{}, nil, err
	}

	reply := make(chan registration, 1)
	select {
	case n.register <- reply:
	case <-n.done:
		return state.Snapshot{}, nil, errors.ErrNodeStopped
	case <-ctx.Done():
		return state.Snapshot{}, nil, ctx.Err()
	}
	reg := <-reply
	return reg.snap, reg.sub, nil
}

// Current returns the current snapshot without subscribing.
func (n *Node) Current(ctx context.Context) (state.Snapshot, error) {
	if err := n.awaitStart(ctx); err != nil {
		return state.Snapshot{}, err
	}

	reply := make(chan state.Snapshot, 1)
	select {
	case n.current <- reply:
	case <-n.done:
		return state.Snapshot{}, errors.ErrNodeStopped
	case <-ctx.Done():
		return state.Snapshot{}, ctx.Err()
	}
	return <-reply, nil
}

// Rescan asks a live node to re-read descriptors and the version now.
func (n *Node) Rescan() {
	n.requestRescan()
}

// Done is closed once the node has shut down.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

func (n *Node) awaitStart(ctx context.Context) error {
	select {
	case <-n.started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
