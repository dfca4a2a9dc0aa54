// Package watch observes the events directory and yields its listing every
// time the directory or a file in it changes.
package watch

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/agentstation/eventflow/pkg/constants"
	"github.com/agentstation/eventflow/pkg/descriptors"
	"github.com/agentstation/eventflow/pkg/errors"
)

// Listing is the set of filenames present in the directory at one point in
// time, or the error that prevented reading it.
type Listing struct {
	Names []string
	Err   error
}

// Watcher yields directory listings. The first listing on the returned
// channel reflects the directory at the time Watch was called; later ones
// follow changes. The channel closes when ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Listing, error)
}

// DirWatcher watches a directory with fsnotify. On a filesystem other than
// the OS one it yields the initial listing only.
type DirWatcher struct {
	dir      string
	fs       afero.Fs
	debounce time.Duration
	logger   *zerolog.Logger
}

// Option configures a DirWatcher.
type Option func(*DirWatcher)

// WithDebounce sets how long to wait for a burst of notifications to settle.
func WithDebounce(d time.Duration) Option {
	return func(w *DirWatcher) {
		w.debounce = d
	}
}

// WithFs lists the directory through fs instead of the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(w *DirWatcher) {
		w.fs = fs
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(w *DirWatcher) {
		w.logger = logger
	}
}

// NewDirWatcher returns a watcher for dir.
func NewDirWatcher(dir string, opts ...Option) *DirWatcher {
	nop := zerolog.Nop()
	w := &DirWatcher{
		dir:      dir,
		fs:       afero.NewOsFs(),
		debounce: constants.WatchDebounce,
		logger:   &nop,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch lists the directory synchronously, then follows changes in the background.
func (w *DirWatcher) Watch(ctx context.Context) (<-chan Listing, error) {
	if _, ok := w.fs.(*afero.OsFs); !ok {
		return w.watchStatic(ctx)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapIO("watch", w.dir, err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return nil, errors.WrapIO("watch", w.dir, err)
	}

	out := make(chan Listing, constants.ChannelBufferSize)
	out <- w.list()

	go w.run(ctx, fsw, out)
	return out, nil
}

func (w *DirWatcher) watchStatic(ctx context.Context) (<-chan Listing, error) {
	if _, err := w.fs.Stat(w.dir); err != nil {
		return nil, errors.WrapIO("watch", w.dir, err)
	}
	w.logger.Debug().Str("path", w.dir).Msg("Change notifications unavailable on this filesystem")

	out := make(chan Listing, 1)
	out <- w.list()
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

func (w *DirWatcher) list() Listing {
	names, err := descriptors.ReadDirNames(w.fs, w.dir)
	return Listing{Names: names, Err: err}
}

func (w *DirWatcher) run(ctx context.Context, fsw *fsnotify.Watcher, out chan<- Listing) {
	defer close(out)
	defer func() { _ = fsw.Close() }()

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending bool
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.logger.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("Events directory changed")
			if !pending {
				if timer == nil {
					timer = time.NewTimer(w.debounce)
				} else {
					timer.Reset(w.debounce)
				}
				timerC = timer.C
				pending = true
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if !w.send(ctx, out, Listing{Err: errors.WrapIO("watch", w.dir, err)}) {
				return
			}

		case <-timerC:
			pending = false
			timerC = nil
			if !w.send(ctx, out, w.list()) {
				return
			}
		}
	}
}

func (w *DirWatcher) send(ctx context.Context, out chan<- Listing, l Listing) bool {
	select {
	case out <- l:
		return true
	case <-ctx.Done():
		return false
	}
}

// Static is a Watcher whose listings are pushed by hand.
type Static struct {
	mu       sync.Mutex
	initial  []string
	updates  chan Listing
	watching bool
}

// NewStatic returns a Static watcher whose first listing is names.
func NewStatic(names ...string) *Static {
	return &Static{
		initial: names,
		updates: make(chan Listing, constants.ChannelBufferSize),
	}
}

// Push queues a later listing.
func (s *Static) Push(names ...string) {
	s.updates <- Listing{Names: names}
}

// PushErr queues a listing error.
func (s *Static) PushErr(err error) {
	s.updates <- Listing{Err: err}
}

// Watch implements Watcher. It may be called once.
func (s *Static) Watch(ctx context.Context) (<-chan Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watching {
		return nil, errors.New("static watcher already in use")
	}
	s.watching = true

	out := make(chan Listing, 1)
	out <- Listing{Names: s.initial}
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case l := <-s.updates:
				select {
				case out <- l:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
