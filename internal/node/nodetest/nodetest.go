// Package nodetest starts state nodes over in-memory descriptor directories
// for tests of the packages that consume them.
package nodetest

import (
	"context"
	"fmt"
	"path"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/eventflow/internal/node"
	"github.com/agentstation/eventflow/internal/version"
	"github.com/agentstation/eventflow/internal/watch"
	"github.com/agentstation/eventflow/pkg/descriptors"
	"github.com/agentstation/eventflow/pkg/events"
	"github.com/agentstation/eventflow/pkg/logging"
	"github.com/agentstation/eventflow/pkg/state"
)

// Fixed values used by every fixture.
var (
	Zone    = descriptors.MustLoadZone("Europe/Berlin")
	Version = state.Version{0xab, 0xcd}
	Now     = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC) // 11:00 in Berlin
)

const (
	EventsDir    = "/ev"
	LocationsDir = "/loc"
)

// Fixture is a started node and the in-memory directory behind it.
type Fixture struct {
	Fs      afero.Fs
	Watcher *watch.Static
	Store   *descriptors.FSStore
	Node    *node.Node
}

// EventJSON renders a one-off event descriptor.
func EventJSON(start, end string) string {
	return fmt.Sprintf(`{"start":%q,"end":%q}`, start, end)
}

// Ongoing is an event descriptor that is current at Now.
var Ongoing = EventJSON("2024-01-01T10:00:00", "2024-01-01T12:00:00")

// Start writes files into the events directory and starts a node over it
// with the clock fixed at Now. The node stops when the test ends.
func Start(t testing.TB, files map[string]string, opts ...node.Option) *Fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(EventsDir, 0o755))
	require.NoError(t, fs.MkdirAll(LocationsDir, 0o755))
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, path.Join(EventsDir, name), []byte(content), 0o644))
	}
	names, err := descriptors.ReadDirNames(fs, EventsDir)
	require.NoError(t, err)

	store := descriptors.NewFSStore(EventsDir, LocationsDir, descriptors.WithFs(fs))
	w := watch.NewStatic(names...)
	opts = append([]node.Option{
		node.WithLogger(logging.NewNopLogger()),
		node.WithClock(func() time.Time { return Now }),
	}, opts...)
	n, err := node.New(w, store, events.NewResolver(store, Zone), version.Static{Version: Version}, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		<-n.Done()
	})
	n.Start(ctx)
	return &Fixture{Fs: fs, Watcher: w, Store: store, Node: n}
}

// Write replaces or creates an event descriptor and announces the new
// directory listing to a live node.
func (f *Fixture) Write(t testing.TB, name, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.Fs, path.Join(EventsDir, name), []byte(content), 0o644))
	f.Announce(t)
}

// Remove deletes an event descriptor and announces the new listing.
func (f *Fixture) Remove(t testing.TB, name string) {
	t.Helper()
	require.NoError(t, f.Fs.Remove(path.Join(EventsDir, name)))
	f.Announce(t)
}

// Announce pushes the current directory listing to the watcher.
func (f *Fixture) Announce(t testing.TB) {
	t.Helper()
	names, err := descriptors.ReadDirNames(f.Fs, EventsDir)
	require.NoError(t, err)
	f.Watcher.Push(names...)
}
