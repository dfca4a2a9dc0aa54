package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/eventflow/internal/watch"
)

func receive(t *testing.T, ch <-chan watch.Listing) watch.Listing {
	t.Helper()
	select {
	case l, ok := <-ch:
		require.True(t, ok, "channel closed")
		return l
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for listing")
		return watch.Listing{}
	}
}

func TestDirWatcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := watch.NewDirWatcher(dir, watch.WithDebounce(20*time.Millisecond))
	ch, err := w.Watch(ctx)
	require.NoError(t, err)

	first := receive(t, ch)
	require.NoError(t, first.Err)
	assert.Equal(t, []string{"a.json"}, first.Names)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte("{}"), 0o644))
	next := receive(t, ch)
	require.NoError(t, next.Err)
	assert.Equal(t, []string{"a.json", "b.json"}, next.Names)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDirWatcherMissingDir(t *testing.T) {
	w := watch.NewDirWatcher(filepath.Join(t.TempDir(), "missing"))
	_, err := w.Watch(context.Background())
	assert.Error(t, err)
}

func TestDirWatcherWithFs(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/ev/b.json", []byte("{}"), 0o644))
	require.NoError(t, afero.WriteFile(mem, "/ev/a.json", []byte("{}"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	w := watch.NewDirWatcher("/ev", watch.WithFs(mem))
	ch, err := w.Watch(ctx)
	require.NoError(t, err)

	first := receive(t, ch)
	require.NoError(t, first.Err)
	assert.Equal(t, []string{"a.json", "b.json"}, first.Names)

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	_, err = watch.NewDirWatcher("/missing", watch.WithFs(mem)).Watch(context.Background())
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := watch.NewStatic("a.json")
	ch, err := s.Watch(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.json"}, receive(t, ch).Names)
	s.Push("a.json", "b.json")
	assert.Equal(t, []string{"a.json", "b.json"}, receive(t, ch).Names)

	_, err = s.Watch(ctx)
	assert.Error(t, err)
}
