package version_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/eventflow/internal/version"
	"github.com/agentstation/eventflow/pkg/errors"
)

func TestGitProvider(t *testing.T) {
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("sil"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "eventflow", Email: "eventflow@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	got, err := version.NewGitProvider(dir).LatestVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hash.String(), got.String())
}

func TestGitProviderErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("not a repository", func(t *testing.T) {
		_, err := version.NewGitProvider(t.TempDir()).LatestVersion(ctx)
		require.Error(t, err)
		assert.Equal(t, errors.KindVersionLookup, errors.KindOf(err))
		assert.Contains(t, err.Error(), "git error")
	})

	t.Run("empty repository has no HEAD", func(t *testing.T) {
		dir := t.TempDir()
		_, err := gogit.PlainInit(dir, false)
		require.NoError(t, err)
		_, err = version.NewGitProvider(dir).LatestVersion(ctx)
		assert.Equal(t, errors.KindVersionLookup, errors.KindOf(err))
	})
}
