// Package version reports the identifier of the deployed code: the commit
// checked out in a git working copy.
package version

import (
	"context"

	gogit "github.com/go-git/go-git/v5"

	"github.com/agentstation/eventflow/pkg/errors"
	"github.com/agentstation/eventflow/pkg/state"
)

// Provider returns the latest deployed version.
type Provider interface {
	LatestVersion(ctx context.Context) (state.Version, error)
}

// GitProvider reads HEAD of a repository on disk. It opens the repository on
// every call so a deploy that moves HEAD is picked up on the next rescan.
type GitProvider struct {
	path string
}

// NewGitProvider returns a provider for the repository at path.
func NewGitProvider(path string) *GitProvider {
	return &GitProvider{path: path}
}

// LatestVersion returns the hash of the commit HEAD points at.
func (p *GitProvider) LatestVersion(ctx context.Context) (state.Version, error) {
	if err := ctx.Err(); err != nil {
		return state.Version{}, err
	}

	repo, err := gogit.PlainOpenWithOptions(p.path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return state.Version{}, errors.WrapVersion(p.path, err)
	}
	head, err := repo.Head()
	if err != nil {
		return state.Version{}, errors.WrapVersion(p.path, err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return state.Version{}, errors.WrapVersion(p.path, err)
	}
	return state.Version(commit.Hash), nil
}

// Static always reports the same version, or the same error.
type Static struct {
	Version state.Version
	Err     error
}

// LatestVersion implements Provider.
func (s Static) LatestVersion(context.Context) (state.Version, error) {
	return s.Version, s.Err
}
