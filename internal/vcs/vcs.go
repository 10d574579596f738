// Package vcs abstracts the source-control system a deployment is cut from.
//
// Provider is the capability set every backend offers. GitLikeProvider adds
// operations that only make sense for systems with movable branch pointers
// over content-addressed commits; callers must type-assert for it rather
// than assume it.
package vcs

import (
	"context"
	"strings"
)

// Provider is implemented by every VCS backend.
type Provider interface {
	// CurrentBranch returns the checked-out branch of the source directory.
	CurrentBranch(ctx context.Context) (string, error)

	// AvailableBranches lists local and remote-tracking branches in the
	// VCS's native order. Remote-tracking branches are named
	// remotes/<remote>/<branch>. Duplicates are kept.
	AvailableBranches(ctx context.Context) ([]string, error)

	// Exists reports whether the source directory holds VCS metadata.
	Exists() bool

	// ExportRef wipes location, recreates it, and writes the file tree of
	// ref into it. The caller must own location exclusively.
	ExportRef(ctx context.Context, ref, location string) error

	// UpdateBranch refreshes a remote-tracking branch from its remote.
	// Local branches are rejected with errclass.ErrConfiguration.
	UpdateBranch(ctx context.Context, branch string) error

	// Log describes the most recent change at ref, prefixed with the
	// deployer identity and the ref.
	Log(ctx context.Context, ref string) (string, error)

	// IsRemote reports whether branch names a remote-tracking branch.
	IsRemote(branch string) bool

	// IsValidRef reports whether ref resolves to an existing revision.
	IsValidRef(ctx context.Context, ref string) bool
}

// GitLikeProvider is implemented by backends with Git-like ref semantics.
type GitLikeProvider interface {
	Provider

	// ResolveReference returns the revision id of ref, shortened when
	// abbreviated is set.
	ResolveReference(ctx context.Context, ref string, abbreviated bool) (string, error)

	// BranchForReference guesses which branch ref belongs to. When several
	// branches contain ref the checked-out one wins, otherwise the first
	// listed. The answer is a best-effort guess, not a unique owner.
	BranchForReference(ctx context.Context, ref string) (string, error)

	// UserIdentity returns "Name <email>" from VCS configuration, falling
	// back to the name alone and then to the OS account name. It never fails.
	UserIdentity(ctx context.Context) string
}

const remotePrefix = "remotes/"

// RemoteName splits a remote-tracking branch name of the form
// remotes/<remote>/<branch...> into its remote and branch parts. ok is false
// for anything else, including a bare remotes/<remote>.
func RemoteName(branch string) (remote, name string, ok bool) {
	rest, found := strings.CutPrefix(branch, remotePrefix)
	if !found {
		return "", "", false
	}
	remote, name, found = strings.Cut(rest, "/")
	if !found || remote == "" || name == "" {
		return "", "", false
	}
	return remote, name, true
}

// IsRemote reports whether branch has the remotes/<remote>/<branch> shape.
func IsRemote(branch string) bool {
	_, _, ok := RemoteName(branch)
	return ok
}
