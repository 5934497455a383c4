// Package vcs gives the change detector a read-only view of what files
// moved in the controlling version-control system, without depending on
// any particular VCS beyond "the git binary is on PATH".
package vcs

import "context"

// Oracle answers change-set questions against a repository. A pure
// function of repository state: two calls with the same arguments and no
// intervening commits return the same answer.
type Oracle interface {
	// ChangedFiles returns files that differ between the working tree
	// and HEAD (staged and unstaged).
	ChangedFiles(ctx context.Context) ([]string, error)
	// StagedFiles returns files whose staged content differs from HEAD.
	StagedFiles(ctx context.Context) ([]string, error)
	// DiffAgainst returns files that differ between ref and the working
	// tree.
	DiffAgainst(ctx context.Context, ref string) ([]string, error)
}
