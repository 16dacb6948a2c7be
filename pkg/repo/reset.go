package repo

import (
	"fmt"
	"strings"

	"github.com/rvs-vcs/rvs/pkg/object"
)

// ResetMode selects how much of the repository state Reset rewrites.
type ResetMode int

const (
	// ResetSoft moves HEAD (and the current branch, if any) only.
	ResetSoft ResetMode = iota
	// ResetMixed additionally rewrites the index to match rev's tree.
	// This is the default mode.
	ResetMixed
	// ResetHard additionally materializes rev's tree into the working
	// tree, deleting tracked paths that no longer exist at rev.
	ResetHard
)

// Reset moves HEAD (and the checked-out branch, if any) to rev, applying
// index and working-tree changes according to mode:
//
//   - ResetSoft:  HEAD only.
//   - ResetMixed: HEAD plus the index, rewritten to rev's tree.
//   - ResetHard:  HEAD, the index, and the working tree, all rewritten to
//     rev's tree; tracked paths absent from rev's tree are deleted.
func (r *Repo) Reset(mode ResetMode, rev string) error {
	targetHash, err := r.ResolveRevision(rev)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	commit, err := r.Store.ReadCommit(targetHash)
	if err != nil {
		return fmt.Errorf("reset: read commit %s: %w", targetHash, err)
	}

	if err := r.moveHeadForReset(targetHash); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	if mode == ResetSoft {
		r.invalidateStatusCache()
		return nil
	}

	targetFiles, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return fmt.Errorf("reset: flatten target tree: %w", err)
	}

	if mode == ResetHard {
		if err := r.replaceWorkingTree(targetFiles); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}

	if err := r.restageAfterCheckout(targetFiles); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	r.invalidateStatusCache()
	return nil
}

// moveHeadForReset advances HEAD's branch to targetHash, or HEAD itself
// if detached.
func (r *Repo) moveHeadForReset(targetHash object.Hash) error {
	head, err := r.Head()
	if err != nil {
		return fmt.Errorf("read HEAD: %w", err)
	}

	if strings.HasPrefix(head, "refs/") {
		old, err := r.ResolveRef(head)
		if err != nil {
			old = ""
		}
		if err := r.UpdateRefCAS(head, targetHash, old); err != nil {
			return fmt.Errorf("update ref %q: %w", head, err)
		}
		return nil
	}

	old, err := r.ResolveRef("HEAD")
	if err != nil {
		old = ""
	}
	if err := r.UpdateRefCAS("HEAD", targetHash, old); err != nil {
		return fmt.Errorf("update detached HEAD: %w", err)
	}
	return nil
}
