package repo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rvs-vcs/rvs/internal/rvserr"
	"github.com/rvs-vcs/rvs/pkg/object"
)

// ResolveRevision resolves a revision expression to a commit hash. It
// supports HEAD, branch names, full and abbreviated object hashes, and a
// trailing "~N" first-parent suffix (e.g. "HEAD~2", "main~1",
// "a1b2c3~3"). "~" alone means "~1".
func (r *Repo) ResolveRevision(rev string) (object.Hash, error) {
	base, generations, err := splitParentSuffix(rev)
	if err != nil {
		return "", err
	}

	hash, err := r.resolveRevBase(base)
	if err != nil {
		return "", err
	}

	for i := 0; i < generations; i++ {
		commit, err := r.Store.ReadCommit(hash)
		if err != nil {
			return "", rvserr.Wrap(rvserr.UnknownRev, err, fmt.Sprintf("resolve %q: read %s", rev, hash))
		}
		if len(commit.Parents) == 0 {
			return "", rvserr.New(rvserr.UnknownRev, fmt.Sprintf("resolve %q: %s has no parent", rev, hash))
		}
		hash = commit.Parents[0]
	}

	return hash, nil
}

// splitParentSuffix strips a trailing run of "~N" (or bare "~") suffixes
// from rev and returns the base expression plus the total number of
// generations to walk back.
func splitParentSuffix(rev string) (base string, generations int, err error) {
	base = rev
	for {
		idx := strings.LastIndexByte(base, '~')
		if idx < 0 {
			return base, generations, nil
		}
		suffix := base[idx+1:]
		n := 1
		if suffix != "" {
			n, err = strconv.Atoi(suffix)
			if err != nil || n < 0 {
				return "", 0, rvserr.New(rvserr.UnknownRev, fmt.Sprintf("invalid revision suffix in %q", rev))
			}
		}
		generations += n
		base = base[:idx]
		if base == "" {
			return "", 0, rvserr.New(rvserr.UnknownRev, fmt.Sprintf("invalid revision %q", rev))
		}
	}
}

// resolveRevBase resolves the part of a revision expression before any
// "~N" suffix: HEAD, a branch name, or a full/abbreviated object hash.
func (r *Repo) resolveRevBase(base string) (object.Hash, error) {
	if base == "HEAD" {
		hash, err := r.ResolveRef("HEAD")
		if err != nil {
			return "", rvserr.Wrap(rvserr.UnknownRev, err, "resolve HEAD")
		}
		return hash, nil
	}

	if hash, err := r.ResolveRef("refs/heads/" + base); err == nil {
		return hash, nil
	}

	hash, err := r.Store.Resolve(base)
	if err != nil {
		return "", rvserr.Wrap(rvserr.UnknownRev, err, fmt.Sprintf("resolve revision %q", base))
	}
	return hash, nil
}

// IsAncestor reports whether ancestor is reachable from descendant by
// following first and non-first parents (i.e. ancestor is on descendant's
// history).
func (r *Repo) IsAncestor(ancestor, descendant object.Hash) (bool, error) {
	if ancestor == "" || descendant == "" {
		return false, nil
	}
	if ancestor == descendant {
		return true, nil
	}
	base, err := r.FindMergeBase(ancestor, descendant)
	if err != nil {
		return false, err
	}
	return base == ancestor, nil
}
