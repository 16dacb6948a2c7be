package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rvs-vcs/rvs/internal/rvserr"
	"github.com/rvs-vcs/rvs/pkg/object"
)

// branchRefName returns the ref name for a local branch, e.g.
// "refs/heads/main".
func branchRefName(name string) string {
	return filepath.ToSlash(filepath.Join("refs", "heads", name))
}

func (r *Repo) branchRefPath(name string) string {
	return filepath.Join(r.CommonDir, "refs", "heads", name)
}

// CreateBranch points a new branch ref at target. It fails if the branch
// already exists.
func (r *Repo) CreateBranch(name string, target object.Hash) error {
	if err := r.UpdateRefCAS(branchRefName(name), target, ""); err != nil {
		if errors.Is(err, ErrRefCASMismatch) {
			return fmt.Errorf("create branch: branch %q already exists", name)
		}
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// ForceCreateBranch points name at target whether or not it already
// exists, overwriting any prior value. This is checkout -B / branch -f.
func (r *Repo) ForceCreateBranch(name string, target object.Hash) error {
	if err := r.UpdateRefCAS(branchRefName(name), target); err != nil {
		return fmt.Errorf("force-create branch %q: %w", name, err)
	}
	return nil
}

// DeleteBranch removes a branch ref. It fails if the branch is checked
// out, does not exist, or (unless force is true) is not fully merged into
// the current HEAD.
func (r *Repo) DeleteBranch(name string, force bool) error {
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch: cannot delete current branch %q", name)
	}

	target, err := r.ResolveRef(branchRefName(name))
	if err != nil {
		return fmt.Errorf("delete branch: branch %q does not exist", name)
	}

	if !force {
		if err := r.ensureBranchMerged(name, target); err != nil {
			return err
		}
	}

	if err := os.Remove(r.branchRefPath(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete branch: branch %q does not exist", name)
		}
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	return nil
}

// ensureBranchMerged returns BranchNotFullyMerged unless target (the
// branch's tip) is reachable from the current HEAD.
func (r *Repo) ensureBranchMerged(name string, target object.Hash) error {
	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		// No HEAD to compare against (empty repo); nothing to protect.
		return nil
	}
	merged, err := r.IsAncestor(target, headHash)
	if err != nil {
		return fmt.Errorf("delete branch: check merged: %w", err)
	}
	if !merged {
		return rvserr.New(rvserr.BranchNotFullyMerged,
			fmt.Sprintf("branch %q is not fully merged; use -D to force delete", name))
	}
	return nil
}

// ListBranches returns every local branch name, sorted alphabetically.
func (r *Repo) ListBranches() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(r.CommonDir, "refs", "heads"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list branches: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// CurrentBranch returns the branch HEAD points at, or "" if HEAD is
// detached.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}

	const headsPrefix = "refs/heads/"
	if name, ok := strings.CutPrefix(head, headsPrefix); ok {
		return name, nil
	}
	return "", nil
}
