package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rvs-vcs/rvs/pkg/object"
)

// Checkout switches the working tree and HEAD to target, which may be a
// branch name or a raw commit hash. It refuses to run over an unclean
// working tree, so uncommitted work is never silently discarded.
func (r *Repo) Checkout(target string) error {
	targetHash, onBranch := r.resolveCheckoutTarget(target)
	return r.checkoutTo(targetHash, onBranch, target)
}

// CheckoutDetached checks out rev (any revision expression: a branch, a
// full or abbreviated OID, or a HEAD~N ancestor expression) without moving
// any branch ref, leaving HEAD detached at the resolved commit.
func (r *Repo) CheckoutDetached(rev string) error {
	targetHash, err := r.ResolveRevision(rev)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	return r.checkoutTo(targetHash, false, "")
}

// checkoutTo replaces the working tree and index with targetHash's tree and
// moves HEAD, either to the branch named branchName (onBranch) or directly
// to targetHash (detached).
func (r *Repo) checkoutTo(targetHash object.Hash, onBranch bool, branchName string) error {
	if err := r.ensureClean(); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	commit, err := r.Store.ReadCommit(targetHash)
	if err != nil {
		return fmt.Errorf("checkout: cannot read commit %s: %w", targetHash, err)
	}
	targetFiles, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return fmt.Errorf("checkout: flatten target tree: %w", err)
	}

	if err := r.replaceWorkingTree(targetFiles); err != nil {
		return err
	}
	if err := r.restageAfterCheckout(targetFiles); err != nil {
		return err
	}
	if err := r.moveHeadToTarget(branchName, targetHash, onBranch); err != nil {
		return err
	}

	r.invalidateStatusCache()
	return nil
}

// resolveCheckoutTarget interprets target as a branch name first, falling
// back to treating it as a raw commit hash.
func (r *Repo) resolveCheckoutTarget(target string) (hash object.Hash, onBranch bool) {
	if branchHash, err := r.ResolveRef("refs/heads/" + target); err == nil {
		return branchHash, true
	}
	return object.Hash(target), false
}

// replaceWorkingTree deletes every currently tracked file and writes the
// contents of targetFiles in its place.
func (r *Repo) replaceWorkingTree(targetFiles []TreeFileEntry) error {
	for path := range r.trackedFiles() {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("checkout: remove %q: %w", path, err)
		}
		r.removeEmptyParents(filepath.Dir(absPath))
	}

	for _, f := range targetFiles {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return fmt.Errorf("checkout: mkdir %q: %w", filepath.Dir(absPath), err)
		}

		blob, err := r.Store.ReadBlob(f.BlobHash)
		if err != nil {
			return fmt.Errorf("checkout: read blob for %q: %w", f.Path, err)
		}
		if err := os.WriteFile(absPath, blob.Data, filePermFromMode(f.Mode)); err != nil {
			return fmt.Errorf("checkout: write %q: %w", f.Path, err)
		}
	}
	return nil
}

// restageAfterCheckout rebuilds the index from scratch to mirror the
// files just written to the working tree.
func (r *Repo) restageAfterCheckout(targetFiles []TreeFileEntry) error {
	stg := &Staging{Entries: make(map[string]*StagingEntry, len(targetFiles))}
	for _, f := range targetFiles {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(f.Path))
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("checkout: stat %q: %w", f.Path, err)
		}
		stg.Entries[f.Path] = &StagingEntry{
			Path:     f.Path,
			BlobHash: f.BlobHash,
			Mode:     normalizeFileMode(f.Mode),
			ModTime:  info.ModTime().UnixNano(),
			Size:     info.Size(),
		}
	}
	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	return nil
}

// moveHeadToTarget updates HEAD to a symbolic ref when checking out a
// branch, or a detached raw hash otherwise.
func (r *Repo) moveHeadToTarget(target string, targetHash object.Hash, onBranch bool) error {
	if onBranch {
		if err := r.WriteSymbolicRef("HEAD", "refs/heads/"+target); err != nil {
			return fmt.Errorf("checkout: update HEAD: %w", err)
		}
		return nil
	}

	// The CAS compares against HEAD's raw content: empty while HEAD is a
	// symbolic ref, the hash itself while HEAD is already detached.
	oldHead := object.Hash("")
	if head, err := r.Head(); err == nil && !strings.HasPrefix(head, "refs/") {
		oldHead = object.Hash(head)
	}
	if err := r.UpdateRefCAS("HEAD", targetHash, oldHead); err != nil {
		return fmt.Errorf("checkout: update HEAD: %w", err)
	}
	return nil
}

// ensureClean fails if the working tree has any staged or unstaged
// changes relative to the index, or any untracked file.
func (r *Repo) ensureClean() error {
	entries, err := r.Status()
	if err != nil {
		return fmt.Errorf("check status: %w", err)
	}
	for _, e := range entries {
		if e.IndexStatus != StatusClean || e.WorkStatus != StatusClean {
			return fmt.Errorf("working tree is not clean (file %q has uncommitted changes)", e.Path)
		}
	}
	return nil
}

// trackedFiles is the union of paths in the HEAD tree and the staging
// index.
func (r *Repo) trackedFiles() map[string]bool {
	files := make(map[string]bool)
	for path := range r.headTreeEntries() {
		files[path] = true
	}
	if stg, err := r.ReadStaging(); err == nil {
		for path := range stg.Entries {
			files[path] = true
		}
	}
	return files
}

// removeEmptyParents deletes dir and any now-empty ancestors, stopping at
// the repository root.
func (r *Repo) removeEmptyParents(dir string) {
	for {
		if dir == r.RootDir || !strings.HasPrefix(dir, r.RootDir) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}
