package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rvs-vcs/rvs/pkg/object"
)

// RebaseReport summarizes the outcome of a rebase attempt.
type RebaseReport struct {
	Replayed     []object.Hash // new commit hashes, oldest first
	ConflictedAt object.Hash   // original commit hash that failed to apply, if any
}

// Rebase replays the commits unique to the current branch (since its merge
// base with upstream) onto upstream's tip, one at a time, each as a
// three-way merge against that commit's own parent tree. It stops and
// leaves the branch untouched on the first conflicting commit.
func (r *Repo) Rebase(upstream string) (*RebaseReport, error) {
	if err := r.ensureClean(); err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}

	head, err := r.Head()
	if err != nil {
		return nil, fmt.Errorf("rebase: read HEAD: %w", err)
	}
	if !strings.HasPrefix(head, "refs/heads/") {
		return nil, fmt.Errorf("rebase: HEAD must be on a branch")
	}
	branchRef := head

	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return nil, fmt.Errorf("rebase: resolve HEAD: %w", err)
	}
	upstreamHash, err := r.ResolveRevision(upstream)
	if err != nil {
		return nil, fmt.Errorf("rebase: resolve %q: %w", upstream, err)
	}

	base, err := r.FindMergeBase(headHash, upstreamHash)
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	if base == upstreamHash {
		return &RebaseReport{}, nil // already up to date
	}

	commits, err := r.commitsSince(headHash, base)
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	if len(commits) == 0 {
		// Fast-forward: branch has no commits beyond base.
		if err := r.UpdateRefCAS(branchRef, upstreamHash, headHash); err != nil {
			return nil, fmt.Errorf("rebase: fast-forward: %w", err)
		}
		if err := r.checkoutTreeState(upstreamHash); err != nil {
			return nil, fmt.Errorf("rebase: %w", err)
		}
		return &RebaseReport{}, nil
	}

	newBase := upstreamHash
	report := &RebaseReport{}

	for i := len(commits) - 1; i >= 0; i-- {
		oldHash := commits[i]
		commit, err := r.Store.ReadCommit(oldHash)
		if err != nil {
			return nil, fmt.Errorf("rebase: read commit %s: %w", oldHash, err)
		}

		var parentTree object.Hash
		if len(commit.Parents) > 0 {
			if parent, err := r.Store.ReadCommit(commit.Parents[0]); err == nil {
				parentTree = parent.TreeHash
			}
		}

		newBaseCommit, err := r.Store.ReadCommit(newBase)
		if err != nil {
			return nil, fmt.Errorf("rebase: read commit %s: %w", newBase, err)
		}

		mergedTree, conflicted, err := r.mergeTreesForRebase(
			parentTree, newBaseCommit.TreeHash, commit.TreeHash,
			upstream, shortHashLabel(oldHash),
		)
		if err != nil {
			return nil, fmt.Errorf("rebase: replay %s: %w", oldHash, err)
		}
		if conflicted {
			report.ConflictedAt = oldHash
			return report, fmt.Errorf("rebase: conflict replaying commit %s", oldHash)
		}

		newCommit := &object.CommitObj{
			TreeHash:  mergedTree,
			Parents:   []object.Hash{newBase},
			Author:    commit.Author,
			Committer: buildSignature(commit.Committer.Name + " <" + commit.Committer.Email + ">"),
			Message:   commit.Message,
		}
		newHash, err := r.Store.WriteCommit(newCommit)
		if err != nil {
			return nil, fmt.Errorf("rebase: write commit: %w", err)
		}

		newBase = newHash
		report.Replayed = append(report.Replayed, newHash)
	}

	if err := r.UpdateRefCAS(branchRef, newBase, headHash); err != nil {
		return nil, fmt.Errorf("rebase: update %q: %w", branchRef, err)
	}
	if err := r.checkoutTreeState(newBase); err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}

	return report, nil
}

// shortHashLabel truncates a commit hash to the 7-character form used to
// label the replayed commit's side of a rebase conflict marker.
func shortHashLabel(h object.Hash) string {
	s := string(h)
	if len(s) > 7 {
		return s[:7]
	}
	return s
}

// commitsSince returns the commits reachable from start (exclusive of base)
// via first-parent links, newest first.
func (r *Repo) commitsSince(start, base object.Hash) ([]object.Hash, error) {
	var hashes []object.Hash
	current := start
	for current != "" && current != base {
		hashes = append(hashes, current)
		commit, err := r.Store.ReadCommit(current)
		if err != nil {
			return nil, fmt.Errorf("read commit %s: %w", current, err)
		}
		if len(commit.Parents) == 0 {
			break
		}
		current = commit.Parents[0]
	}
	return hashes, nil
}

// mergeTreesForRebase three-way merges base/ours/theirs trees and writes the
// result as a new tree object, used to replay one commit onto a new parent.
// oursLabel and theirsLabel tag any conflict markers written along the way.
func (r *Repo) mergeTreesForRebase(baseHash, oursHash, theirsHash object.Hash, oursLabel, theirsLabel string) (object.Hash, bool, error) {
	baseFiles, err := r.flattenTreeOrEmpty(baseHash)
	if err != nil {
		return "", false, err
	}
	oursFiles, err := r.flattenTreeOrEmpty(oursHash)
	if err != nil {
		return "", false, err
	}
	theirsFiles, err := r.flattenTreeOrEmpty(theirsHash)
	if err != nil {
		return "", false, err
	}

	baseMap := byPath(baseFiles)
	oursMap := byPath(oursFiles)
	theirsMap := byPath(theirsFiles)
	allPaths := unionPaths(baseMap, oursMap, theirsMap)

	result := make(map[string]TreeFileEntry)
	conflicted := false

	for _, path := range allPaths {
		b, inBase := baseMap[path]
		o, inOurs := oursMap[path]
		t, inTheirs := theirsMap[path]

		switch {
		case inBase && inOurs && inTheirs:
			fr, content, err := r.mergeThreeWay(path, b, o, t, oursLabel, theirsLabel)
			if err != nil {
				return "", false, err
			}
			if fr.Status == "conflict" {
				conflicted = true
				continue
			}
			h, err := r.Store.WriteBlob(&object.Blob{Data: content})
			if err != nil {
				return "", false, err
			}
			result[path] = TreeFileEntry{Path: path, BlobHash: h, Mode: o.Mode}

		case !inBase && inOurs && inTheirs:
			if o.BlobHash == t.BlobHash {
				result[path] = o
				continue
			}
			conflicted = true

		case inBase && inOurs && !inTheirs:
			if o.BlobHash == b.BlobHash {
				continue // clean delete
			}
			conflicted = true

		case inBase && !inOurs && inTheirs:
			continue // already deleted on our side, theirs unchanged or not

		case !inBase && inOurs && !inTheirs:
			result[path] = o

		case !inBase && !inOurs && inTheirs:
			result[path] = t

		case inBase && !inOurs && !inTheirs:
			continue
		}
	}

	if conflicted {
		return "", true, nil
	}

	treeHash, err := r.buildTreeFromFiles(result)
	if err != nil {
		return "", false, err
	}
	return treeHash, false, nil
}

func (r *Repo) flattenTreeOrEmpty(h object.Hash) ([]TreeFileEntry, error) {
	if h == "" {
		return nil, nil
	}
	return r.FlattenTree(h)
}

// buildTreeFromFiles builds and writes a tree object from a flat path ->
// TreeFileEntry map, mirroring BuildTree's staging-based construction.
func (r *Repo) buildTreeFromFiles(files map[string]TreeFileEntry) (object.Hash, error) {
	stg := &Staging{Entries: make(map[string]*StagingEntry, len(files))}
	for p, f := range files {
		stg.Entries[p] = &StagingEntry{Path: p, BlobHash: f.BlobHash, Mode: normalizeFileMode(f.Mode)}
	}
	return r.BuildTree(stg)
}

// checkoutTreeState overwrites the working tree and index to match the
// given commit's tree, without touching HEAD.
func (r *Repo) checkoutTreeState(commitHash object.Hash) error {
	commit, err := r.Store.ReadCommit(commitHash)
	if err != nil {
		return fmt.Errorf("read commit %s: %w", commitHash, err)
	}
	targetFiles, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return fmt.Errorf("flatten tree: %w", err)
	}

	currentFiles := r.trackedFiles()
	for path := range currentFiles {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %q: %w", path, err)
		}
		r.removeEmptyParents(filepath.Dir(absPath))
	}

	stg := &Staging{Entries: make(map[string]*StagingEntry, len(targetFiles))}
	for _, f := range targetFiles {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return fmt.Errorf("mkdir for %q: %w", f.Path, err)
		}
		blob, err := r.Store.ReadBlob(f.BlobHash)
		if err != nil {
			return fmt.Errorf("read blob for %q: %w", f.Path, err)
		}
		if err := os.WriteFile(absPath, blob.Data, filePermFromMode(f.Mode)); err != nil {
			return fmt.Errorf("write %q: %w", f.Path, err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("stat %q: %w", f.Path, err)
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
		return fmt.Errorf("write staging: %w", err)
	}

	r.invalidateStatusCache()
	return nil
}
