package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rvs-vcs/rvs/pkg/object"
)

// StashEntry records one stashed snapshot: the trees capturing the index
// and the tracked working-tree files at stash time, plus the HEAD they were
// taken against. No commit objects are written for a stash, and untracked
// files are not captured.
type StashEntry struct {
	Message    string      `json:"message"`
	ParentHash object.Hash `json:"parent_hash"`
	IndexTree  object.Hash `json:"index_tree"`
	WorkTree   object.Hash `json:"work_tree"`
	CreatedAt  int64       `json:"created_at"`
}

// stashStack is the on-disk representation of .rvs/rvs-stash, a JSON
// document with a version field (the index file has none).
type stashStack struct {
	Version int          `json:"version"`
	Entries []StashEntry `json:"entries"`
}

func (r *Repo) stashPath() string {
	return filepath.Join(r.CommonDir, "rvs-stash")
}

func (r *Repo) readStashStack() (*stashStack, error) {
	data, err := os.ReadFile(r.stashPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &stashStack{Version: 1}, nil
		}
		return nil, fmt.Errorf("read stash: %w", err)
	}
	var s stashStack
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("read stash: unmarshal: %w", err)
	}
	if s.Version == 0 {
		s.Version = 1
	}
	return &s, nil
}

func (r *Repo) writeStashStack(s *stashStack) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("write stash: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(r.CommonDir, ".rvs-stash-tmp-*")
	if err != nil {
		return fmt.Errorf("write stash: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write stash: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write stash: close: %w", err)
	}
	if err := os.Rename(tmpName, r.stashPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write stash: rename: %w", err)
	}
	return nil
}

// StashPush captures the current index and the tracked working-tree files
// as two tree objects, records them with HEAD in a new stash stack entry,
// then resets the working tree and index back to HEAD.
func (r *Repo) StashPush(message string) (StashEntry, error) {
	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return StashEntry{}, fmt.Errorf("stash push: resolve HEAD: %w", err)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		return StashEntry{}, fmt.Errorf("stash push: %w", err)
	}
	if len(stg.Entries) == 0 {
		return StashEntry{}, fmt.Errorf("stash push: nothing to stash")
	}

	indexTree, err := r.BuildTree(stg)
	if err != nil {
		return StashEntry{}, fmt.Errorf("stash push: build index tree: %w", err)
	}

	workFiles := make(map[string]TreeFileEntry, len(stg.Entries))
	for path, entry := range stg.Entries {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
		data, err := os.ReadFile(absPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue // deleted in the working tree; index tree already records it
			}
			return StashEntry{}, fmt.Errorf("stash push: read %q: %w", path, err)
		}
		blobHash := object.HashObject(object.TypeBlob, data)
		if blobHash != entry.BlobHash {
			if _, err := r.Store.WriteBlob(&object.Blob{Data: data}); err != nil {
				return StashEntry{}, fmt.Errorf("stash push: write blob %q: %w", path, err)
			}
		}
		workFiles[path] = TreeFileEntry{Path: path, BlobHash: blobHash, Mode: entry.Mode}
	}
	workTree, err := r.buildTreeFromFiles(workFiles)
	if err != nil {
		return StashEntry{}, fmt.Errorf("stash push: build work tree: %w", err)
	}

	if message == "" {
		branch, _ := r.CurrentBranch()
		message = fmt.Sprintf("WIP on %s", branch)
	}

	entry := StashEntry{
		Message:    message,
		ParentHash: headHash,
		IndexTree:  indexTree,
		WorkTree:   workTree,
		CreatedAt:  time.Now().Unix(),
	}

	stack, err := r.readStashStack()
	if err != nil {
		return StashEntry{}, fmt.Errorf("stash push: %w", err)
	}
	stack.Entries = append(stack.Entries, entry)
	if err := r.writeStashStack(stack); err != nil {
		return StashEntry{}, fmt.Errorf("stash push: %w", err)
	}

	if err := r.checkoutTreeState(headHash); err != nil {
		return StashEntry{}, fmt.Errorf("stash push: reset to HEAD: %w", err)
	}

	return entry, nil
}

// StashList returns the stash stack, most recently pushed first.
func (r *Repo) StashList() ([]StashEntry, error) {
	stack, err := r.readStashStack()
	if err != nil {
		return nil, err
	}
	entries := make([]StashEntry, len(stack.Entries))
	for i, e := range stack.Entries {
		entries[len(stack.Entries)-1-i] = e
	}
	return entries, nil
}

// StashPop applies the most recent stash entry as a three-way merge against
// the current HEAD (base = stash's original parent, ours = HEAD, theirs =
// the stashed working tree over the stashed index), then drops it from the
// stack if application succeeded cleanly.
func (r *Repo) StashPop() error {
	return r.stashApply(true)
}

// StashApply is like StashPop but leaves the entry on the stack.
func (r *Repo) StashApply() error {
	return r.stashApply(false)
}

func (r *Repo) stashApply(pop bool) error {
	stack, err := r.readStashStack()
	if err != nil {
		return fmt.Errorf("stash apply: %w", err)
	}
	if len(stack.Entries) == 0 {
		return fmt.Errorf("stash apply: no stash entries")
	}
	entry := stack.Entries[len(stack.Entries)-1]

	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return fmt.Errorf("stash apply: resolve HEAD: %w", err)
	}
	headCommit, err := r.Store.ReadCommit(headHash)
	if err != nil {
		return fmt.Errorf("stash apply: read HEAD commit: %w", err)
	}
	parentCommit, err := r.Store.ReadCommit(entry.ParentHash)
	if err != nil {
		return fmt.Errorf("stash apply: read stash parent: %w", err)
	}

	mergedTree, conflicted, err := r.mergeTreesForRebase(parentCommit.TreeHash, headCommit.TreeHash, entry.WorkTree, "HEAD", "stash")
	if err != nil {
		return fmt.Errorf("stash apply: %w", err)
	}
	if conflicted {
		return fmt.Errorf("stash apply: conflicts applying stash, resolve manually")
	}

	files, err := r.FlattenTree(mergedTree)
	if err != nil {
		return fmt.Errorf("stash apply: flatten merged tree: %w", err)
	}

	stg := &Staging{Entries: make(map[string]*StagingEntry, len(files))}
	for _, f := range files {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return fmt.Errorf("stash apply: mkdir for %q: %w", f.Path, err)
		}
		blob, err := r.Store.ReadBlob(f.BlobHash)
		if err != nil {
			return fmt.Errorf("stash apply: read blob %q: %w", f.Path, err)
		}
		if err := os.WriteFile(absPath, blob.Data, filePermFromMode(f.Mode)); err != nil {
			return fmt.Errorf("stash apply: write %q: %w", f.Path, err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("stash apply: stat %q: %w", f.Path, err)
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
		return fmt.Errorf("stash apply: %w", err)
	}

	r.invalidateStatusCache()

	if pop {
		stack.Entries = stack.Entries[:len(stack.Entries)-1]
		if err := r.writeStashStack(stack); err != nil {
			return fmt.Errorf("stash apply: drop entry: %w", err)
		}
	}

	return nil
}
