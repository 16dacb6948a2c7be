package repo

import (
	"fmt"
	"os"
	"path/filepath"
)

// RestorePaths overwrites the given paths in the working tree and/or the
// index from a source tree, without moving HEAD. This is checkout's
// per-path sibling: staged restores the index, worktree restores the
// working tree (at least one of the two must be true). source defaults
// to HEAD.
func (r *Repo) RestorePaths(source string, paths []string, staged, worktree bool) error {
	if !staged && !worktree {
		worktree = true
	}
	if len(paths) == 0 {
		return fmt.Errorf("restore: no paths given")
	}

	if source == "" {
		source = "HEAD"
	}

	srcHash, err := r.ResolveRevision(source)
	if err != nil {
		return fmt.Errorf("restore: resolve %q: %w", source, err)
	}
	commit, err := r.Store.ReadCommit(srcHash)
	if err != nil {
		return fmt.Errorf("restore: read commit %s: %w", srcHash, err)
	}
	files, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return fmt.Errorf("restore: flatten tree: %w", err)
	}
	srcMap := make(map[string]TreeFileEntry, len(files))
	for _, f := range files {
		srcMap[f.Path] = f
	}

	selected := make(map[string]TreeFileEntry)
	for _, p := range paths {
		rel, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		if f, ok := srcMap[rel]; ok {
			selected[rel] = f
			continue
		}
		for path, f := range srcMap {
			if path == rel || hasPathPrefix(path, rel) {
				selected[path] = f
			}
		}
	}
	if len(selected) == 0 {
		return fmt.Errorf("restore: no matching paths found under %q", source)
	}

	var stg *Staging
	if staged {
		stg, err = r.ReadStaging()
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}

	for path, f := range selected {
		blob, err := r.Store.ReadBlob(f.BlobHash)
		if err != nil {
			return fmt.Errorf("restore: read blob for %q: %w", path, err)
		}

		if worktree {
			absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
			if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
				return fmt.Errorf("restore: mkdir for %q: %w", path, err)
			}
			if err := os.WriteFile(absPath, blob.Data, filePermFromMode(f.Mode)); err != nil {
				return fmt.Errorf("restore: write %q: %w", path, err)
			}
		}

		if staged {
			modTime := int64(0)
			size := int64(len(blob.Data))
			if worktree {
				if info, err := os.Stat(filepath.Join(r.RootDir, filepath.FromSlash(path))); err == nil {
					modTime = info.ModTime().UnixNano()
					size = info.Size()
				}
			}
			stg.Entries[path] = &StagingEntry{
				Path:     path,
				BlobHash: f.BlobHash,
				Mode:     normalizeFileMode(f.Mode),
				ModTime:  modTime,
				Size:     size,
			}
		}
	}

	if staged {
		if err := r.WriteStaging(stg); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}

	r.invalidateStatusCache()
	return nil
}

func hasPathPrefix(path, prefix string) bool {
	return len(path) > len(prefix) && path[len(prefix)] == '/' && path[:len(prefix)] == prefix
}
