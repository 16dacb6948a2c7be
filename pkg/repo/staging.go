package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rvs-vcs/rvs/pkg/object"
)

// StagingEntry records the staged state of a single file.
type StagingEntry struct {
	Path     string      `json:"path"`
	BlobHash object.Hash `json:"blob_hash"`
	Mode     string      `json:"mode,omitempty"`
	ModTime  int64       `json:"mod_time"`
	Size     int64       `json:"size"`

	// Conflict is set when a merge left this path with unresolved sides.
	// Until resolved and re-added, the path cannot be committed.
	Conflict       bool        `json:"conflict,omitempty"`
	BaseBlobHash   object.Hash `json:"base_blob_hash,omitempty"`
	OursBlobHash   object.Hash `json:"ours_blob_hash,omitempty"`
	TheirsBlobHash object.Hash `json:"theirs_blob_hash,omitempty"`
}

// Staging holds the full staging area (index) for an RVS repository.
type Staging struct {
	Entries map[string]*StagingEntry `json:"entries"`
}

// indexPath returns the filesystem path to the staging index file.
func (r *Repo) indexPath() string {
	return filepath.Join(r.RVSDir, "index")
}

// ReadStaging loads the staging area from .rvs/index. If the file does not
// exist, an empty Staging is returned (no error).
func (r *Repo) ReadStaging() (*Staging, error) {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Staging{Entries: make(map[string]*StagingEntry)}, nil
		}
		return nil, fmt.Errorf("read staging: %w", err)
	}

	var stg Staging
	if err := json.Unmarshal(data, &stg); err != nil {
		return nil, fmt.Errorf("read staging: unmarshal: %w", err)
	}
	if stg.Entries == nil {
		stg.Entries = make(map[string]*StagingEntry)
	}
	return &stg, nil
}

// WriteStaging atomically writes the staging area to .rvs/index.
func (r *Repo) WriteStaging(s *Staging) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("write staging: marshal: %w", err)
	}

	// Atomic write via temp file + rename.
	tmp, err := os.CreateTemp(r.RVSDir, ".index-tmp-*")
	if err != nil {
		return fmt.Errorf("write staging: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write staging: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write staging: close: %w", err)
	}

	if err := os.Rename(tmpName, r.indexPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write staging: rename: %w", err)
	}
	return nil
}

// Add stages the given pathspecs. Each pathspec is one of:
//   - "." : stage every tracked-eligible file under the repo root,
//     recursively, skipping anything the ignore checker excludes.
//   - a glob pattern (contains *, ?, or [) matched against repo-root-relative
//     file names in the current directory.
//   - a literal file or directory path; directories are staged recursively.
//
// For each resolved file, the raw content is written as a blob to the
// object store and a StagingEntry is created/updated with the resulting
// hash and file metadata.
func (r *Repo) Add(pathspecs []string) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	ic := NewIgnoreChecker(r.RootDir)

	var files []string
	for _, p := range pathspecs {
		resolved, err := r.resolveAddPathspec(p, ic)
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
		files = append(files, resolved...)
	}

	seen := make(map[string]bool, len(files))
	for _, relPath := range files {
		if seen[relPath] {
			continue
		}
		seen[relPath] = true

		if err := r.addOneFile(stg, relPath); err != nil {
			return fmt.Errorf("add: %w", err)
		}
	}

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	r.invalidateStatusCache()
	return nil
}

func (r *Repo) addOneFile(stg *Staging, relPath string) error {
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read %q: %w", relPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat %q: %w", relPath, err)
	}

	blobHash, err := r.Store.WriteBlob(&object.Blob{Data: content})
	if err != nil {
		return fmt.Errorf("write blob %q: %w", relPath, err)
	}

	stg.Entries[relPath] = &StagingEntry{
		Path:     relPath,
		BlobHash: blobHash,
		Mode:     normalizeFileMode(modeFromFileInfo(info)),
		ModTime:  info.ModTime().UnixNano(),
		Size:     info.Size(),
	}
	return nil
}

// resolveAddPathspec expands a single pathspec into a list of repo-relative
// file paths eligible for staging.
func (r *Repo) resolveAddPathspec(p string, ic *IgnoreChecker) ([]string, error) {
	trimmed := strings.TrimSpace(p)
	if trimmed == "." || trimmed == "./" {
		return r.collectAllEligibleFiles(ic)
	}

	if strings.ContainsAny(trimmed, "*?[") {
		return r.resolveGlobPathspec(trimmed, ic)
	}

	relPath, err := r.repoRelPath(p)
	if err != nil {
		return nil, fmt.Errorf("resolve path %q: %w", p, err)
	}
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", relPath, err)
	}
	if info.IsDir() {
		return r.collectDirFiles(relPath, ic)
	}
	return []string{relPath}, nil
}

// collectAllEligibleFiles walks the repo root recursively, returning every
// file path not excluded by the ignore checker.
func (r *Repo) collectAllEligibleFiles(ic *IgnoreChecker) ([]string, error) {
	return r.collectDirFiles("", ic)
}

// collectDirFiles walks relDir (repo-relative, "" for the root) recursively,
// returning files not excluded by the ignore checker.
func (r *Repo) collectDirFiles(relDir string, ic *IgnoreChecker) ([]string, error) {
	absDir := r.RootDir
	if relDir != "" {
		absDir = filepath.Join(r.RootDir, filepath.FromSlash(relDir))
	}

	var files []string
	err := filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if ic.IsIgnored(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", relDir, err)
	}
	sort.Strings(files)
	return files, nil
}

// resolveGlobPathspec matches a glob pattern against file names in the
// directory component of the pattern (or the repo root), honoring ignores.
func (r *Repo) resolveGlobPathspec(pattern string, ic *IgnoreChecker) ([]string, error) {
	dir := filepath.Dir(filepath.FromSlash(pattern))
	if dir == "." {
		dir = ""
	}
	absDir := filepath.Join(r.RootDir, dir)

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	base := filepath.Base(pattern)
	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ok, err := filepath.Match(base, e.Name())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		if !ok {
			continue
		}
		rel := e.Name()
		if dir != "" {
			rel = filepath.ToSlash(filepath.Join(dir, e.Name()))
		}
		if ic.IsIgnored(rel) {
			continue
		}
		matches = append(matches, rel)
	}
	sort.Strings(matches)
	return matches, nil
}

// Remove unstages and, unless cached is true, deletes the given pathspecs
// from the working tree. A pathspec naming a tracked directory removes
// every staged path under that prefix.
func (r *Repo) Remove(paths []string, cached bool) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	var toRemove []string
	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("remove: resolve path %q: %w", p, err)
		}

		if _, ok := stg.Entries[relPath]; ok {
			toRemove = append(toRemove, relPath)
			continue
		}

		prefix := relPath + "/"
		matched := false
		for entryPath := range stg.Entries {
			if strings.HasPrefix(entryPath, prefix) {
				toRemove = append(toRemove, entryPath)
				matched = true
			}
		}
		if !matched {
			return fmt.Errorf("remove: %q is not tracked", p)
		}
	}

	for _, relPath := range toRemove {
		delete(stg.Entries, relPath)
		if !cached {
			absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
			if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove: delete %q: %w", relPath, err)
			}
			r.removeEmptyParents(filepath.Dir(absPath))
		}
	}

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	r.invalidateStatusCache()
	return nil
}

// repoRelPath converts a path (absolute, or relative to CWD) into a path
// relative to the repository root. If the path is already relative and does
// not start with the repo root, it is assumed to already be repo-relative.
func (r *Repo) repoRelPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.RootDir, err)
		}
		return filepath.ToSlash(rel), nil
	}

	// Try to resolve via CWD.
	cwd, err := os.Getwd()
	if err != nil {
		// Fall through to treating p as repo-relative.
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	abs := filepath.Join(cwd, p)
	// Check if the absolute path lives within the repo root.
	rel, err := filepath.Rel(r.RootDir, abs)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	// If the relative path starts with "..", p is outside the repo.
	// In that case, treat the original p as already repo-relative.
	if len(rel) >= 2 && rel[:2] == ".." {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	return filepath.ToSlash(rel), nil
}
