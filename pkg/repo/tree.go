package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/rvs-vcs/rvs/pkg/object"
)

// TreeFileEntry represents a single file in a flattened tree.
type TreeFileEntry struct {
	Path     string
	BlobHash object.Hash
	Mode     string
}

// BuildTree converts the flat staging entries into a hierarchical tree
// structure, writing TreeObj objects to the store and returning the root hash.
//
// Staging entries use forward-slash paths (e.g. "pkg/util/util.go").
// BuildTree groups them by directory, recursively creates subtrees, and
// returns the root tree hash.
func (r *Repo) BuildTree(s *Staging) (object.Hash, error) {
	return r.buildTreeDir(s, "")
}

// buildTreeDir builds a TreeObj for the given directory prefix and writes it
// to the store. It returns the tree's hash.
func (r *Repo) buildTreeDir(s *Staging, prefix string) (object.Hash, error) {
	// Collect direct children: files and subdirectory names.
	files := make(map[string]*StagingEntry) // name -> entry
	subdirs := make(map[string]struct{})    // immediate child dir names

	for p, entry := range s.Entries {
		if entry.Conflict {
			continue
		}
		// Determine the path relative to our prefix.
		var rel string
		if prefix == "" {
			rel = p
		} else {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rel = p[len(prefix)+1:]
		}

		// Split into first segment and rest.
		slash := strings.IndexByte(rel, '/')
		if slash < 0 {
			// Direct child file.
			files[rel] = entry
		} else {
			// Child is in a subdirectory.
			subdirs[rel[:slash]] = struct{}{}
		}
	}

	// Build the tree entries, sorted by name.
	names := make([]string, 0, len(files)+len(subdirs))
	for name := range files {
		names = append(names, name)
	}
	for name := range subdirs {
		// Only add if not already a file (a name cannot be both).
		if _, isFile := files[name]; !isFile {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var entries []object.TreeEntry
	for _, name := range names {
		if entry, isFile := files[name]; isFile {
			entries = append(entries, object.TreeEntry{
				Name:     name,
				IsDir:    false,
				Mode:     normalizeFileMode(entry.Mode),
				BlobHash: entry.BlobHash,
			})
		} else {
			// Subdirectory: recurse.
			childPrefix := name
			if prefix != "" {
				childPrefix = prefix + "/" + name
			}
			subHash, err := r.buildTreeDir(s, childPrefix)
			if err != nil {
				return "", fmt.Errorf("build tree %q: %w", childPrefix, err)
			}
			entries = append(entries, object.TreeEntry{
				Name:        name,
				IsDir:       true,
				Mode:        object.TreeModeDir,
				SubtreeHash: subHash,
			})
		}
	}

	treeObj := &object.TreeObj{Entries: entries}
	h, err := r.Store.WriteTree(treeObj)
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

// FlattenTree walks a tree object recursively, returning all file entries
// with their full paths (using forward slashes), sorted by path.
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	result, err := r.flattenTreeRec(h, "")
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string) ([]TreeFileEntry, error) {
	treeObj, err := r.Store.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("flatten tree: read %s: %w", h, err)
	}

	var result []TreeFileEntry
	for _, entry := range treeObj.Entries {
		fullPath := entry.Name
		if prefix != "" {
			fullPath = path.Join(prefix, entry.Name)
		}

		if entry.IsDir {
			sub, err := r.flattenTreeRec(entry.SubtreeHash, fullPath)
			if err != nil {
				return nil, err
			}
			result = append(result, sub...)
		} else {
			result = append(result, TreeFileEntry{
				Path:     fullPath,
				BlobHash: entry.BlobHash,
				Mode:     entry.Mode,
			})
		}
	}
	return result, nil
}

// TreeDiffEntry classifies one path's change between two trees.
type TreeDiffEntry struct {
	Path   string
	Status string // "A", "D", "M", "T"
	Before TreeFileEntry
	After  TreeFileEntry
}

// DiffTree flattens both trees to their file entries and emits the changed
// paths in sorted order, classified as added, deleted, modified (blob OID
// changed), or type-changed (same blob, different file mode). Directories
// are not entries of the flattened trees, so a file replaced by a directory
// shows as a deletion plus additions.
func (r *Repo) DiffTree(fromHash, toHash object.Hash) ([]TreeDiffEntry, error) {
	before := make(map[string]TreeFileEntry)
	if fromHash != "" {
		entries, err := r.FlattenTree(fromHash)
		if err != nil {
			return nil, fmt.Errorf("diff-tree: flatten from: %w", err)
		}
		for _, e := range entries {
			before[e.Path] = e
		}
	}

	after := make(map[string]TreeFileEntry)
	if toHash != "" {
		entries, err := r.FlattenTree(toHash)
		if err != nil {
			return nil, fmt.Errorf("diff-tree: flatten to: %w", err)
		}
		for _, e := range entries {
			after[e.Path] = e
		}
	}

	paths := make(map[string]struct{}, len(before)+len(after))
	for p := range before {
		paths[p] = struct{}{}
	}
	for p := range after {
		paths[p] = struct{}{}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	var diffs []TreeDiffEntry
	for _, p := range sorted {
		b, inBefore := before[p]
		a, inAfter := after[p]
		switch {
		case !inBefore && inAfter:
			diffs = append(diffs, TreeDiffEntry{Path: p, Status: "A", After: a})
		case inBefore && !inAfter:
			diffs = append(diffs, TreeDiffEntry{Path: p, Status: "D", Before: b})
		case inBefore && inAfter && b.BlobHash != a.BlobHash:
			diffs = append(diffs, TreeDiffEntry{Path: p, Status: "M", Before: b, After: a})
		case inBefore && inAfter && b.Mode != a.Mode:
			diffs = append(diffs, TreeDiffEntry{Path: p, Status: "T", Before: b, After: a})
		}
	}
	return diffs, nil
}

// TreeEntryListing is one line of output for ls-tree: either a file or a
// subdirectory (named by its tree hash, not recursed into).
type TreeEntryListing struct {
	Name  string
	IsDir bool
	Mode  string
	Hash  object.Hash
}

// ListTree returns the immediate entries of the tree at h, sorted by name.
// If recursive is true, directories are recursed into and only file entries
// are returned, using full repo-relative paths.
func (r *Repo) ListTree(h object.Hash, recursive bool) ([]TreeEntryListing, error) {
	if recursive {
		files, err := r.FlattenTree(h)
		if err != nil {
			return nil, fmt.Errorf("ls-tree: %w", err)
		}
		out := make([]TreeEntryListing, len(files))
		for i, f := range files {
			out[i] = TreeEntryListing{Name: f.Path, IsDir: false, Mode: f.Mode, Hash: f.BlobHash}
		}
		return out, nil
	}

	treeObj, err := r.Store.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("ls-tree: read %s: %w", h, err)
	}

	out := make([]TreeEntryListing, 0, len(treeObj.Entries))
	for _, e := range treeObj.Entries {
		if e.IsDir {
			out = append(out, TreeEntryListing{Name: e.Name, IsDir: true, Mode: e.Mode, Hash: e.SubtreeHash})
		} else {
			out = append(out, TreeEntryListing{Name: e.Name, IsDir: false, Mode: e.Mode, Hash: e.BlobHash})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
