package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rvs-vcs/rvs/pkg/object"
)

// refsRoot returns the directory holding all loose refs for the repo.
func (r *Repo) refsRoot() string {
	return filepath.Join(r.CommonDir, "refs")
}

// ListRefs walks the loose ref tree under a prefix (e.g. "heads", "tags")
// and returns every ref found, keyed by its name relative to the refs
// root ("heads/main", "tags/v1"). An empty prefix walks all refs.
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := r.refsRoot()
	walkRoot := root
	if strings.TrimSpace(prefix) != "" {
		walkRoot = filepath.Join(root, filepath.FromSlash(prefix))
	}

	found := make(map[string]object.Hash)
	walkErr := filepath.WalkDir(walkRoot, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		name, hash, err := readLooseRef(root, path)
		if err != nil {
			return err
		}
		found[name] = hash
		return nil
	})
	if os.IsNotExist(walkErr) {
		return found, nil
	}
	if walkErr != nil {
		return nil, fmt.Errorf("list refs: %w", walkErr)
	}
	return found, nil
}

// readLooseRef reads a single ref file and returns its name relative to
// root along with the hash it contains.
func readLooseRef(root, path string) (string, object.Hash, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return filepath.ToSlash(rel), object.Hash(strings.TrimSpace(string(data))), nil
}
