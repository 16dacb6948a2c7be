package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rvs-vcs/rvs/pkg/object"
)

// WorktreeInfo describes one entry in the worktree registry.
type WorktreeInfo struct {
	Name   string
	Path   string
	Head   object.Hash
	Branch string // "" if detached
	Locked bool
	Reason string
}

func (r *Repo) worktreesDir() string {
	return filepath.Join(r.CommonDir, "worktrees")
}

// AddWorktree creates a new linked worktree at path, checked out to target
// (a branch name or commit hash). If createBranch is true, target is
// created as a new branch pointing at the current HEAD before checkout.
func (r *Repo) AddWorktree(path, target string, createBranch bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("worktree add: resolve path: %w", err)
	}
	if _, err := os.Stat(abs); err == nil {
		return fmt.Errorf("worktree add: %q already exists", abs)
	}

	name := sanitizeWorktreeName(filepath.Base(abs))
	metaDir := filepath.Join(r.worktreesDir(), name)
	if _, err := os.Stat(metaDir); err == nil {
		return fmt.Errorf("worktree add: metadata for %q already exists", name)
	}

	isBranch := false
	var targetHash object.Hash
	if createBranch {
		head, err := r.ResolveRef("HEAD")
		if err != nil {
			return fmt.Errorf("worktree add: resolve HEAD: %w", err)
		}
		if err := r.CreateBranch(target, head); err != nil {
			return fmt.Errorf("worktree add: %w", err)
		}
		targetHash = head
		isBranch = true
	} else if branchHash, err := r.ResolveRef("refs/heads/" + target); err == nil {
		targetHash = branchHash
		isBranch = true
	} else {
		targetHash = object.Hash(target)
	}

	if isBranch {
		if inUse, owner := r.branchCheckedOutElsewhere(target); inUse {
			return fmt.Errorf("worktree add: branch %q is already checked out at %q", target, owner)
		}
	}

	commit, err := r.Store.ReadCommit(targetHash)
	if err != nil {
		return fmt.Errorf("worktree add: read target commit %s: %w", targetHash, err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("worktree add: mkdir %q: %w", abs, err)
	}
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return fmt.Errorf("worktree add: mkdir %q: %w", metaDir, err)
	}

	if err := os.WriteFile(filepath.Join(metaDir, "commondir"), []byte(r.CommonDir+"\n"), 0o644); err != nil {
		return fmt.Errorf("worktree add: write commondir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(metaDir, "rvsdir"), []byte(abs+"\n"), 0o644); err != nil {
		return fmt.Errorf("worktree add: write rvsdir: %w", err)
	}

	var headContent string
	if isBranch {
		headContent = "ref: refs/heads/" + target + "\n"
	} else {
		headContent = string(targetHash) + "\n"
	}
	if err := os.WriteFile(filepath.Join(metaDir, "HEAD"), []byte(headContent), 0o644); err != nil {
		return fmt.Errorf("worktree add: write HEAD: %w", err)
	}

	if err := os.WriteFile(filepath.Join(abs, repoDirName), []byte("rvsdir: "+metaDir+"\n"), 0o644); err != nil {
		return fmt.Errorf("worktree add: write link file: %w", err)
	}

	wtRepo := newRepo(abs, metaDir, r.CommonDir)

	files, err := wtRepo.FlattenTree(commit.TreeHash)
	if err != nil {
		return fmt.Errorf("worktree add: flatten tree: %w", err)
	}

	stg := &Staging{Entries: make(map[string]*StagingEntry, len(files))}
	for _, f := range files {
		dest := filepath.Join(abs, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("worktree add: mkdir for %q: %w", f.Path, err)
		}
		blob, err := r.Store.ReadBlob(f.BlobHash)
		if err != nil {
			return fmt.Errorf("worktree add: read blob for %q: %w", f.Path, err)
		}
		if err := os.WriteFile(dest, blob.Data, filePermFromMode(f.Mode)); err != nil {
			return fmt.Errorf("worktree add: write %q: %w", f.Path, err)
		}
		info, err := os.Stat(dest)
		if err != nil {
			return fmt.Errorf("worktree add: stat %q: %w", f.Path, err)
		}
		stg.Entries[f.Path] = &StagingEntry{
			Path:     f.Path,
			BlobHash: f.BlobHash,
			Mode:     normalizeFileMode(f.Mode),
			ModTime:  info.ModTime().UnixNano(),
			Size:     info.Size(),
		}
	}
	if err := wtRepo.WriteStaging(stg); err != nil {
		return fmt.Errorf("worktree add: write staging: %w", err)
	}

	return nil
}

// ListWorktrees enumerates the worktree registry, including the main
// worktree as the first entry.
func (r *Repo) ListWorktrees() ([]WorktreeInfo, error) {
	var infos []WorktreeInfo

	mainHead, _ := r.ResolveRef("HEAD")
	mainBranch, _ := r.CurrentBranch()
	infos = append(infos, WorktreeInfo{
		Name:   "main",
		Path:   r.RootDir,
		Head:   mainHead,
		Branch: mainBranch,
	})

	entries, err := os.ReadDir(r.worktreesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return infos, nil
		}
		return nil, fmt.Errorf("list worktrees: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		metaDir := filepath.Join(r.worktreesDir(), name)
		info, err := r.describeWorktree(name, metaDir)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}

	return infos, nil
}

func (r *Repo) describeWorktree(name, metaDir string) (WorktreeInfo, error) {
	pathBytes, err := os.ReadFile(filepath.Join(metaDir, "rvsdir"))
	if err != nil {
		return WorktreeInfo{}, fmt.Errorf("read rvsdir: %w", err)
	}
	path := strings.TrimSpace(string(pathBytes))

	headBytes, err := os.ReadFile(filepath.Join(metaDir, "HEAD"))
	if err != nil {
		return WorktreeInfo{}, fmt.Errorf("read HEAD: %w", err)
	}
	headContent := strings.TrimSpace(string(headBytes))

	info := WorktreeInfo{Name: name, Path: path}
	if strings.HasPrefix(headContent, "ref: ") {
		refName := strings.TrimPrefix(headContent, "ref: ")
		info.Branch = strings.TrimPrefix(refName, "refs/heads/")
		if h, err := r.ResolveRef(refName); err == nil {
			info.Head = h
		}
	} else {
		info.Head = object.Hash(headContent)
	}

	if reasonBytes, err := os.ReadFile(filepath.Join(metaDir, "locked")); err == nil {
		info.Locked = true
		info.Reason = strings.TrimSpace(string(reasonBytes))
	}

	return info, nil
}

// RemoveWorktree deletes a linked worktree's registry metadata and working
// directory. It refuses to remove a locked worktree unless force is true.
func (r *Repo) RemoveWorktree(name string, force bool) error {
	metaDir := filepath.Join(r.worktreesDir(), name)
	info, err := r.describeWorktree(name, metaDir)
	if err != nil {
		return fmt.Errorf("worktree remove: %q not found: %w", name, err)
	}

	if info.Locked && !force {
		return fmt.Errorf("worktree remove: %q is locked: %s", name, info.Reason)
	}

	if err := os.RemoveAll(info.Path); err != nil {
		return fmt.Errorf("worktree remove: delete working dir: %w", err)
	}
	if err := os.RemoveAll(metaDir); err != nil {
		return fmt.Errorf("worktree remove: delete metadata: %w", err)
	}
	return nil
}

// LockWorktree marks a linked worktree as locked, recording reason.
func (r *Repo) LockWorktree(name, reason string) error {
	metaDir := filepath.Join(r.worktreesDir(), name)
	if _, err := os.Stat(metaDir); err != nil {
		return fmt.Errorf("worktree lock: %q not found: %w", name, err)
	}
	return os.WriteFile(filepath.Join(metaDir, "locked"), []byte(reason+"\n"), 0o644)
}

// UnlockWorktree clears the locked marker for a linked worktree.
func (r *Repo) UnlockWorktree(name string) error {
	metaDir := filepath.Join(r.worktreesDir(), name)
	err := os.Remove(filepath.Join(metaDir, "locked"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("worktree unlock: %w", err)
	}
	return nil
}

// branchCheckedOutElsewhere reports whether branch is the checked-out HEAD
// of the invoking worktree or of any linked worktree, and that worktree's
// path.
func (r *Repo) branchCheckedOutElsewhere(branch string) (bool, string) {
	if current, _ := r.CurrentBranch(); current == branch {
		return true, r.RootDir
	}

	entries, err := os.ReadDir(r.worktreesDir())
	if err != nil {
		return false, ""
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := r.describeWorktree(e.Name(), filepath.Join(r.worktreesDir(), e.Name()))
		if err != nil {
			continue
		}
		if info.Branch == branch {
			return true, info.Path
		}
	}
	return false, ""
}

func sanitizeWorktreeName(base string) string {
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == "/" {
		return "worktree"
	}
	return base
}
