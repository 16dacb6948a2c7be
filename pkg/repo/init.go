package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rvs-vcs/rvs/internal/config"
	"github.com/rvs-vcs/rvs/internal/rvserr"
	"github.com/rvs-vcs/rvs/pkg/object"
)

var ErrRefCASMismatch = errors.New("ref compare-and-swap mismatch")
var ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")

// RefUpdateReflogError indicates the ref file update succeeded, but
// appending the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"update ref %q: %s (old=%s new=%s): %v",
		e.Ref, ErrRefUpdatedButReflogAppendFailed, e.OldHash, e.NewHash, e.Err,
	)
}

func (e *RefUpdateReflogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second

	repoDirName = ".rvs"
)

// Init creates a new RVS repository at path. It creates the .rvs/ directory
// structure: HEAD, objects/, refs/heads/, config. Returns an error if a
// .rvs entry (directory or worktree-link file) already exists.
func Init(path string) (*Repo, error) {
	rvsDir := filepath.Join(path, repoDirName)

	if _, err := os.Stat(rvsDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", rvsDir)
	}

	dirs := []string{
		filepath.Join(rvsDir, "objects"),
		filepath.Join(rvsDir, "refs", "heads"),
		filepath.Join(rvsDir, "logs", "refs", "heads"),
		filepath.Join(rvsDir, "worktrees"),
		filepath.Join(rvsDir, "hooks"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	headPath := filepath.Join(rvsDir, "HEAD")
	if err := os.WriteFile(headPath, []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	if err := config.Save(filepath.Join(rvsDir, "config"), config.Default()); err != nil {
		return nil, fmt.Errorf("init: write config: %w", err)
	}

	return newRepo(path, rvsDir, rvsDir), nil
}

// Open locates the enclosing worktree starting from path and opens it,
// per the Worktree Registry discovery algorithm: walk parents until a
// ".rvs" entry is found; a directory is the main repository, a file is a
// linked worktree's pointer back to its metadata directory.
func Open(path string) (*Repo, error) {
	if override := os.Getenv("RVS_DIR"); override != "" {
		return openAt(filepath.Dir(override), override)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		marker := filepath.Join(cur, repoDirName)
		info, statErr := os.Stat(marker)
		if statErr == nil {
			if info.IsDir() {
				return newRepo(cur, marker, marker), nil
			}
			return openLinkedWorktree(cur, marker)
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, rvserr.New(rvserr.NotARepository, "not an rvs repository (or any parent up to /)")
		}
		cur = parent
	}
}

func openAt(rootDir, rvsDir string) (*Repo, error) {
	info, err := os.Stat(rvsDir)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if info.IsDir() {
		return newRepo(rootDir, rvsDir, rvsDir), nil
	}
	return openLinkedWorktree(rootDir, rvsDir)
}

// openLinkedWorktree parses a ".rvs" file ("rvsdir: <path>") and resolves
// the shared object store / ref namespace via that worktree's commondir.
func openLinkedWorktree(rootDir, linkFile string) (*Repo, error) {
	data, err := os.ReadFile(linkFile)
	if err != nil {
		return nil, fmt.Errorf("open: read %s: %w", linkFile, err)
	}
	line := strings.TrimSpace(string(data))
	target := strings.TrimPrefix(line, "rvsdir: ")
	if target == line {
		return nil, fmt.Errorf("open: malformed worktree link file %s", linkFile)
	}

	commonDirBytes, err := os.ReadFile(filepath.Join(target, "commondir"))
	if err != nil {
		return nil, fmt.Errorf("open: read commondir: %w", err)
	}
	commonDir := strings.TrimSpace(string(commonDirBytes))
	if !filepath.IsAbs(commonDir) {
		commonDir = filepath.Join(target, commonDir)
	}

	return newRepo(rootDir, target, commonDir), nil
}

// Head reads this worktree's HEAD. If the content starts with "ref: ", it
// returns the ref path (e.g. "refs/heads/main"). Otherwise the raw content
// is a detached hash string.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.RVSDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimRight(string(data), "\n")

	if strings.HasPrefix(content, "ref: ") {
		return strings.TrimPrefix(content, "ref: "), nil
	}
	return content, nil
}

// refFilePath maps a ref name to its on-disk location. "HEAD" is
// per-worktree; everything else lives in the shared CommonDir.
func (r *Repo) refFilePath(name string) string {
	if name == "HEAD" {
		return filepath.Join(r.RVSDir, "HEAD")
	}
	if strings.HasPrefix(name, "refs/") {
		return filepath.Join(r.CommonDir, name)
	}
	return filepath.Join(r.CommonDir, "refs", "heads", name)
}

// ResolveRef resolves a ref name to an object hash.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	if name == "HEAD" {
		head, err := r.Head()
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(head, "refs/") {
			return r.ResolveRef(head)
		}
		return object.Hash(head), nil
	}

	refPath := r.refFilePath(name)
	data, err := os.ReadFile(refPath)
	if err != nil {
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}
	return object.Hash(strings.TrimRight(string(data), "\n")), nil
}

// UpdateRef writes a hash to the named ref, with no CAS check.
func (r *Repo) UpdateRef(name string, h object.Hash) error {
	return r.UpdateRefCAS(name, h)
}

// UpdateRefCAS writes a hash to the named ref using lockfile + rename
// atomic semantics. If expectedOld is provided, the update only succeeds
// when the current ref hash matches it.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}
	hasExpectedOld := len(expectedOld) == 1
	wantOldHash := object.Hash("")
	if hasExpectedOld {
		wantOldHash = expectedOld[0]
	}

	refPath := r.refFilePath(name)

	dir := filepath.Dir(refPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldHash, err := readRefHash(refPath)
	if err != nil {
		return fmt.Errorf("update ref %q: read old hash: %w", name, err)
	}
	if hasExpectedOld && oldHash != wantOldHash {
		return fmt.Errorf(
			"update ref %q: %w (expected %s, found %s)",
			name, ErrRefCASMismatch, wantOldHash, oldHash,
		)
	}

	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update ref %q: sync: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false

	if err := r.appendReflog(name, oldHash, h, "update"); err != nil {
		return &RefUpdateReflogError{Ref: name, OldHash: oldHash, NewHash: h, Err: err}
	}

	return nil
}

// WriteSymbolicRef points name at target ("refs/heads/<branch>") using the
// same lock+rename path as UpdateRefCAS, for HEAD updates that move between
// branches rather than advancing a commit hash.
func (r *Repo) WriteSymbolicRef(name, target string) error {
	refPath := r.refFilePath(name)
	dir := filepath.Dir(refPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write symbolic ref %q: mkdir: %w", name, err)
	}
	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("write symbolic ref %q: lock: %w", name, err)
	}
	if _, err := lockFile.WriteString("ref: " + target + "\n"); err != nil {
		lockFile.Close()
		os.Remove(lockPath)
		return fmt.Errorf("write symbolic ref %q: write: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		os.Remove(lockPath)
		return fmt.Errorf("write symbolic ref %q: close: %w", name, err)
	}
	if err := os.Rename(lockPath, refPath); err != nil {
		os.Remove(lockPath)
		return fmt.Errorf("write symbolic ref %q: rename: %w", name, err)
	}
	return nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	line := strings.TrimSpace(string(data))
	if strings.HasPrefix(line, "ref: ") {
		return "", nil
	}
	return object.Hash(line), nil
}
