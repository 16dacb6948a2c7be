package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rvs-vcs/rvs/internal/rvserr"
)

// MoveOptions controls Move's behavior, mirroring the source/destination
// force, skip-errors and dry-run flags of the original mv command.
type MoveOptions struct {
	Force      bool // overwrite an existing destination
	SkipErrors bool // skip (rather than abort on) an untracked source or an existing destination
	DryRun     bool // report what would move without touching disk or the index
	Verbose    bool
}

// Move renames a tracked file within the working tree and the index,
// without touching the object store or requiring a commit. source must be
// tracked in the index; destination must not already exist unless Force is
// set. Neither commits nor stages anything beyond the rename itself: the
// moved path carries over its existing staged blob hash and mode.
func (r *Repo) Move(source, destination string, opts MoveOptions) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("mv: %w", err)
	}

	srcRel, err := r.repoRelPath(source)
	if err != nil {
		return fmt.Errorf("mv: resolve source %q: %w", source, err)
	}
	dstRel, err := r.repoRelPath(destination)
	if err != nil {
		return fmt.Errorf("mv: resolve destination %q: %w", destination, err)
	}

	srcAbs := filepath.Join(r.RootDir, filepath.FromSlash(srcRel))
	if _, statErr := os.Stat(srcAbs); statErr != nil {
		if opts.SkipErrors {
			if opts.Verbose {
				fmt.Printf("Skipping %s: does not exist\n", source)
			}
			return nil
		}
		return rvserr.New(rvserr.UsageError, fmt.Sprintf("fatal: not under version control, source=%s", source))
	}

	entry, tracked := stg.Entries[srcRel]
	if !tracked {
		if opts.SkipErrors {
			if opts.Verbose {
				fmt.Printf("Skipping %s: not under version control\n", source)
			}
			return nil
		}
		return rvserr.New(rvserr.UsageError, fmt.Sprintf("fatal: not under version control, source=%s", source))
	}

	dstAbs := filepath.Join(r.RootDir, filepath.FromSlash(dstRel))
	if _, statErr := os.Stat(dstAbs); statErr == nil && !opts.Force {
		if opts.SkipErrors {
			if opts.Verbose {
				fmt.Printf("Skipping %s -> %s: destination exists\n", source, destination)
			}
			return nil
		}
		return rvserr.New(rvserr.UsageError, fmt.Sprintf("fatal: destination exists, source=%s, destination=%s", source, destination))
	}

	if opts.DryRun {
		fmt.Printf("Renaming %s to %s\n", source, destination)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dstAbs), 0o755); err != nil {
		return fmt.Errorf("mv: mkdir %q: %w", filepath.Dir(dstRel), err)
	}
	if err := os.Rename(srcAbs, dstAbs); err != nil {
		if opts.SkipErrors {
			if opts.Verbose {
				fmt.Printf("Skipping %s: %v\n", source, err)
			}
			return nil
		}
		return rvserr.New(rvserr.UsageError, fmt.Sprintf("fatal: renaming %q failed: %v", source, err))
	}
	r.removeEmptyParents(filepath.Dir(srcAbs))

	moved := *entry
	moved.Path = dstRel
	delete(stg.Entries, srcRel)
	stg.Entries[dstRel] = &moved

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("mv: %w", err)
	}
	r.invalidateStatusCache()

	if opts.Verbose {
		fmt.Printf("Renaming %s to %s\n", source, destination)
	}
	return nil
}
