package repo

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rvs-vcs/rvs/internal/hooks"
	"github.com/rvs-vcs/rvs/internal/rvserr"
	"github.com/rvs-vcs/rvs/pkg/object"
)

// CommitSigner runs just before the commit's ref update is attempted. It
// receives the canonical commit bytes; a non-nil error aborts the commit
// before any ref is touched. The returned string is ignored: the commit
// carries no trailer. Tests use it to inject a concurrent ref move and check
// that the ref update's compare-and-swap rejects it (there is no retry).
type CommitSigner func(payload []byte) (string, error)

func buildSignature(author string) object.Signature {
	name, email := splitAuthor(author)
	_, offset := time.Now().Zone()
	return object.Signature{
		Name:     name,
		Email:    email,
		Seconds:  time.Now().Unix(),
		Timezone: formatTZOffset(offset),
	}
}

// splitAuthor accepts either a bare name or a "Name <email>" string.
func splitAuthor(author string) (name, email string) {
	open := strings.LastIndex(author, "<")
	close := strings.LastIndex(author, ">")
	if open >= 0 && close > open {
		name = strings.TrimSpace(author[:open])
		email = author[open+1 : close]
		return name, email
	}
	return author, author + "@localhost"
}

func formatTZOffset(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%s%02d%02d", sign, hours, minutes)
}

// Commit creates a new commit from the current staging area.
//
//  1. Read staging
//  2. BuildTree from staging
//  3. Resolve HEAD to get parent commit hash (if any)
//  4. Create CommitObj with tree hash, parent, author, current timestamp, message
//  5. Write commit to store
//  6. Update current branch ref to new commit hash
//  7. Return commit hash
func (r *Repo) Commit(message, author string) (object.Hash, error) {
	return r.CommitWithSigner(message, author, nil)
}

// CommitWithSigner creates a new commit, invoking signer (if non-nil) right
// before the ref update is attempted.
func (r *Repo) CommitWithSigner(message, author string, signer CommitSigner) (object.Hash, error) {
	// 1. Read staging.
	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if len(stg.Entries) == 0 {
		return "", fmt.Errorf("commit: nothing staged")
	}
	for path, entry := range stg.Entries {
		if entry.Conflict {
			return "", fmt.Errorf("commit: unresolved conflict in %q", path)
		}
	}

	hookRunner := hooks.New(r.CommonDir, r.RootDir)
	if ok, err := hookRunner.Run("pre-commit"); err != nil {
		return "", fmt.Errorf("commit: pre-commit hook: %w", err)
	} else if !ok {
		return "", rvserr.New(rvserr.UsageError, "commit: pre-commit hook rejected the commit")
	}

	// 2. Build tree from staging.
	treeHash, err := r.BuildTree(stg)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	// 3. Resolve HEAD to get parent (may not exist for first commit).
	var parents []object.Hash
	parentHash, err := r.ResolveRef("HEAD")
	if err == nil && parentHash != "" {
		parents = append(parents, parentHash)
	}
	// If HEAD resolution fails (e.g., first commit, no ref file), that's fine.

	// 4. Create CommitObj.
	sig := buildSignature(author)
	commitObj := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    sig,
		Committer: sig,
		Message:   message,
	}

	if signer != nil {
		if _, err := signer(object.MarshalCommit(commitObj)); err != nil {
			return "", fmt.Errorf("commit: signer: %w", err)
		}
	}

	// 5. Write commit to store.
	commitHash, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return "", fmt.Errorf("commit: write commit: %w", err)
	}

	// 6. Update current branch ref.
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("commit: read HEAD: %w", err)
	}

	// head is either a ref path ("refs/heads/main") or a detached hash.
	if strings.HasPrefix(head, "refs/") {
		var updateErr error
		if parentHash == "" {
			updateErr = r.UpdateRefCAS(head, commitHash)
		} else {
			updateErr = r.UpdateRefCAS(head, commitHash, parentHash)
		}
		if updateErr != nil {
			return "", fmt.Errorf("commit: update ref %q: %w", head, updateErr)
		}
	} else {
		// Detached HEAD: update HEAD directly with a CAS against the old hash.
		if err := r.UpdateRefCAS("HEAD", commitHash, object.Hash(strings.TrimSpace(head))); err != nil {
			return "", fmt.Errorf("commit: update detached HEAD: %w", err)
		}
	}

	r.invalidateStatusCache()

	// post-commit runs best-effort; its outcome does not affect the commit
	// that already happened.
	_, _ = hookRunner.Run("post-commit")

	// 7. Return commit hash.
	return commitHash, nil
}

// Log walks the commit history starting from the given hash, following
// first-parent links, returning up to limit commits in reverse-chronological
// order (newest first).
func (r *Repo) Log(start object.Hash, limit int) ([]*object.CommitObj, error) {
	var commits []*object.CommitObj
	current := start

	for len(commits) < limit {
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			// If we can't read the commit (e.g., doesn't exist), stop.
			if errors.Is(err, os.ErrNotExist) {
				break
			}
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		commits = append(commits, c)

		// Follow first parent.
		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}

	return commits, nil
}
