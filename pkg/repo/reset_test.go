package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rvs-vcs/rvs/pkg/object"
)

// resetChain builds three commits C1 -> C2 -> C3 on main, each adding one
// file, and returns their hashes in order.
func resetChain(t *testing.T) (r *Repo, dir string, hashes []object.Hash) {
	t.Helper()

	dir = t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	for _, name := range []string{"c1.txt", "c2.txt", "c3.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name+"\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if err := r.Add([]string{name}); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
		h, err := r.Commit("add "+name, "test-author")
		if err != nil {
			t.Fatalf("commit %s: %v", name, err)
		}
		hashes = append(hashes, h)
	}
	return r, dir, hashes
}

func TestResetHard_MovesHeadIndexAndWorkingTree(t *testing.T) {
	r, dir, hashes := resetChain(t)
	c1 := hashes[0]

	if err := r.Reset(ResetHard, "HEAD~2"); err != nil {
		t.Fatalf("reset --hard HEAD~2: %v", err)
	}

	head, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("resolve HEAD: %v", err)
	}
	if head != c1 {
		t.Fatalf("HEAD = %s, want %s", head, c1)
	}

	for _, absent := range []string{"c2.txt", "c3.txt"} {
		if _, err := os.Stat(filepath.Join(dir, absent)); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed from working tree, stat err=%v", absent, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "c1.txt")); err != nil {
		t.Errorf("expected c1.txt to remain, stat err=%v", err)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("read staging: %v", err)
	}
	if len(stg.Entries) != 1 {
		t.Fatalf("expected exactly 1 staged entry after hard reset, got %d", len(stg.Entries))
	}
	if _, ok := stg.Entries["c1.txt"]; !ok {
		t.Fatalf("expected c1.txt staged after hard reset, got %+v", stg.Entries)
	}
}

func TestResetMixed_RewritesIndexOnly(t *testing.T) {
	r, dir, hashes := resetChain(t)
	c1 := hashes[0]

	if err := r.Reset(ResetMixed, string(c1)); err != nil {
		t.Fatalf("reset --mixed %s: %v", c1, err)
	}

	head, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("resolve HEAD: %v", err)
	}
	if head != c1 {
		t.Fatalf("HEAD = %s, want %s", head, c1)
	}

	// Working tree still has c2.txt and c3.txt: mixed mode never touches it.
	for _, present := range []string{"c1.txt", "c2.txt", "c3.txt"} {
		if _, err := os.Stat(filepath.Join(dir, present)); err != nil {
			t.Errorf("expected %s to remain on disk after mixed reset, stat err=%v", present, err)
		}
	}

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("read staging: %v", err)
	}
	if len(stg.Entries) != 1 {
		t.Fatalf("expected index to contain only c1.txt after mixed reset, got %+v", stg.Entries)
	}
}

func TestResetSoft_MovesHeadOnly(t *testing.T) {
	r, dir, hashes := resetChain(t)
	c1 := hashes[0]

	beforeStaging, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("read staging before reset: %v", err)
	}
	beforeCount := len(beforeStaging.Entries)

	if err := r.Reset(ResetSoft, "HEAD~2"); err != nil {
		t.Fatalf("reset --soft HEAD~2: %v", err)
	}

	head, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("resolve HEAD: %v", err)
	}
	if head != c1 {
		t.Fatalf("HEAD = %s, want %s", head, c1)
	}

	afterStaging, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("read staging after reset: %v", err)
	}
	if len(afterStaging.Entries) != beforeCount {
		t.Fatalf("expected soft reset to leave index untouched, before=%d after=%d", beforeCount, len(afterStaging.Entries))
	}

	for _, present := range []string{"c1.txt", "c2.txt", "c3.txt"} {
		if _, err := os.Stat(filepath.Join(dir, present)); err != nil {
			t.Errorf("expected %s to remain on disk after soft reset, stat err=%v", present, err)
		}
	}
}

func TestReset_UnknownRevisionFails(t *testing.T) {
	r, _, _ := resetChain(t)
	if err := r.Reset(ResetMixed, "nope-not-a-rev"); err == nil {
		t.Fatal("expected error resetting to an unresolvable revision")
	}
}
