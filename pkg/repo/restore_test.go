package repo

import (
	"os"
	"path/filepath"
	"testing"
)

// TestRestorePathsStaged_UnstagesModifiedFile exercises restore --staged,
// which is the direct git-reset-by-pathspec functionality: rewrite a
// path's index entry back to HEAD's version without touching the WT.
func TestRestorePathsStaged_UnstagesModifiedFile(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	file := filepath.Join(r.RootDir, "main.go")
	if err := os.WriteFile(file, []byte("package main\n\nfunc A() {}\n"), 0o644); err != nil {
		t.Fatalf("write initial file: %v", err)
	}
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatalf("add initial file: %v", err)
	}
	if _, err := r.Commit("initial", "test-author"); err != nil {
		t.Fatalf("commit initial: %v", err)
	}

	if err := os.WriteFile(file, []byte("package main\n\nfunc A() {}\nfunc B() {}\n"), 0o644); err != nil {
		t.Fatalf("write modified file: %v", err)
	}
	if err := r.Add([]string{"main.go"}); err != nil {
		t.Fatalf("add modified file: %v", err)
	}

	before, err := r.Status()
	if err != nil {
		t.Fatalf("status before restore: %v", err)
	}
	if len(before) == 0 {
		t.Fatal("expected non-empty status before restore")
	}

	if err := r.RestorePaths("", []string{"main.go"}, true, false); err != nil {
		t.Fatalf("restore --staged main.go: %v", err)
	}

	after, err := r.Status()
	if err != nil {
		t.Fatalf("status after restore: %v", err)
	}
	entry := findStatusEntry(after, "main.go")
	if entry == nil {
		t.Fatalf("expected status entry for main.go after restore, got %+v", after)
	}
	if entry.IndexStatus != StatusClean {
		t.Fatalf("IndexStatus = %v, want %v", entry.IndexStatus, StatusClean)
	}
	if entry.WorkStatus != StatusDirty {
		t.Fatalf("WorkStatus = %v, want %v", entry.WorkStatus, StatusDirty)
	}
}

// TestRestorePathsStaged_RemovesStagedNewFile covers restoring a path that
// has no HEAD counterpart: it should drop out of the index entirely.
func TestRestorePathsStaged_RemovesStagedNewFile(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	// restore needs a HEAD to resolve against; give it one.
	if err := os.WriteFile(filepath.Join(dir, "seed.txt"), []byte("seed\n"), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	if err := r.Add([]string{"seed.txt"}); err != nil {
		t.Fatalf("add seed file: %v", err)
	}
	if _, err := r.Commit("seed", "test-author"); err != nil {
		t.Fatalf("commit seed: %v", err)
	}

	file := filepath.Join(dir, "new.txt")
	if err := os.WriteFile(file, []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write new file: %v", err)
	}
	if err := r.Add([]string{"new.txt"}); err != nil {
		t.Fatalf("add new file: %v", err)
	}

	err = r.RestorePaths("", []string{"new.txt"}, true, false)
	if err == nil {
		t.Fatal("expected error: new.txt has no HEAD counterpart to restore from")
	}

	// Since new.txt does not exist at HEAD, unstaging it is a delete from
	// the index rather than a restore; Remove is the operation for that.
	if err := r.Remove([]string{"new.txt"}, true); err != nil {
		t.Fatalf("remove --cached new.txt: %v", err)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("read staging: %v", err)
	}
	if _, ok := stg.Entries["new.txt"]; ok {
		t.Fatalf("expected new.txt to be unstaged, got staging entry %+v", stg.Entries["new.txt"])
	}
}

func findStatusEntry(entries []StatusEntry, path string) *StatusEntry {
	for i := range entries {
		if entries[i].Path == path {
			return &entries[i]
		}
	}
	return nil
}
