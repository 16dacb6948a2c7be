package repo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveRevision_HEADAndBranchAndShortHash(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("a\n"))

	c1, err := r.Commit("first", "test-author")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	head, err := r.ResolveRevision("HEAD")
	if err != nil {
		t.Fatalf("ResolveRevision(HEAD): %v", err)
	}
	if head != c1 {
		t.Fatalf("ResolveRevision(HEAD) = %s, want %s", head, c1)
	}

	branchHash, err := r.ResolveRevision("main")
	if err != nil {
		t.Fatalf("ResolveRevision(main): %v", err)
	}
	if branchHash != c1 {
		t.Fatalf("ResolveRevision(main) = %s, want %s", branchHash, c1)
	}

	short, err := r.ResolveRevision(string(c1)[:8])
	if err != nil {
		t.Fatalf("ResolveRevision(short hash): %v", err)
	}
	if short != c1 {
		t.Fatalf("ResolveRevision(short hash) = %s, want %s", short, c1)
	}
}

func TestResolveRevision_TildeChain(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("a\n"))

	c1, err := r.Commit("first", "test-author")
	if err != nil {
		t.Fatalf("Commit(first): %v", err)
	}
	if err := os.WriteFile(filepath.Join(r.RootDir, "b.txt"), []byte("b\n"), 0o644); err != nil {
		t.Fatalf("write b.txt: %v", err)
	}
	if err := r.Add([]string{"b.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := r.Commit("second", "test-author"); err != nil {
		t.Fatalf("Commit(second): %v", err)
	}
	if err := os.WriteFile(filepath.Join(r.RootDir, "c.txt"), []byte("c\n"), 0o644); err != nil {
		t.Fatalf("write c.txt: %v", err)
	}
	if err := r.Add([]string{"c.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := r.Commit("third", "test-author"); err != nil {
		t.Fatalf("Commit(third): %v", err)
	}

	oneBack, err := r.ResolveRevision("HEAD~")
	if err != nil {
		t.Fatalf("ResolveRevision(HEAD~): %v", err)
	}
	twoBack, err := r.ResolveRevision("HEAD~2")
	if err != nil {
		t.Fatalf("ResolveRevision(HEAD~2): %v", err)
	}
	if twoBack != c1 {
		t.Fatalf("ResolveRevision(HEAD~2) = %s, want %s", twoBack, c1)
	}
	if oneBack == twoBack {
		t.Fatalf("HEAD~ and HEAD~2 resolved to the same commit")
	}
}

func TestResolveRevision_TooManyGenerations_Errors(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("a\n"))
	if _, err := r.Commit("first", "test-author"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := r.ResolveRevision("HEAD~5"); err == nil {
		t.Fatal("expected error walking past the root commit")
	}
}

func TestResolveRevision_UnknownRev_Errors(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("a\n"))
	if _, err := r.Commit("first", "test-author"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := r.ResolveRevision("no-such-branch"); err == nil {
		t.Fatal("expected error for unresolvable revision")
	}
}

func TestIsAncestor_DirectAndSelfAndUnrelated(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("a\n"))

	c1, err := r.Commit("first", "test-author")
	if err != nil {
		t.Fatalf("Commit(first): %v", err)
	}
	if err := os.WriteFile(filepath.Join(r.RootDir, "b.txt"), []byte("b\n"), 0o644); err != nil {
		t.Fatalf("write b.txt: %v", err)
	}
	if err := r.Add([]string{"b.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	c2, err := r.Commit("second", "test-author")
	if err != nil {
		t.Fatalf("Commit(second): %v", err)
	}

	ok, err := r.IsAncestor(c1, c2)
	if err != nil {
		t.Fatalf("IsAncestor(c1, c2): %v", err)
	}
	if !ok {
		t.Error("expected c1 to be an ancestor of c2")
	}

	ok, err = r.IsAncestor(c2, c1)
	if err != nil {
		t.Fatalf("IsAncestor(c2, c1): %v", err)
	}
	if ok {
		t.Error("expected c2 not to be an ancestor of c1")
	}

	ok, err = r.IsAncestor(c1, c1)
	if err != nil {
		t.Fatalf("IsAncestor(c1, c1): %v", err)
	}
	if !ok {
		t.Error("expected a commit to be its own ancestor")
	}
}
