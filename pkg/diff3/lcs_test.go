package diff3

import "testing"

func TestShortestEditScript_Basic(t *testing.T) {
	a := []string{"a", "b", "c"}
	b := []string{"a", "x", "c"}

	script := ShortestEditScript(a, b)

	wantKinds := []ChangeKind{Same, Removed, Added, Same}
	wantLines := []string{"a", "b", "x", "c"}

	if len(script) != len(wantKinds) {
		t.Fatalf("got %d steps, want %d: %v", len(script), len(wantKinds), script)
	}
	for i, step := range script {
		if step.Kind != wantKinds[i] || step.Line != wantLines[i] {
			t.Errorf("step[%d] = {%v, %q}, want {%v, %q}",
				i, step.Kind, step.Line, wantKinds[i], wantLines[i])
		}
	}
}

func TestShortestEditScript_EmptyToNonEmpty(t *testing.T) {
	script := ShortestEditScript(nil, []string{"a", "b"})
	for _, step := range script {
		if step.Kind != Added {
			t.Errorf("expected all Added steps, got %v", step)
		}
	}
	if len(script) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(script))
	}
}

func TestShortestEditScript_NonEmptyToEmpty(t *testing.T) {
	script := ShortestEditScript([]string{"a", "b"}, nil)
	for _, step := range script {
		if step.Kind != Removed {
			t.Errorf("expected all Removed steps, got %v", step)
		}
	}
	if len(script) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(script))
	}
}

func TestShortestEditScript_Identical(t *testing.T) {
	a := []string{"a", "b", "c"}
	script := ShortestEditScript(a, a)
	for _, step := range script {
		if step.Kind != Same {
			t.Errorf("expected all Same steps, got %v", step)
		}
	}
}
