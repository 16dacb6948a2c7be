package diff3

import (
	"fmt"
	"strings"
	"testing"
)

// numberedLines builds n newline-terminated, zero-padded numbered lines.
func numberedLines(n int) []byte {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "line-%04d\n", i)
	}
	return []byte(b.String())
}

// replaceLine substitutes the line at the given 0-based index in src.
func replaceLine(src []byte, lineIdx int, replacement string) []byte {
	lines := strings.Split(string(src), "\n")
	if lineIdx < len(lines) {
		lines[lineIdx] = replacement
	}
	return []byte(strings.Join(lines, "\n"))
}

// BenchmarkThreeWaySmall merges 50-line files with non-overlapping
// single-line changes on each side.
func BenchmarkThreeWaySmall(b *testing.B) {
	const n = 50
	base := numberedLines(n)
	ours := replaceLine(base, 5, "OURS-CHANGED-LINE")
	theirs := replaceLine(base, 45, "THEIRS-CHANGED-LINE")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := ThreeWay(base, ours, theirs, "ours", "theirs")
		if r.HasConflicts {
			b.Fatal("unexpected conflict in small merge")
		}
	}
}

// BenchmarkThreeWayLarge merges 1000-line files with non-overlapping
// single-line changes far apart.
func BenchmarkThreeWayLarge(b *testing.B) {
	const n = 1000
	base := numberedLines(n)
	ours := replaceLine(base, 50, "OURS-CHANGED-LINE")
	theirs := replaceLine(base, 950, "THEIRS-CHANGED-LINE")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := ThreeWay(base, ours, theirs, "ours", "theirs")
		if r.HasConflicts {
			b.Fatal("unexpected conflict in large merge")
		}
	}
}

// BenchmarkShortestEditScript benchmarks the edit-script algorithm on
// 500-line inputs with a single-line modification.
func BenchmarkShortestEditScript(b *testing.B) {
	const n = 500
	a := make([]string, n)
	for i := 0; i < n; i++ {
		a[i] = fmt.Sprintf("line-%04d", i)
	}
	bLines := make([]string, n)
	copy(bLines, a)
	bLines[250] = "MODIFIED-LINE"

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		script := ShortestEditScript(a, bLines)
		if len(script) == 0 {
			b.Fatal("expected non-empty diff")
		}
	}
}
