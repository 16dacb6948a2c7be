package diff3

import (
	"bytes"
	"strings"
)

// SpanKind classifies a contiguous section of a three-way merge result.
type SpanKind int

const (
	SpanClean    SpanKind = iota // merged without operator input
	SpanConflict                 // both sides changed the region differently
)

// Span is one contiguous section of a merge result, either resolved
// automatically or left as a conflict for the caller to reconcile.
type Span struct {
	Kind                       SpanKind
	Base, Ours, Theirs, Merged []byte
}

// MergeResult holds the outcome of a three-way line merge.
type MergeResult struct {
	Merged       []byte // full merged content, with conflict markers where unresolved
	HasConflicts bool
	Spans        []Span // spans in document order
}

// LineDelta is one line of the output of DiffLines.
type LineDelta struct {
	Kind    ChangeKind
	Content string
}

// DiffLines computes a line-level diff between two byte slices, suitable
// for rendering a unified-style diff view.
func DiffLines(a, b []byte) []LineDelta {
	aLines := toLines(string(a))
	bLines := toLines(string(b))

	script := ShortestEditScript(aLines, bLines)

	out := make([]LineDelta, len(script))
	for i, step := range script {
		out[i] = LineDelta{Kind: step.Kind, Content: step.Line}
	}
	return out
}

// ThreeWay merges ours and theirs against their common base at the line
// level. oursLabel and theirsLabel are used to tag conflict markers (e.g.
// the branch or revision each side came from); either may be left empty,
// in which case "ours"/"theirs" is used.
//
// The base is diffed independently against each side; each diff is turned
// into a run of segments anchored to base-line positions, and the two
// segment sequences are then walked together. A base region left untouched
// by both sides is copied through; a region changed by exactly one side
// takes that side's text; a region both sides changed identically is
// resolved; a region the two sides changed differently becomes a conflict
// span delimited with `<<<<<<<`/`=======`/`>>>>>>>` markers naming the two
// sides.
func ThreeWay(base, ours, theirs []byte, oursLabel, theirsLabel string) MergeResult {
	baseLines := toLines(string(base))
	oursLines := toLines(string(ours))
	theirsLines := toLines(string(theirs))

	oursSegs := buildSegments(baseLines, oursLines)
	theirsSegs := buildSegments(baseLines, theirsLines)

	oursLabel, theirsLabel = conflictLabels(oursLabel, theirsLabel)
	return mergeSegments(baseLines, oursSegs, theirsSegs, oursLabel, theirsLabel)
}

// conflictLabels fills in the conventional "ours"/"theirs" fallback for
// whichever label the caller left blank.
func conflictLabels(oursLabel, theirsLabel string) (string, string) {
	if oursLabel == "" {
		oursLabel = "ours"
	}
	if theirsLabel == "" {
		theirsLabel = "theirs"
	}
	return oursLabel, theirsLabel
}

// toLines splits s into lines without producing a trailing empty element
// for a final newline.
func toLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// segment is a contiguous run of base lines together with the text one
// side replaces them with (identical to the base text when unchanged).
type segment struct {
	start, end int      // half-open range [start, end) into the base
	text       []string
	changed    bool
}

// buildSegments turns a two-way diff of base against side into a sequence
// of segments, each covering a contiguous base range.
func buildSegments(base, side []string) []segment {
	script := ShortestEditScript(base, side)

	var segs []segment
	baseIdx := 0

	i := 0
	for i < len(script) {
		step := script[i]

		if step.Kind == Same {
			segs = append(segs, segment{
				start: baseIdx,
				end:   baseIdx + 1,
				text:  []string{step.Line},
			})
			baseIdx++
			i++
			continue
		}

		segStart := baseIdx
		var replacement []string

		for i < len(script) && script[i].Kind != Same {
			if script[i].Kind == Removed {
				baseIdx++
			} else {
				replacement = append(replacement, script[i].Line)
			}
			i++
		}

		segs = append(segs, segment{
			start:   segStart,
			end:     baseIdx,
			text:    replacement,
			changed: true,
		})
	}

	return segs
}

// mergeSegments walks the ours/theirs segment sequences in lockstep,
// aligned by base position, producing the merge result. oursLabel and
// theirsLabel tag any conflict markers emitted along the way.
func mergeSegments(baseLines []string, oursSegs, theirsSegs []segment, oursLabel, theirsLabel string) MergeResult {
	var merged bytes.Buffer
	var spans []Span
	hasConflicts := false

	oi, ti := 0, 0

	for oi < len(oursSegs) || ti < len(theirsSegs) {
		var os, ts *segment
		if oi < len(oursSegs) {
			os = &oursSegs[oi]
		}
		if ti < len(theirsSegs) {
			ts = &theirsSegs[ti]
		}

		if os == nil {
			writeText(&merged, ts.text)
			spans = append(spans, cleanSpan(baseLines, ts))
			ti++
			continue
		}
		if ts == nil {
			writeText(&merged, os.text)
			spans = append(spans, cleanSpan(baseLines, os))
			oi++
			continue
		}

		if os.start == ts.start && os.end == ts.end {
			switch {
			case !os.changed && !ts.changed:
				writeText(&merged, os.text)
				spans = append(spans, cleanSpan(baseLines, os))
			case os.changed && !ts.changed:
				writeText(&merged, os.text)
				spans = append(spans, cleanSpan(baseLines, os))
			case !os.changed && ts.changed:
				writeText(&merged, ts.text)
				spans = append(spans, cleanSpan(baseLines, ts))
			default:
				if sameLines(os.text, ts.text) {
					writeText(&merged, os.text)
					spans = append(spans, cleanSpan(baseLines, os))
				} else {
					hasConflicts = true
					writeConflictMarkers(&merged, os.text, ts.text, oursLabel, theirsLabel)
					spans = append(spans, conflictSpan(baseLines, os, ts))
				}
			}
			oi++
			ti++
			continue
		}

		// The two sides disagree about where the base region boundary
		// falls (one side's change spans more than one aligned segment on
		// the other side). Absorb every overlapping segment from both
		// sides before deciding the outcome for the whole overlap.
		overlapEnd := max(os.end, ts.end)

		var oursOverlap []segment
		for oi < len(oursSegs) && oursSegs[oi].start < overlapEnd {
			oursOverlap = append(oursOverlap, oursSegs[oi])
			if oursSegs[oi].end > overlapEnd {
				overlapEnd = oursSegs[oi].end
			}
			oi++
		}

		var theirsOverlap []segment
		for ti < len(theirsSegs) && theirsSegs[ti].start < overlapEnd {
			theirsOverlap = append(theirsOverlap, theirsSegs[ti])
			if theirsSegs[ti].end > overlapEnd {
				overlapEnd = theirsSegs[ti].end
			}
			ti++
		}

		overlapStart := min(os.start, ts.start)
		oursText := flattenSegments(oursOverlap)
		theirsText := flattenSegments(theirsOverlap)
		oursTouched := anySegmentChanged(oursOverlap)
		theirsTouched := anySegmentChanged(theirsOverlap)
		baseRegion := baseLines[overlapStart:overlapEnd]

		switch {
		case !oursTouched && !theirsTouched:
			writeText(&merged, baseRegion)
			spans = append(spans, Span{
				Kind:   SpanClean,
				Base:   renderLines(baseRegion),
				Merged: renderLines(baseRegion),
			})
		case oursTouched && !theirsTouched:
			writeText(&merged, oursText)
			spans = append(spans, Span{
				Kind:   SpanClean,
				Base:   renderLines(baseRegion),
				Ours:   renderLines(oursText),
				Merged: renderLines(oursText),
			})
		case !oursTouched && theirsTouched:
			writeText(&merged, theirsText)
			spans = append(spans, Span{
				Kind:   SpanClean,
				Base:   renderLines(baseRegion),
				Theirs: renderLines(theirsText),
				Merged: renderLines(theirsText),
			})
		default:
			if sameLines(oursText, theirsText) {
				writeText(&merged, oursText)
				spans = append(spans, Span{
					Kind:   SpanClean,
					Base:   renderLines(baseRegion),
					Ours:   renderLines(oursText),
					Merged: renderLines(oursText),
				})
			} else {
				hasConflicts = true
				writeConflictMarkers(&merged, oursText, theirsText, oursLabel, theirsLabel)
				spans = append(spans, Span{
					Kind:   SpanConflict,
					Base:   renderLines(baseRegion),
					Ours:   renderLines(oursText),
					Theirs: renderLines(theirsText),
				})
			}
		}
	}

	return MergeResult{
		Merged:       merged.Bytes(),
		HasConflicts: hasConflicts,
		Spans:        spans,
	}
}

func writeText(buf *bytes.Buffer, lines []string) {
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
}

func writeConflictMarkers(buf *bytes.Buffer, oursLines, theirsLines []string, oursLabel, theirsLabel string) {
	buf.WriteString("<<<<<<< ")
	buf.WriteString(oursLabel)
	buf.WriteByte('\n')
	writeText(buf, oursLines)
	buf.WriteString("=======\n")
	writeText(buf, theirsLines)
	buf.WriteString(">>>>>>> ")
	buf.WriteString(theirsLabel)
	buf.WriteByte('\n')
}

func cleanSpan(baseLines []string, s *segment) Span {
	span := Span{Kind: SpanClean, Merged: renderLines(s.text)}
	if s.start < s.end {
		span.Base = renderLines(baseLines[s.start:s.end])
	}
	if s.changed {
		span.Ours = renderLines(s.text)
	}
	return span
}

func conflictSpan(baseLines []string, ours, theirs *segment) Span {
	span := Span{
		Kind:   SpanConflict,
		Ours:   renderLines(ours.text),
		Theirs: renderLines(theirs.text),
	}
	if ours.start < ours.end {
		span.Base = renderLines(baseLines[ours.start:ours.end])
	}
	return span
}

func renderLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	var buf bytes.Buffer
	writeText(&buf, lines)
	return buf.Bytes()
}

func sameLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func flattenSegments(segs []segment) []string {
	var lines []string
	for _, s := range segs {
		lines = append(lines, s.text...)
	}
	return lines
}

func anySegmentChanged(segs []segment) bool {
	for _, s := range segs {
		if s.changed {
			return true
		}
	}
	return false
}
