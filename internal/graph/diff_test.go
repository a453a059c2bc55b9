package graph

import (
	"strings"
	"testing"
)

func TestMarkDiffLines_IdenticalTextsUnchanged(t *testing.T) {
	text := "line one\nline two\nline three"
	out := MarkDiffLines(text, text)
	if out != text {
		t.Fatalf("identical texts must pass through unmarked, got %q", out)
	}
}

func TestMarkDiffLines_MarksAddedAndRemovedLines(t *testing.T) {
	oldText := "a\nb\nc"
	newText := "a\nx\nc"
	out := MarkDiffLines(oldText, newText)

	if !strings.Contains(out, "[RM] -b") {
		t.Fatalf("expected removed line marked, got %q", out)
	}
	if !strings.Contains(out, "[ADD] +x") {
		t.Fatalf("expected added line marked, got %q", out)
	}
	if !strings.Contains(out, "a") || !strings.Contains(out, "c") {
		t.Fatalf("untouched lines must be preserved verbatim, got %q", out)
	}
}

func TestMarkDiffLines_MarkingTwiceIsNoOp(t *testing.T) {
	out := MarkDiffLines("a\nb\nc", "a\nx\nc")
	again := MarkDiffLines(out, out)
	if again != out {
		t.Fatalf("applying the marker to its own output must be a no-op:\nfirst:  %q\nsecond: %q", out, again)
	}
}

func TestMarkDiffLines_PureAdditionAndRemoval(t *testing.T) {
	if out := MarkDiffLines("", "only new"); out != "[ADD] +only new" {
		t.Fatalf("unexpected pure-addition marking: %q", out)
	}
	if out := MarkDiffLines("only old", ""); out != "[RM] -only old" {
		t.Fatalf("unexpected pure-removal marking: %q", out)
	}
}
