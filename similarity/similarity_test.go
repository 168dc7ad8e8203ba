package similarity

import (
	"fmt"
	"strings"
	"testing"
)

func TestCompare_Identity(t *testing.T) {
	// WHAT: Any non-oversized text is fully similar to itself.
	// WHY: Near-duplicate detection relies on a stable upper bound.
	for _, s := range []string{"hello\nworld", "one line", "A\r\nB\r\nC", strings.Repeat("x\n", 100)} {
		r := Compare(s, s)
		if r.Score != 1 || r.Method != MethodJaccardLines {
			t.Errorf("Compare(%q, same) = %+v", s, r)
		}
	}
}

func TestCompare_SmallEditReducesScore(t *testing.T) {
	r := Compare("hello\nworld", "hello\nplanet")
	if r.Score >= 1 || r.Score <= 0 {
		t.Fatalf("score = %v, want in (0,1)", r.Score)
	}
	// {hello, world} vs {hello, planet}: 1 shared of 3.
	if want := 1.0 / 3.0; r.Score != want {
		t.Fatalf("score = %v, want %v", r.Score, want)
	}

	r = Compare("a\nb\nc", "a\nb\nd")
	if r.Score != 0.5 {
		t.Fatalf("score = %v, want 0.5", r.Score)
	}
}

func TestCompare_DisjointContent(t *testing.T) {
	r := Compare("a\nb\nc", "x\ny\nz")
	if r.Score != 0 {
		t.Fatalf("score = %v, want 0", r.Score)
	}
}

func TestCompare_Normalization(t *testing.T) {
	// WHAT: Case, surrounding whitespace, blank lines and CRLF do not matter.
	// WHY: Cosmetic churn between captures must not look like a change.
	a := "Hello\r\n\r\n   WORLD  \n"
	b := "hello\nworld"
	if r := Compare(a, b); r.Score != 1 {
		t.Fatalf("score = %v, want 1", r.Score)
	}
}

func TestCompare_BothEmpty(t *testing.T) {
	if r := Compare("", "  \n\t\n"); r.Score != 1 || r.Method != MethodJaccardLines {
		t.Fatalf("got %+v, want score 1", r)
	}
	if r := Compare("", "text"); r.Score != 0 {
		t.Fatalf("empty vs text = %v, want 0", r.Score)
	}
}

func TestCompare_SkipsLargeInputs(t *testing.T) {
	// WHAT: Oversized inputs short-circuit with method skipped-large.
	// WHY: Bounds CPU on pathological pages.
	a := strings.Repeat("a", 60_000)
	b := strings.Repeat("b", 60_000)
	r := Compare(a, b)
	if r.Method != MethodSkippedLarge || r.Score != 0 {
		t.Fatalf("got %+v", r)
	}
	if r := Compare(a, "small"); r.Method != MethodSkippedLarge {
		t.Fatalf("one oversized input: got %+v", r)
	}
	atCap := strings.Repeat("é", MaxCompareChars)
	if r := Compare(atCap, atCap); r.Method != MethodJaccardLines {
		t.Fatalf("input at the cap must be compared, got %+v", r)
	}
}

func TestCompare_LineCap(t *testing.T) {
	// Lines past MaxLines are ignored: two texts that differ only after the
	// cap compare as identical.
	var sb strings.Builder
	for i := 0; i < MaxLines; i++ {
		fmt.Fprintf(&sb, "%d\n", i)
	}
	base := sb.String()
	if r := Compare(base+"tail-a", base+"tail-b"); r.Score != 1 {
		t.Fatalf("score = %v, want 1", r.Score)
	}
}
