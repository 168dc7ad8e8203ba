// CLAUDE:SUMMARY Bounded line-set Jaccard similarity between two text bodies, with input size caps.
// CLAUDE:DEPENDS (none, pure logic)
// CLAUDE:EXPORTS Compare, Result, Method
// Package similarity scores how close two captured bodies are. Inputs are
// capped so that a pathological page never costs unbounded CPU.
package similarity

import (
	"strings"
	"unicode/utf8"
)

// Method names the algorithm behind a score. Callers branch on it, so new
// algorithms get new names rather than changing an existing one.
type Method string

const (
	MethodJaccardLines Method = "jaccard-lines"
	MethodSkippedLarge Method = "skipped-large"
)

const (
	// MaxCompareChars is the per-input size above which comparison is skipped.
	MaxCompareChars = 50_000
	// MaxLines caps the number of normalized lines kept per input.
	MaxLines = 10_000
)

// Result is a score in [0,1] and the method that produced it.
type Result struct {
	Score  float64 `json:"score"`
	Method Method  `json:"method"`
}

// Compare returns the Jaccard similarity of the normalized line sets of a
// and b. Two inputs with no non-blank lines are identical (score 1).
func Compare(a, b string) Result {
	if utf8.RuneCountInString(a) > MaxCompareChars || utf8.RuneCountInString(b) > MaxCompareChars {
		return Result{Score: 0, Method: MethodSkippedLarge}
	}

	setA := lineSet(a)
	setB := lineSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return Result{Score: 1, Method: MethodJaccardLines}
	}

	small, large := setA, setB
	if len(small) > len(large) {
		small, large = large, small
	}
	intersection := 0
	for line := range small {
		if _, ok := large[line]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return Result{Score: 0, Method: MethodJaccardLines}
	}
	return Result{Score: float64(intersection) / float64(union), Method: MethodJaccardLines}
}

// lineSet lower-cases, splits on \n or \r\n, trims, drops blank lines and
// keeps the first MaxLines survivors.
func lineSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	kept := 0
	for line := range strings.SplitSeq(strings.ToLower(s), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}
		if kept == MaxLines {
			break
		}
		kept++
		set[line] = struct{}{}
	}
	return set
}
