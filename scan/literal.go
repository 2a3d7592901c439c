package scan

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// literalRe matches numeric literals including scientific notation.
var literalRe = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?`)

// adjacencyWindow is how far (in bytes) after a label the extractor looks for
// a value. Separators like "=", ":", "of", "≈" all fit well inside it.
const adjacencyWindow = 48

// assertion is one "label = value" claim found in a document.
type assertion struct {
	ParamID  string
	Value    float64
	Literal  string // the literal exactly as printed
	Location Location
}

// extractAssertions finds numeric literals adjacent to a recognized
// parameter label in the document's normalized text.
func extractAssertions(doc *Document, labels *labelIndex) []assertion {
	var out []assertion
	for idx, line := range doc.TextLines {
		for _, hit := range labels.find(line) {
			rest := line[hit.end:]
			if len(rest) > adjacencyWindow {
				rest = rest[:adjacencyWindow]
			}
			loc := literalRe.FindStringIndex(rest)
			if loc == nil {
				continue
			}
			if !plainSeparator(rest[:loc[0]]) {
				continue
			}
			lit := rest[loc[0]:loc[1]]
			v, err := strconv.ParseFloat(lit, 64)
			if err != nil {
				continue
			}
			out = append(out, assertion{
				ParamID: hit.paramID,
				Value:   v,
				Literal: lit,
				Location: Location{
					Document: doc.Path,
					Line:     doc.lineOf(idx, lit),
				},
			})
		}
	}
	return out
}

// plainSeparator accepts only separator-like text between a label and its
// value, so "mass of 3.2" matches but "mass measured elsewhere as 3.2 in a
// different convention" does not.
func plainSeparator(s string) bool {
	s = strings.TrimSpace(s)
	switch s {
	case "", "=", ":", "≈", "~", "is", "of", "is approximately", "→", "->":
		return true
	}
	// Allow markdown emphasis and simple punctuation around the separator.
	trimmed := strings.Trim(s, "*_`) ")
	switch trimmed {
	case "", "=", ":", "≈", "~", "is", "of":
		return true
	}
	return false
}

// labelIndex resolves label occurrences to parameter ids.
type labelIndex struct {
	// labels are checked longest-first so "mixing angle error" wins over
	// "mixing angle".
	entries []labelEntry
}

type labelEntry struct {
	label   string
	paramID string
}

type labelHit struct {
	paramID string
	end     int // byte offset just past the label
}

// newLabelIndex builds the label lookup from snapshot labels plus the ids
// themselves.
func newLabelIndex(labels map[string][]string) *labelIndex {
	idx := &labelIndex{}
	for id, ls := range labels {
		idx.entries = append(idx.entries, labelEntry{label: id, paramID: id})
		for _, l := range ls {
			idx.entries = append(idx.entries, labelEntry{label: l, paramID: id})
		}
	}
	// Longest-first, then lexical for determinism.
	sort.Slice(idx.entries, func(i, j int) bool {
		a, b := idx.entries[i], idx.entries[j]
		if len(a.label) != len(b.label) {
			return len(a.label) > len(b.label)
		}
		return a.label < b.label
	})
	return idx
}

// find returns all label occurrences in a line, longest label winning on
// overlaps.
func (idx *labelIndex) find(line string) []labelHit {
	var hits []labelHit
	claimed := make([]bool, len(line))

	for _, e := range idx.entries {
		from := 0
		for {
			i := strings.Index(line[from:], e.label)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(e.label)
			from = end
			if !wordBounded(line, start, end) || anyClaimed(claimed, start, end) {
				continue
			}
			for k := start; k < end; k++ {
				claimed[k] = true
			}
			hits = append(hits, labelHit{paramID: e.paramID, end: end})
		}
	}

	// Report hits left to right.
	sort.Slice(hits, func(i, j int) bool { return hits[i].end < hits[j].end })
	return hits
}

func anyClaimed(claimed []bool, start, end int) bool {
	for k := start; k < end; k++ {
		if claimed[k] {
			return true
		}
	}
	return false
}

// wordBounded rejects label matches embedded inside a longer identifier.
func wordBounded(line string, start, end int) bool {
	if start > 0 && isWordByte(line[start-1]) {
		return false
	}
	if end < len(line) && isWordByte(line[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// withinTolerance compares a printed literal against the canonical value.
// Preference order: the parameter's declared tolerance, then the category
// tolerance from config, then half a unit in the literal's last printed
// digit.
func withinTolerance(literal string, printed, canonical, declared float64, cat ToleranceSpec) bool {
	tol := declared
	if tol <= 0 {
		tol = cat.resolve(canonical)
	}
	if tol <= 0 {
		tol = printPrecision(literal)
	}
	return math.Abs(printed-canonical) <= tol
}

// printPrecision returns half a unit in the last place of the printed
// literal: "10.0" tolerates ±0.05, "1.0e16" tolerates ±0.05e16.
func printPrecision(literal string) float64 {
	mantissa := literal
	exp := 0
	if i := strings.IndexAny(literal, "eE"); i >= 0 {
		mantissa = literal[:i]
		if e, err := strconv.Atoi(literal[i+1:]); err == nil {
			exp = e
		}
	}
	decimals := 0
	if i := strings.Index(mantissa, "."); i >= 0 {
		decimals = len(mantissa) - i - 1
	}
	return 0.5 * math.Pow(10, float64(exp-decimals))
}

// ToleranceSpec is a per-category comparison tolerance.
type ToleranceSpec struct {
	// Absolute tolerance in the parameter's unit.
	Absolute float64 `yaml:"absolute" json:"absolute"`

	// Relative tolerance as a fraction of the canonical value.
	Relative float64 `yaml:"relative" json:"relative"`
}

// resolve turns the spec into an absolute tolerance for a canonical value.
// Zero means unset.
func (t ToleranceSpec) resolve(canonical float64) float64 {
	tol := t.Absolute
	if t.Relative > 0 {
		if r := t.Relative * math.Abs(canonical); r > tol {
			tol = r
		}
	}
	return tol
}
