package scan

import (
	"regexp"
	"strconv"
	"strings"
)

// Symbolic reference markers. HTML pages carry data-param / data-formula
// attributes the hydration runtime resolves at load time; markdown sources
// use {param:id} inline markers.
var (
	dataParamRe   = regexp.MustCompile(`data-param="([^"]+)"(?:[^>]*)>([^<]*)`)
	dataFormulaRe = regexp.MustCompile(`data-formula="([^"]+)"`)
	inlineParamRe = regexp.MustCompile(`\{param:([A-Za-z0-9_.-]+)\}`)
)

// reference is one symbolic marker found in a document.
type reference struct {
	ID       string
	Formula  bool
	Location Location

	// Rendered is the literal text inside a data-param element, when the
	// element carries one; used to cross-check the painted value.
	Rendered string
}

// extractReferences scans the raw lines for symbolic markers. Raw lines are
// used (not normalized text) because markers live in attributes that
// normalization strips.
func extractReferences(doc *Document) []reference {
	var out []reference
	for i, line := range doc.RawLines {
		loc := Location{Document: doc.Path, Line: i + 1}

		for _, m := range dataParamRe.FindAllStringSubmatch(line, -1) {
			out = append(out, reference{
				ID:       m[1],
				Location: loc,
				Rendered: strings.TrimSpace(m[2]),
			})
		}
		for _, m := range dataFormulaRe.FindAllStringSubmatch(line, -1) {
			out = append(out, reference{ID: m[1], Formula: true, Location: loc})
		}
		for _, m := range inlineParamRe.FindAllStringSubmatch(line, -1) {
			out = append(out, reference{ID: m[1], Location: loc})
		}
	}
	return out
}

// renderedValue parses the numeric text inside a marker element, if any.
func (r reference) renderedValue() (string, float64, bool) {
	lit := literalRe.FindString(r.Rendered)
	if lit == "" {
		return "", 0, false
	}
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return "", 0, false
	}
	return lit, v, true
}
