package scan

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// DefaultNumberingPattern matches numbered statements like "(S12)".
// The pattern must expose exactly one capture group holding the number.
const DefaultNumberingPattern = `\(S(\d+)\)`

// checkNumbering verifies a document's sequential reference scheme: every
// number used at most once, no gaps between the smallest and largest.
func checkNumbering(doc *Document, re *regexp.Regexp) []Issue {
	type occurrence struct {
		n    int
		line int
	}
	var occ []occurrence

	for i, line := range doc.RawLines {
		for _, m := range re.FindAllStringSubmatch(line, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			occ = append(occ, occurrence{n: n, line: i + 1})
		}
	}
	if len(occ) == 0 {
		return nil
	}

	var issues []Issue

	byNumber := make(map[int][]int)
	for _, o := range occ {
		byNumber[o.n] = append(byNumber[o.n], o.line)
	}

	numbers := make([]int, 0, len(byNumber))
	for n := range byNumber {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	for _, n := range numbers {
		lines := byNumber[n]
		if len(lines) < 2 {
			continue
		}
		locs := make([]Location, 0, len(lines))
		for _, l := range lines {
			locs = append(locs, Location{Document: doc.Path, Line: l})
		}
		issues = append(issues, Issue{
			Kind:      KindNumbering,
			Severity:  SeverityWarning,
			Locations: locs,
			Message:   fmt.Sprintf("statement number %d used %d times", n, len(lines)),
		})
	}

	for i := 1; i < len(numbers); i++ {
		prev, cur := numbers[i-1], numbers[i]
		if cur == prev+1 {
			continue
		}
		issues = append(issues, Issue{
			Kind:     KindNumbering,
			Severity: SeverityWarning,
			Locations: []Location{
				{Document: doc.Path, Line: byNumber[prev][0]},
				{Document: doc.Path, Line: byNumber[cur][0]},
			},
			Message: fmt.Sprintf("statement numbering jumps from %d to %d", prev, cur),
		})
	}
	return issues
}
