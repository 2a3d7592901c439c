package scan

import (
	"fmt"
	"sort"
	"strings"
)

// Severity ranks validation issues.
type Severity string

// Severities, most severe first.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// rank orders severities for sorting. Lower is more severe.
func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Kind identifies the class of a validation issue.
type Kind string

// Issue kinds.
const (
	KindMismatch      Kind = "mismatch"
	KindUnresolvedRef Kind = "unresolved_reference"
	KindNumbering     Kind = "numbering"
	KindCrossDocument Kind = "cross_document_inconsistency"
)

// Location points at a line within a scanned document.
type Location struct {
	Document string `json:"document"`
	Line     int    `json:"line"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.Document, l.Line)
}

// Issue is one detected inconsistency between a document and the snapshot.
// Issues are recreated fresh on every scan and never persisted as
// authoritative state.
type Issue struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`

	// ParameterID is empty only for issues that are explicitly unresolved
	// (an unknown reference, or a numbering defect).
	ParameterID string `json:"parameter_id,omitempty"`

	Locations []Location `json:"locations"`
	Message   string     `json:"message"`
}

// sortIssues orders issues deterministically: severity, then first location,
// then kind, then parameter.
func sortIssues(issues []Issue) {
	sort.Slice(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Severity.rank() != b.Severity.rank() {
			return a.Severity.rank() < b.Severity.rank()
		}
		la, lb := firstLocation(a), firstLocation(b)
		if la.Document != lb.Document {
			return la.Document < lb.Document
		}
		if la.Line != lb.Line {
			return la.Line < lb.Line
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ParameterID < b.ParameterID
	})
}

func firstLocation(i Issue) Location {
	if len(i.Locations) == 0 {
		return Location{}
	}
	return i.Locations[0]
}

// FormatLocations renders the issue's locations as a comma-joined list.
func (i Issue) FormatLocations() string {
	parts := make([]string, len(i.Locations))
	for k, l := range i.Locations {
		parts[k] = l.String()
	}
	return strings.Join(parts, ", ")
}
