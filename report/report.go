// Package report aggregates validation issues into a severity-ranked audit
// report with machine-readable (JSON) and human-readable (Markdown)
// renderings.
package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/paramspec/scan"
	"github.com/c360studio/paramspec/snapshot"
)

// Coverage summarizes how the corpus references the registry: parameters
// resolved dynamically through markers survive value changes, literal-only
// parameters drift.
type Coverage struct {
	Parameters   int `json:"parameters"`
	Dynamic      int `json:"dynamic"`
	LiteralOnly  int `json:"literal_only"`
	Unreferenced int `json:"unreferenced"`

	// DynamicFraction is Dynamic / Parameters.
	DynamicFraction float64 `json:"dynamic_fraction"`
}

// Report is one audit pass over a corpus against one snapshot.
type Report struct {
	SnapshotHash string    `json:"snapshot_hash"`
	GeneratedAt  time.Time `json:"generated_at"`
	Documents    int       `json:"documents"`

	Total      int                   `json:"total_issues"`
	BySeverity map[scan.Severity]int `json:"by_severity"`
	ByKind     map[scan.Kind]int     `json:"by_kind"`

	Coverage Coverage `json:"coverage"`

	// Warnings carries non-fatal build warnings (e.g. missing uncertainty
	// declarations) so they surface alongside scan issues.
	Warnings []string `json:"warnings,omitempty"`

	Issues []scan.Issue `json:"issues"`
}

// Build aggregates a scan result into a report.
func Build(snap *snapshot.Snapshot, res *scan.Result, warnings []string) *Report {
	r := &Report{
		SnapshotHash: snap.ContentHash,
		GeneratedAt:  time.Now().UTC(),
		Documents:    res.Documents,
		Total:        len(res.Issues),
		BySeverity:   make(map[scan.Severity]int),
		ByKind:       make(map[scan.Kind]int),
		Warnings:     warnings,
		Issues:       res.Issues,
	}

	for _, issue := range res.Issues {
		r.BySeverity[issue.Severity]++
		r.ByKind[issue.Kind]++
	}

	r.Coverage.Parameters = len(snap.Entries)
	for _, id := range snap.IDs() {
		rc := res.Refs[id]
		switch {
		case rc == nil || (rc.Dynamic == 0 && rc.Literal == 0):
			r.Coverage.Unreferenced++
		case rc.Dynamic > 0:
			r.Coverage.Dynamic++
		default:
			r.Coverage.LiteralOnly++
		}
	}
	if r.Coverage.Parameters > 0 {
		r.Coverage.DynamicFraction = float64(r.Coverage.Dynamic) / float64(r.Coverage.Parameters)
	}
	return r
}

// HasIssues reports whether any issue was found.
func (r *Report) HasIssues() bool { return r.Total > 0 }

// JSON renders the machine-readable report.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
