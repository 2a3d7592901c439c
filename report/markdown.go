package report

import (
	"fmt"
	"strings"

	"github.com/c360studio/paramspec/scan"
)

// Markdown renders the human-readable audit report.
func (r *Report) Markdown() string {
	var sb strings.Builder

	sb.WriteString("# Parameter Consistency Audit\n\n")
	fmt.Fprintf(&sb, "Snapshot `%s`, generated %s.\n\n",
		shortHash(r.SnapshotHash), r.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))

	fmt.Fprintf(&sb, "Scanned %d documents: **%d issues** (%d errors, %d warnings, %d info).\n\n",
		r.Documents, r.Total,
		r.BySeverity[scan.SeverityError],
		r.BySeverity[scan.SeverityWarning],
		r.BySeverity[scan.SeverityInfo])

	sb.WriteString("## Coverage\n\n")
	fmt.Fprintf(&sb, "- %d parameters in the registry\n", r.Coverage.Parameters)
	fmt.Fprintf(&sb, "- %d referenced dynamically (%.1f%%)\n",
		r.Coverage.Dynamic, r.Coverage.DynamicFraction*100)
	fmt.Fprintf(&sb, "- %d referenced only as literals (drift risk)\n", r.Coverage.LiteralOnly)
	fmt.Fprintf(&sb, "- %d never referenced\n\n", r.Coverage.Unreferenced)

	if len(r.Warnings) > 0 {
		sb.WriteString("## Build warnings\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
		sb.WriteString("\n")
	}

	if r.Total == 0 {
		sb.WriteString("No inconsistencies found.\n")
		return sb.String()
	}

	sb.WriteString("## Issues\n\n")
	sb.WriteString("| Severity | Kind | Parameter | Location | Message |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, issue := range r.Issues {
		param := issue.ParameterID
		if param == "" {
			param = "—"
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
			issue.Severity, issue.Kind, param,
			issue.FormatLocations(), escapePipes(issue.Message))
	}
	return sb.String()
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
