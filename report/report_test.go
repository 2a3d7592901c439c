package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/paramspec/scan"
	"github.com/c360studio/paramspec/snapshot"
)

func testSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		ContentHash: "0123456789abcdef0123456789abcdef",
		Entries: map[string]snapshot.Entry{
			"alpha": {Value: 1},
			"beta":  {Value: 2},
			"gamma": {Value: 3},
			"delta": {Value: 4},
		},
	}
}

func testResult() *scan.Result {
	return &scan.Result{
		Documents: 3,
		Issues: []scan.Issue{
			{
				Kind:        scan.KindMismatch,
				Severity:    scan.SeverityError,
				ParameterID: "alpha",
				Locations:   []scan.Location{{Document: "intro.md", Line: 12}},
				Message:     "document states alpha = 1.1 but the canonical value is 1",
			},
			{
				Kind:      scan.KindUnresolvedRef,
				Severity:  scan.SeverityWarning,
				Locations: []scan.Location{{Document: "intro.md", Line: 30}},
				Message:   `reference to unknown parameter "ghost"`,
			},
		},
		Refs: map[string]*scan.RefCount{
			"alpha": {Dynamic: 2, Literal: 1},
			"beta":  {Literal: 3},
			"gamma": {},
		},
	}
}

func TestBuild(t *testing.T) {
	r := Build(testSnapshot(), testResult(), []string{"no uncertainty declared for delta"})

	assert.Equal(t, "0123456789abcdef0123456789abcdef", r.SnapshotHash)
	assert.Equal(t, 3, r.Documents)
	assert.Equal(t, 2, r.Total)
	assert.True(t, r.HasIssues())
	assert.False(t, r.GeneratedAt.IsZero())

	assert.Equal(t, 1, r.BySeverity[scan.SeverityError])
	assert.Equal(t, 1, r.BySeverity[scan.SeverityWarning])
	assert.Equal(t, 1, r.ByKind[scan.KindMismatch])
	assert.Equal(t, 1, r.ByKind[scan.KindUnresolvedRef])

	assert.Equal(t, 4, r.Coverage.Parameters)
	assert.Equal(t, 1, r.Coverage.Dynamic, "alpha has marker references")
	assert.Equal(t, 1, r.Coverage.LiteralOnly, "beta is only hard-coded")
	assert.Equal(t, 2, r.Coverage.Unreferenced, "gamma has zero counts, delta is absent")
	assert.InEpsilon(t, 0.25, r.Coverage.DynamicFraction, 1e-12)
}

func TestBuild_CleanCorpus(t *testing.T) {
	r := Build(testSnapshot(), &scan.Result{Documents: 1}, nil)

	assert.False(t, r.HasIssues())
	assert.Zero(t, r.Coverage.DynamicFraction)
	assert.Equal(t, 4, r.Coverage.Unreferenced)
}

func TestJSON_RoundTrip(t *testing.T) {
	r := Build(testSnapshot(), testResult(), nil)

	data, err := r.JSON()
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, r.SnapshotHash, decoded.SnapshotHash)
	assert.Equal(t, r.Total, decoded.Total)
	assert.Equal(t, r.Coverage, decoded.Coverage)
	require.Len(t, decoded.Issues, 2)
	assert.Equal(t, "alpha", decoded.Issues[0].ParameterID)
}

func TestMarkdown(t *testing.T) {
	r := Build(testSnapshot(), testResult(), []string{"no uncertainty declared for delta"})
	md := r.Markdown()

	assert.Contains(t, md, "# Parameter Consistency Audit")
	assert.Contains(t, md, "Snapshot `0123456789ab`", "hash is shortened")
	assert.Contains(t, md, "Scanned 3 documents: **2 issues** (1 errors, 1 warnings, 0 info).")
	assert.Contains(t, md, "- 4 parameters in the registry")
	assert.Contains(t, md, "- 1 referenced dynamically (25.0%)")
	assert.Contains(t, md, "- 2 never referenced")
	assert.Contains(t, md, "## Build warnings")
	assert.Contains(t, md, "- no uncertainty declared for delta")
	assert.Contains(t, md, "| error | mismatch | alpha | intro.md:12 |")
	assert.Contains(t, md, "| warning | unresolved_reference | — | intro.md:30 |")
	assert.NotContains(t, md, "No inconsistencies found.")
}

func TestMarkdown_Clean(t *testing.T) {
	r := Build(testSnapshot(), &scan.Result{Documents: 2}, nil)
	md := r.Markdown()

	assert.Contains(t, md, "No inconsistencies found.")
	assert.NotContains(t, md, "## Issues")
	assert.NotContains(t, md, "## Build warnings")
}

func TestMarkdown_EscapesPipes(t *testing.T) {
	res := testResult()
	res.Issues = []scan.Issue{{
		Kind:      scan.KindNumbering,
		Severity:  scan.SeverityWarning,
		Locations: []scan.Location{{Document: "t.md", Line: 1}},
		Message:   "a | b",
	}}
	md := Build(testSnapshot(), res, nil).Markdown()
	assert.Contains(t, md, `a \| b`)
}
