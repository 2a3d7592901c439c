package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintPrecision(t *testing.T) {
	tests := []struct {
		literal string
		want    float64
	}{
		{"5", 0.5},
		{"10.0", 0.05},
		{"3.141", 0.0005},
		{"1.0e16", 0.05e16},
		{"2e-3", 0.5e-3},
		{"-4.20", 0.005},
	}
	for _, tt := range tests {
		t.Run(tt.literal, func(t *testing.T) {
			assert.InEpsilon(t, tt.want, printPrecision(tt.literal), 1e-12)
		})
	}
}

func TestWithinTolerance_Precedence(t *testing.T) {
	// Declared beats category beats print precision.
	assert.True(t, withinTolerance("10.0", 10.0, 10.4, 0.5, ToleranceSpec{Absolute: 0.1}))
	assert.False(t, withinTolerance("10.0", 10.0, 10.4, 0.2, ToleranceSpec{Absolute: 0.5}))

	// No declared tolerance: the category spec applies.
	assert.True(t, withinTolerance("10.0", 10.0, 10.4, 0, ToleranceSpec{Absolute: 0.5}))
	assert.False(t, withinTolerance("10.0", 10.0, 10.4, 0, ToleranceSpec{Absolute: 0.1}))

	// Neither: print precision of the literal.
	assert.True(t, withinTolerance("10.0", 10.0, 10.04, 0, ToleranceSpec{}))
	assert.False(t, withinTolerance("10.0", 10.0, 10.4, 0, ToleranceSpec{}))
}

func TestToleranceSpec_Resolve(t *testing.T) {
	assert.Equal(t, 0.0, ToleranceSpec{}.resolve(100))
	assert.Equal(t, 0.3, ToleranceSpec{Absolute: 0.3}.resolve(100))
	assert.InEpsilon(t, 1.0, ToleranceSpec{Relative: 0.01}.resolve(100), 1e-12)
	assert.InEpsilon(t, 1.0, ToleranceSpec{Relative: 0.01}.resolve(-100), 1e-12)
	// The looser of the two wins.
	assert.InEpsilon(t, 2.0, ToleranceSpec{Absolute: 0.5, Relative: 0.02}.resolve(100), 1e-12)
}

func TestLabelIndex_LongestLabelWins(t *testing.T) {
	idx := newLabelIndex(map[string][]string{
		"theta":     {"mixing angle"},
		"theta_err": {"mixing angle error"},
	})

	hits := idx.find("the mixing angle error is 0.02")
	require.Len(t, hits, 1)
	assert.Equal(t, "theta_err", hits[0].paramID)

	hits = idx.find("the mixing angle is 0.23")
	require.Len(t, hits, 1)
	assert.Equal(t, "theta", hits[0].paramID)
}

func TestLabelIndex_WordBounded(t *testing.T) {
	idx := newLabelIndex(map[string][]string{"mass": nil})

	assert.Empty(t, idx.find("the biomass grew"))
	assert.Empty(t, idx.find("mass_correction = 2"))
	require.Len(t, idx.find("mass = 2"), 1)
	require.Len(t, idx.find("(mass) = 2"), 1)
}

func TestExtractAssertions_Separators(t *testing.T) {
	idx := newLabelIndex(map[string][]string{"g_w": {"weak coupling"}})

	accepted := []string{
		"weak coupling = 0.65",
		"weak coupling: 0.65",
		"weak coupling is 0.65",
		"weak coupling of 0.65",
		"the *weak coupling* is 0.65",
		"weak coupling ≈ 0.65",
	}
	for _, line := range accepted {
		doc := &Document{Path: "t.md", RawLines: []string{line}, TextLines: []string{line}, textLineOffset: 0}
		got := extractAssertions(doc, idx)
		require.Len(t, got, 1, line)
		assert.Equal(t, "g_w", got[0].ParamID)
		assert.Equal(t, 0.65, got[0].Value)
		assert.Equal(t, "0.65", got[0].Literal)
	}

	rejected := []string{
		"weak coupling was revised downward from 0.65",
		"weak coupling values vary; see table 3",
		"weak coupling",
	}
	for _, line := range rejected {
		doc := &Document{Path: "t.md", RawLines: []string{line}, TextLines: []string{line}, textLineOffset: 0}
		assert.Empty(t, extractAssertions(doc, idx), line)
	}
}

func TestExtractAssertions_ScientificNotation(t *testing.T) {
	idx := newLabelIndex(map[string][]string{"g_f": {"Fermi constant"}})
	doc := &Document{
		Path:           "t.md",
		RawLines:       []string{"Fermi constant = 1.166e-5 in these units"},
		TextLines:      []string{"Fermi constant = 1.166e-5 in these units"},
		textLineOffset: 0,
	}

	got := extractAssertions(doc, idx)
	require.Len(t, got, 1)
	assert.Equal(t, "1.166e-5", got[0].Literal)
	assert.InEpsilon(t, 1.166e-5, got[0].Value, 1e-12)
}

func TestExtractReferences(t *testing.T) {
	doc := &Document{
		Path: "page.html",
		RawLines: []string{
			`<span data-param="alpha">7.297e-3</span>`,
			`<div data-formula="alpha_f"></div>`,
			`inline {param:beta} reference`,
			`<span data-param="gamma"></span>`,
		},
	}

	refs := extractReferences(doc)
	require.Len(t, refs, 4)

	assert.Equal(t, "alpha", refs[0].ID)
	assert.False(t, refs[0].Formula)
	lit, v, ok := refs[0].renderedValue()
	require.True(t, ok)
	assert.Equal(t, "7.297e-3", lit)
	assert.InEpsilon(t, 7.297e-3, v, 1e-12)
	assert.Equal(t, 1, refs[0].Location.Line)

	assert.Equal(t, "alpha_f", refs[1].ID)
	assert.True(t, refs[1].Formula)

	assert.Equal(t, "beta", refs[2].ID)
	assert.Equal(t, 3, refs[2].Location.Line)

	_, _, ok = refs[3].renderedValue()
	assert.False(t, ok, "empty marker body carries no rendered value")
}

func TestLoadDocument_Frontmatter(t *testing.T) {
	root := writeCorpus(t, map[string]string{
		"doc.md": "---\ntitle: Constants\n---\n\nBody text here.\n",
	})

	doc, err := loadDocument(root, "doc.md")
	require.NoError(t, err)
	assert.Equal(t, "Constants", doc.Title)
	assert.Equal(t, 3, doc.textLineOffset)
	assert.Equal(t, "Body text here.", doc.TextLines[1])
}

func TestLoadDocument_UnclosedFrontmatterIsBody(t *testing.T) {
	root := writeCorpus(t, map[string]string{
		"doc.md": "---\ntitle: Broken\nno closing delimiter\n",
	})

	doc, err := loadDocument(root, "doc.md")
	require.NoError(t, err)
	assert.Empty(t, doc.Title)
	assert.Equal(t, 0, doc.textLineOffset)
}

func TestHTMLTitle(t *testing.T) {
	assert.Equal(t, "Reference Tables",
		htmlTitle([]byte(`<html><head><title> Reference Tables </title></head><body></body></html>`)))
	assert.Empty(t, htmlTitle([]byte(`<html><body><p>no title</p></body></html>`)))
}
