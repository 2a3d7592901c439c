// Package propagate pushes uncertainty through the derivation graph, either
// analytically (first-order Jacobian) or by Monte Carlo sampling. Both modes
// account for correlation introduced by shared upstream inputs; naive
// independent-error summation is exactly the failure mode this package exists
// to prevent.
package propagate

import (
	"fmt"
	"sort"
)

// Mode identifies which propagation was performed.
type Mode string

// Propagation modes.
const (
	ModeAnalytic   Mode = "analytic"
	ModeMonteCarlo Mode = "monte_carlo"
)

// Percentiles holds the empirical percentile summary of a Monte Carlo run.
// Analytic propagation leaves it zero.
type Percentiles struct {
	P025 float64 `json:"p2.5"`
	P16  float64 `json:"p16"`
	P50  float64 `json:"p50"`
	P84  float64 `json:"p84"`
	P975 float64 `json:"p97.5"`
}

// Stats summarizes the propagated uncertainty of one parameter.
type Stats struct {
	Mean        float64     `json:"mean"`
	Std         float64     `json:"std"`
	Percentiles Percentiles `json:"percentiles,omitempty"`
}

// MissingUncertaintyWarning flags a non-derived parameter declared without an
// uncertainty model. Propagation proceeds treating the value as exact, but
// every dependent derived parameter is reported as under-specified so that
// "unknown" is never mistaken for "zero".
type MissingUncertaintyWarning struct {
	ParameterID string
}

func (w MissingUncertaintyWarning) String() string {
	return fmt.Sprintf("parameter %q has no declared uncertainty; treating as exact", w.ParameterID)
}

// Result is the outcome of one propagation pass over all parameters.
type Result struct {
	Mode    Mode
	Samples int
	Seed    uint64

	// FailedSamples counts Monte Carlo draws discarded due to a formula
	// failure on the sampled inputs.
	FailedSamples int

	// Stats is keyed by parameter id and covers every parameter, derived or
	// not, because derived quantities inherit correlated uncertainty.
	Stats map[string]Stats

	// Correlation is the full pairwise correlation matrix.
	Correlation *Matrix

	// Warnings lists parameters with missing uncertainty declarations.
	Warnings []MissingUncertaintyWarning

	// Underspecified marks parameters whose uncertainty depends on at least
	// one input without a declared uncertainty. They are exported with a
	// null uncertainty, never a fabricated number.
	Underspecified map[string]bool
}

// Matrix is a dense symmetric correlation matrix keyed by parameter id.
type Matrix struct {
	ids   []string
	index map[string]int
	data  []float64
}

// NewMatrix creates an identity-free zero matrix over the given ids. The id
// slice is copied and sorted.
func NewMatrix(ids []string) *Matrix {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	index := make(map[string]int, len(sorted))
	for i, id := range sorted {
		index[id] = i
	}
	return &Matrix{
		ids:   sorted,
		index: index,
		data:  make([]float64, len(sorted)*len(sorted)),
	}
}

// IDs returns the row/column ids in order.
func (m *Matrix) IDs() []string {
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out
}

// At returns the correlation of two parameters, zero for unknown ids.
func (m *Matrix) At(a, b string) float64 {
	i, ok := m.index[a]
	if !ok {
		return 0
	}
	j, ok := m.index[b]
	if !ok {
		return 0
	}
	return m.data[i*len(m.ids)+j]
}

// Set stores a correlation symmetrically.
func (m *Matrix) Set(a, b string, v float64) {
	i, ok := m.index[a]
	if !ok {
		return
	}
	j, ok := m.index[b]
	if !ok {
		return
	}
	m.data[i*len(m.ids)+j] = v
	m.data[j*len(m.ids)+i] = v
}

// Len returns the matrix dimension.
func (m *Matrix) Len() int { return len(m.ids) }
