package export

import (
	"sort"

	"github.com/c360studio/paramspec/graph"
)

// ManifestTerm is one input of a formula with its frozen value.
type ManifestTerm struct {
	ID     string   `json:"id"`
	Value  float64  `json:"value"`
	Unit   string   `json:"unit"`
	Status string   `json:"status"`
	Sigma  *float64 `json:"uncertainty"`
}

// ManifestEntry documents one formula for downstream reference material.
type ManifestEntry struct {
	ID           string         `json:"id"`
	Output       string         `json:"output"`
	Verification string         `json:"verification,omitempty"`
	Terms        []ManifestTerm `json:"terms"`

	// Steps lists the upstream derivation chain in evaluation order: every
	// formula that must run before this one, ending with this formula.
	Steps []string `json:"steps"`

	// References lists other formulas sharing at least one input term.
	References []string `json:"references,omitempty"`
}

// Manifest is the per-formula manifest artifact.
type Manifest struct {
	ContentHash string                   `json:"content_hash"`
	Formulas    map[string]ManifestEntry `json:"formulas"`
}

// buildManifest assembles the manifest from the registry's formula
// declarations and the frozen snapshot values.
func (e *Exporter) buildManifest() (*Manifest, error) {
	g, err := graph.Build(e.reg)
	if err != nil {
		return nil, err
	}
	topo := g.TopologicalOrder()
	topoPos := make(map[string]int, len(topo))
	for i, id := range topo {
		topoPos[id] = i
	}

	m := &Manifest{
		ContentHash: e.snap.ContentHash,
		Formulas:    make(map[string]ManifestEntry),
	}

	// inputUsers maps input parameter id -> formula ids consuming it.
	inputUsers := make(map[string][]string)
	for _, f := range e.reg.Formulas() {
		for _, in := range f.Inputs {
			inputUsers[in] = append(inputUsers[in], f.ID)
		}
	}

	for _, f := range e.reg.Formulas() {
		entry := ManifestEntry{
			ID:           f.ID,
			Output:       f.Output,
			Verification: f.Verification,
		}

		for _, in := range f.Inputs {
			se, ok := e.snap.Get(in)
			if !ok {
				continue
			}
			entry.Terms = append(entry.Terms, ManifestTerm{
				ID:     in,
				Value:  se.Value,
				Unit:   se.Unit,
				Status: string(se.Status),
				Sigma:  se.Uncertainty,
			})
		}

		entry.Steps = e.derivationChain(f.Output, topoPos)

		seen := map[string]bool{f.ID: true}
		for _, in := range f.Inputs {
			for _, other := range inputUsers[in] {
				if !seen[other] {
					seen[other] = true
					entry.References = append(entry.References, other)
				}
			}
		}
		sort.Strings(entry.References)

		m.Formulas[f.ID] = entry
	}
	return m, nil
}

// derivationChain lists the formulas upstream of output (inclusive) sorted by
// topological position, i.e. the order a reader would re-derive the value in.
func (e *Exporter) derivationChain(output string, topoPos map[string]int) []string {
	var chain []string
	seen := make(map[string]bool)

	var visit func(id string)
	visit = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		p, err := e.reg.Get(id)
		if err != nil || !p.Derived() {
			return
		}
		for _, in := range p.Inputs {
			visit(in)
		}
		chain = append(chain, p.Formula)
	}
	visit(output)

	sort.Slice(chain, func(i, j int) bool {
		fi, _ := e.reg.Formula(chain[i])
		fj, _ := e.reg.Formula(chain[j])
		return topoPos[fi.Output] < topoPos[fj.Output]
	})
	return chain
}
