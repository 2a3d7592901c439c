package graph

import "github.com/c360studio/paramspec/registry"

// checkObservableLoops rejects derived parameters that are secretly fitted to
// the observable they claim to predict: if a derived parameter declares
// predicts: O and its formula transitively consumes a fitted parameter with
// calibrated_against: O, the "derivation" is circular through the external
// observable even though the parameter DAG itself is acyclic.
func (g *Graph) checkObservableLoops() error {
	for _, id := range g.topo {
		p, _ := g.reg.Get(id)
		if !p.Derived() || p.Predicts == "" {
			continue
		}
		if path := g.calibrationPath(id, p.Predicts); path != nil {
			full := append(path, p.Predicts, id)
			return &CircularDependencyError{Path: full, Observable: p.Predicts}
		}
	}
	return nil
}

// calibrationPath searches the transitive inputs of start for a fitted
// parameter calibrated against the given observable. It returns the
// dependency chain [start, ..., fitted] or nil. The search is depth-first
// over lexically sorted inputs, so the witness is deterministic.
func (g *Graph) calibrationPath(start, observable string) []string {
	seen := make(map[int]bool)
	var chain []string

	var dfs func(u int) bool
	dfs = func(u int) bool {
		seen[u] = true
		chain = append(chain, g.ids[u])
		p, _ := g.reg.Get(g.ids[u])
		if p.Status == registry.StatusFitted && p.CalibratedAgainst == observable {
			return true
		}
		for _, v := range g.incoming[u] {
			if seen[v] {
				continue
			}
			if dfs(v) {
				return true
			}
		}
		chain = chain[:len(chain)-1]
		return false
	}

	if dfs(g.index[start]) {
		out := make([]string, len(chain))
		copy(out, chain)
		return out
	}
	return nil
}
