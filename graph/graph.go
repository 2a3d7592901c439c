// Package graph builds the parameter dependency DAG and proves it acyclic
// before any evaluation happens. Nodes are parameters, edges run from each
// formula input to its derived output.
package graph

import (
	"sort"

	"github.com/c360studio/paramspec/registry"
)

// Graph is an immutable, validated parameter dependency DAG.
// It is safe for concurrent read access.
type Graph struct {
	reg *registry.Registry

	ids   []string // canonical (lexical) order
	index map[string]int

	outgoing [][]int // by canonical index, sorted ascending
	incoming [][]int
	indeg    []int

	topo []string // cached deterministic topological order
}

// Build constructs and validates the dependency graph for a registry.
//
// It rejects, as CircularDependencyError:
//   - any direct or indirect dependency cycle, with the exact cycle path;
//   - any derived parameter whose formula transitively consumes a fitted
//     parameter calibrated against the very observable the derived parameter
//     claims to predict.
func Build(reg *registry.Registry) (*Graph, error) {
	ids := reg.SortedIDs()
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	g := &Graph{
		reg:      reg,
		ids:      ids,
		index:    index,
		outgoing: make([][]int, len(ids)),
		incoming: make([][]int, len(ids)),
		indeg:    make([]int, len(ids)),
	}

	for _, id := range ids {
		p, _ := reg.Get(id)
		if !p.Derived() {
			continue
		}
		to := index[id]
		for _, in := range p.Inputs {
			from := index[in]
			g.outgoing[from] = append(g.outgoing[from], to)
			g.incoming[to] = append(g.incoming[to], from)
			g.indeg[to]++
		}
	}
	for i := range g.outgoing {
		sort.Ints(g.outgoing[i])
		sort.Ints(g.incoming[i])
	}

	order := g.topoIndices()
	if len(order) != len(g.ids) {
		return nil, &CircularDependencyError{Path: g.findCycle()}
	}
	g.topo = make([]string, len(order))
	for i, idx := range order {
		g.topo[i] = g.ids[idx]
	}

	if err := g.checkObservableLoops(); err != nil {
		return nil, err
	}
	return g, nil
}

// TopologicalOrder returns the deterministic evaluation order: every
// parameter appears only after all of its inputs.
func (g *Graph) TopologicalOrder() []string {
	out := make([]string, len(g.topo))
	copy(out, g.topo)
	return out
}

// Inputs returns the direct input ids of a parameter in lexical order.
func (g *Graph) Inputs(id string) []string {
	idx, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.incoming[idx]))
	for _, from := range g.incoming[idx] {
		out = append(out, g.ids[from])
	}
	return out
}

// Dependents returns the direct dependents of a parameter in lexical order.
func (g *Graph) Dependents(id string) []string {
	idx, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.outgoing[idx]))
	for _, to := range g.outgoing[idx] {
		out = append(out, g.ids[to])
	}
	return out
}

// Downstream returns the dirty set of a changed parameter: every parameter
// reachable from it along dependency edges, excluding the parameter itself.
// The result is sorted lexically.
func (g *Graph) Downstream(id string) []string {
	start, ok := g.index[id]
	if !ok {
		return nil
	}
	seen := make(map[int]bool)
	queue := append([]int(nil), g.outgoing[start]...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen[n] {
			continue
		}
		seen[n] = true
		queue = append(queue, g.outgoing[n]...)
	}
	out := make([]string, 0, len(seen))
	for idx := range seen {
		out = append(out, g.ids[idx])
	}
	sort.Strings(out)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.ids) }
