// Package registry loads the declarative parameter specification into
// in-memory entities and performs structural validation. No formula is
// evaluated here; evaluation belongs to the eval package.
package registry

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Spec is the on-disk shape of a parameter specification file.
type Spec struct {
	Parameters []*Parameter `yaml:"parameters"`
	Formulas   []*Formula   `yaml:"formulas"`
}

// Registry holds the loaded parameters and formula declarations for one build.
// It is constructed once per build; only the evaluator and propagator mutate
// computed values, in topological order.
type Registry struct {
	params   map[string]*Parameter
	formulas map[string]*Formula
	order    []string // ids in declaration order
}

// Load reads and parses a parameter specification file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parameter spec: %w", err)
	}
	return Parse(data)
}

// Parse builds a Registry from raw spec bytes, failing on the first
// structural problem: duplicate ids, invalid statuses, derived parameters
// without formulas, dangling references, or formula/parameter input mismatch.
func Parse(data []byte) (*Registry, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse parameter spec: %w", err)
	}
	if len(spec.Parameters) == 0 {
		return nil, fmt.Errorf("parameter spec declares no parameters")
	}

	r := &Registry{
		params:   make(map[string]*Parameter, len(spec.Parameters)),
		formulas: make(map[string]*Formula, len(spec.Formulas)),
	}

	for _, f := range spec.Formulas {
		if err := f.validate(); err != nil {
			return nil, err
		}
		if _, exists := r.formulas[f.ID]; exists {
			return nil, &DuplicateIDError{ID: f.ID, Kind: "formula"}
		}
		r.formulas[f.ID] = f
	}

	for _, p := range spec.Parameters {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, exists := r.params[p.ID]; exists {
			return nil, &DuplicateIDError{ID: p.ID, Kind: "parameter"}
		}
		p.State = EvalPending
		if !p.Derived() {
			// Literal values are final for non-derived parameters.
			p.State = EvalValid
		}
		r.params[p.ID] = p
		r.order = append(r.order, p.ID)
	}

	if err := r.checkReferences(); err != nil {
		return nil, err
	}
	return r, nil
}

// checkReferences verifies that every declared reference resolves and that
// formula declarations agree with their output parameter.
func (r *Registry) checkReferences() error {
	for _, id := range r.order {
		p := r.params[id]
		for _, in := range p.Inputs {
			if _, ok := r.params[in]; !ok {
				return fmt.Errorf("parameter %q: input %w", p.ID, &UnknownParameterError{ID: in})
			}
		}
		if !p.Derived() {
			continue
		}
		f, ok := r.formulas[p.Formula]
		if !ok {
			return fmt.Errorf("parameter %q references unknown formula %q", p.ID, p.Formula)
		}
		if f.Output != p.ID {
			return fmt.Errorf("formula %q declares output %q but parameter %q references it", f.ID, f.Output, p.ID)
		}
		if !sameInputs(f.Inputs, p.Inputs) {
			return fmt.Errorf("formula %q inputs %v do not match parameter %q inputs %v", f.ID, f.Inputs, p.ID, p.Inputs)
		}
	}
	for _, f := range r.formulas {
		if _, ok := r.params[f.Output]; !ok {
			return fmt.Errorf("formula %q: output %w", f.ID, &UnknownParameterError{ID: f.Output})
		}
	}
	return nil
}

// Get returns the parameter with the given id.
func (r *Registry) Get(id string) (*Parameter, error) {
	p, ok := r.params[id]
	if !ok {
		return nil, &UnknownParameterError{ID: id}
	}
	return p, nil
}

// Formula returns the formula declaration with the given id.
func (r *Registry) Formula(id string) (*Formula, bool) {
	f, ok := r.formulas[id]
	return f, ok
}

// IDs returns all parameter ids in declaration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SortedIDs returns all parameter ids in lexical order, for deterministic
// iteration in exports and hashing.
func (r *Registry) SortedIDs() []string {
	out := r.IDs()
	sort.Strings(out)
	return out
}

// Parameters returns all parameters in declaration order.
func (r *Registry) Parameters() []*Parameter {
	out := make([]*Parameter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.params[id])
	}
	return out
}

// Formulas returns all formula declarations sorted by id.
func (r *Registry) Formulas() []*Formula {
	ids := make([]string, 0, len(r.formulas))
	for id := range r.formulas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Formula, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.formulas[id])
	}
	return out
}

// Len returns the number of parameters.
func (r *Registry) Len() int { return len(r.params) }

// BaseIDs returns the ids of all non-derived parameters in lexical order.
// These are the independent inputs of the derivation graph.
func (r *Registry) BaseIDs() []string {
	var out []string
	for _, id := range r.SortedIDs() {
		if !r.params[id].Derived() {
			out = append(out, id)
		}
	}
	return out
}
