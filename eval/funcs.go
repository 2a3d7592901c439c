// Package eval evaluates derived parameters in topological order using
// externally supplied formula implementations.
package eval

import (
	"fmt"
	"sort"
	"sync"
)

// Func is the fixed contract for an externally supplied formula
// implementation: resolved input values in, one value out.
type Func func(inputs map[string]float64) (float64, error)

// Registry manages formula implementations keyed by formula id.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates an empty formula implementation registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds an implementation for a formula id, replacing any previous
// implementation.
func (r *Registry) Register(id string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[id] = fn
}

// Get returns the implementation for a formula id.
func (r *Registry) Get(id string) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[id]
	if !ok {
		return nil, fmt.Errorf("no implementation registered for formula %q", id)
	}
	return fn, nil
}

// IDs returns the registered formula ids in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for id := range r.funcs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
