package eval

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/c360studio/paramspec/graph"
	"github.com/c360studio/paramspec/registry"
)

// Evaluator computes derived parameter values over a validated graph.
type Evaluator struct {
	graph  *graph.Graph
	reg    *registry.Registry
	funcs  *Registry
	logger *slog.Logger
}

// New creates an evaluator. A nil logger falls back to slog.Default().
func New(g *graph.Graph, reg *registry.Registry, funcs *Registry, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{graph: g, reg: reg, funcs: funcs, logger: logger}
}

// Evaluate computes every derived parameter in topological order. On a
// formula failure the parameter and all of its downstream dependents are
// marked invalid; the walk still completes so that every poisoned parameter
// is flagged, and the first failure is returned.
func (e *Evaluator) Evaluate() error {
	return e.evaluate(nil)
}

// Recompute re-evaluates only the dirty set downstream of a changed
// non-derived parameter. The result is numerically identical to a full
// Evaluate from scratch for every affected parameter.
func (e *Evaluator) Recompute(changedID string) error {
	if _, err := e.reg.Get(changedID); err != nil {
		return err
	}
	dirty := make(map[string]bool)
	for _, id := range e.graph.Downstream(changedID) {
		dirty[id] = true
	}
	return e.evaluate(dirty)
}

// evaluate walks the topological order. A nil subset means all parameters.
func (e *Evaluator) evaluate(subset map[string]bool) error {
	var firstErr error

	for _, id := range e.graph.TopologicalOrder() {
		p, _ := e.reg.Get(id)
		if !p.Derived() {
			continue
		}
		if subset != nil && !subset[id] {
			continue
		}

		if poisoned := e.invalidInput(p); poisoned != "" {
			p.State = registry.EvalInvalid
			e.logger.Warn("parameter poisoned by invalid input",
				slog.String("parameter", id),
				slog.String("input", poisoned))
			continue
		}

		inputs := make(map[string]float64, len(p.Inputs))
		for _, in := range p.Inputs {
			ip, _ := e.reg.Get(in)
			inputs[in] = ip.Value
		}

		fn, err := e.funcs.Get(p.Formula)
		if err != nil {
			p.State = registry.EvalInvalid
			if firstErr == nil {
				firstErr = &FormulaEvaluationError{ParameterID: id, FormulaID: p.Formula, Err: err}
			}
			continue
		}

		v, err := fn(inputs)
		if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
			err = errNonFinite(v)
		}
		if err != nil {
			p.State = registry.EvalInvalid
			e.logger.Error("formula evaluation failed",
				slog.String("parameter", id),
				slog.String("formula", p.Formula),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = &FormulaEvaluationError{ParameterID: id, FormulaID: p.Formula, Err: err}
			}
			continue
		}

		p.Value = v
		p.State = registry.EvalValid
	}

	return firstErr
}

// invalidInput returns the id of the first invalid input, or "".
func (e *Evaluator) invalidInput(p *registry.Parameter) string {
	for _, in := range p.Inputs {
		ip, _ := e.reg.Get(in)
		if ip.State == registry.EvalInvalid {
			return in
		}
	}
	return ""
}

type nonFiniteError float64

func errNonFinite(v float64) error { return nonFiniteError(v) }

func (e nonFiniteError) Error() string {
	return fmt.Sprintf("result is not a finite number: %g", float64(e))
}
