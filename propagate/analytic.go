package propagate

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/c360studio/paramspec/eval"
	"github.com/c360studio/paramspec/graph"
	"github.com/c360studio/paramspec/registry"
)

// jacobianEps is the relative step for the central-difference Jacobian.
// Formula implementations are opaque callables, so derivatives are numeric.
const jacobianEps = 1e-6

// Propagator runs uncertainty propagation over an evaluated registry.
type Propagator struct {
	graph  *graph.Graph
	reg    *registry.Registry
	funcs  *eval.Registry
	logger *slog.Logger
}

// New creates a propagator. The registry must already be evaluated.
func New(g *graph.Graph, reg *registry.Registry, funcs *eval.Registry, logger *slog.Logger) *Propagator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Propagator{graph: g, reg: reg, funcs: funcs, logger: logger}
}

// Analytic performs first-order propagation. Each parameter's gradient with
// respect to the independent base parameters is accumulated through the
// topological order, so correlation from shared upstream inputs is carried
// exactly: for B = 3A and C = B + A the result is sigma_C = 4*sigma_A, not
// the quadrature sum of sigma_B and sigma_A.
func (p *Propagator) Analytic() (*Result, error) {
	bases := p.reg.BaseIDs()
	baseIndex := make(map[string]int, len(bases))
	for i, b := range bases {
		baseIndex[b] = i
	}

	res := &Result{
		Mode:           ModeAnalytic,
		Stats:          make(map[string]Stats, p.reg.Len()),
		Underspecified: make(map[string]bool),
	}

	// sigma per base; missing declarations warn and propagate as exact.
	sigma := make([]float64, len(bases))
	missing := make([]bool, len(bases))
	for i, b := range bases {
		bp, _ := p.reg.Get(b)
		if bp.Uncertainty == nil {
			missing[i] = true
			res.Warnings = append(res.Warnings, MissingUncertaintyWarning{ParameterID: b})
			res.Underspecified[b] = true
			p.logger.Warn("missing uncertainty declaration", slog.String("parameter", b))
			continue
		}
		sigma[i] = bp.Uncertainty.Sigma
	}

	// Gradient vectors w.r.t. bases, accumulated along the topology.
	grads := make(map[string][]float64, p.reg.Len())
	for i, b := range bases {
		g := make([]float64, len(bases))
		g[i] = 1
		grads[b] = g
	}

	for _, id := range p.graph.TopologicalOrder() {
		param, _ := p.reg.Get(id)
		if !param.Derived() {
			continue
		}
		if param.State != registry.EvalValid {
			return nil, fmt.Errorf("parameter %q is not evaluated; run the evaluator before propagation", id)
		}

		jac, err := p.jacobian(param)
		if err != nil {
			return nil, err
		}

		g := make([]float64, len(bases))
		for _, in := range param.Inputs {
			ig := grads[in]
			w := jac[in]
			for k := range g {
				g[k] += w * ig[k]
			}
		}
		grads[id] = g
	}

	// Variances and under-specification flags.
	std := make(map[string]float64, len(grads))
	for id, g := range grads {
		var v float64
		for k := range g {
			if missing[k] && g[k] != 0 {
				res.Underspecified[id] = true
			}
			v += g[k] * g[k] * sigma[k] * sigma[k]
		}
		std[id] = math.Sqrt(v)
	}

	for _, id := range p.reg.SortedIDs() {
		param, _ := p.reg.Get(id)
		res.Stats[id] = Stats{Mean: param.Value, Std: std[id]}
	}

	res.Correlation = correlationFromGradients(p.reg.SortedIDs(), grads, sigma, std)
	return res, nil
}

// jacobian computes the partial derivative of a formula with respect to each
// direct input by central difference at the current input values.
func (p *Propagator) jacobian(param *registry.Parameter) (map[string]float64, error) {
	fn, err := p.funcs.Get(param.Formula)
	if err != nil {
		return nil, err
	}

	inputs := make(map[string]float64, len(param.Inputs))
	for _, in := range param.Inputs {
		ip, _ := p.reg.Get(in)
		inputs[in] = ip.Value
	}

	jac := make(map[string]float64, len(param.Inputs))
	for _, in := range param.Inputs {
		x := inputs[in]
		h := jacobianEps * math.Max(math.Abs(x), 1)

		inputs[in] = x + h
		hi, err := fn(inputs)
		if err != nil {
			inputs[in] = x
			return nil, fmt.Errorf("jacobian of formula %q at %q: %w", param.Formula, in, err)
		}
		inputs[in] = x - h
		lo, err := fn(inputs)
		inputs[in] = x
		if err != nil {
			return nil, fmt.Errorf("jacobian of formula %q at %q: %w", param.Formula, in, err)
		}
		jac[in] = (hi - lo) / (2 * h)
	}
	return jac, nil
}

// correlationFromGradients builds the full correlation matrix from gradient
// covariance: cov(a,b) = sum_k grad_a[k] grad_b[k] sigma_k^2.
func correlationFromGradients(ids []string, grads map[string][]float64, sigma []float64, std map[string]float64) *Matrix {
	m := NewMatrix(ids)
	for _, a := range ids {
		for _, b := range ids {
			if a > b {
				continue
			}
			ga, gb := grads[a], grads[b]
			var cov float64
			for k := range sigma {
				cov += ga[k] * gb[k] * sigma[k] * sigma[k]
			}
			sa, sb := std[a], std[b]
			if sa == 0 || sb == 0 {
				if a == b && sa > 0 {
					m.Set(a, b, 1)
				}
				continue
			}
			m.Set(a, b, cov/(sa*sb))
		}
	}
	return m
}
