package eval

import (
	"fmt"
	"math"

	"github.com/c360studio/paramspec/registry"
)

// Builtin operation names usable in a formula's op declaration.
const (
	OpSum        = "sum"
	OpDifference = "difference"
	OpProduct    = "product"
	OpRatio      = "ratio"
	OpPower      = "power"
)

// RegisterBuiltins registers an implementation for every formula in reg that
// declares a builtin op and has no implementation registered yet. Formulas
// without an op declaration are left for programmatic registration.
func RegisterBuiltins(r *Registry, reg *registry.Registry) error {
	for _, f := range reg.Formulas() {
		if f.Op == "" {
			continue
		}
		if _, err := r.Get(f.ID); err == nil {
			continue
		}
		fn, err := builtinFunc(f)
		if err != nil {
			return err
		}
		r.Register(f.ID, fn)
	}
	return nil
}

// builtinFunc compiles a formula's op declaration into a Func. Input order
// follows the formula's declared input list.
func builtinFunc(f *registry.Formula) (Func, error) {
	ids := append([]string(nil), f.Inputs...)
	coeff := f.Coefficient
	if coeff == 0 {
		coeff = 1
	}

	switch f.Op {
	case OpSum:
		return func(inputs map[string]float64) (float64, error) {
			sum := 0.0
			for _, id := range ids {
				sum += inputs[id]
			}
			return coeff * sum, nil
		}, nil

	case OpDifference:
		return func(inputs map[string]float64) (float64, error) {
			diff := inputs[ids[0]]
			for _, id := range ids[1:] {
				diff -= inputs[id]
			}
			return coeff * diff, nil
		}, nil

	case OpProduct:
		return func(inputs map[string]float64) (float64, error) {
			prod := 1.0
			for _, id := range ids {
				prod *= inputs[id]
			}
			return coeff * prod, nil
		}, nil

	case OpRatio:
		return func(inputs map[string]float64) (float64, error) {
			denom := 1.0
			for _, id := range ids[1:] {
				denom *= inputs[id]
			}
			if denom == 0 {
				return 0, fmt.Errorf("division by zero in formula %q", f.ID)
			}
			return coeff * inputs[ids[0]] / denom, nil
		}, nil

	case OpPower:
		if len(ids) != 1 {
			return nil, fmt.Errorf("formula %q: power op requires exactly one input, got %d", f.ID, len(ids))
		}
		exp := f.Exponent
		if exp == 0 {
			exp = 1
		}
		return func(inputs map[string]float64) (float64, error) {
			return coeff * math.Pow(inputs[ids[0]], exp), nil
		}, nil

	default:
		return nil, fmt.Errorf("formula %q: unknown builtin op %q", f.ID, f.Op)
	}
}
