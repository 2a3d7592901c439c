package eval

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/paramspec/graph"
	"github.com/c360studio/paramspec/registry"
)

const chainSpec = `
parameters:
  - id: alpha
    category: couplings
    status: experimental_input
    value: 2.0
    unit: dimensionless
    uncertainty:
      sigma: 0.1
  - id: beta
    category: couplings
    status: derived
    unit: dimensionless
    formula: beta_f
    inputs: [alpha]
  - id: gamma
    category: couplings
    status: derived
    unit: dimensionless
    formula: gamma_f
    inputs: [beta]
formulas:
  - id: beta_f
    inputs: [alpha]
    output: beta
    op: product
    coefficient: 3
  - id: gamma_f
    inputs: [beta]
    output: gamma
    op: power
    exponent: 2
`

func setup(t *testing.T, spec string) (*registry.Registry, *graph.Graph, *Registry) {
	t.Helper()
	reg, err := registry.Parse([]byte(spec))
	require.NoError(t, err)
	g, err := graph.Build(reg)
	require.NoError(t, err)
	funcs := NewRegistry()
	require.NoError(t, RegisterBuiltins(funcs, reg))
	return reg, g, funcs
}

func TestEvaluate_Chain(t *testing.T) {
	reg, g, funcs := setup(t, chainSpec)

	require.NoError(t, New(g, reg, funcs, nil).Evaluate())

	beta, _ := reg.Get("beta")
	assert.Equal(t, 6.0, beta.Value)
	assert.Equal(t, registry.EvalValid, beta.State)

	gamma, _ := reg.Get("gamma")
	assert.Equal(t, 36.0, gamma.Value)
	assert.Equal(t, registry.EvalValid, gamma.State)
}

func TestEvaluate_UnregisteredFormula(t *testing.T) {
	reg, err := registry.Parse([]byte(chainSpec))
	require.NoError(t, err)
	g, err := graph.Build(reg)
	require.NoError(t, err)

	// Empty function registry: both derived parameters must end up invalid
	// and the first failure names beta.
	err = New(g, reg, NewRegistry(), nil).Evaluate()
	require.Error(t, err)

	var fe *FormulaEvaluationError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "beta", fe.ParameterID)
	assert.Equal(t, "beta_f", fe.FormulaID)

	beta, _ := reg.Get("beta")
	gamma, _ := reg.Get("gamma")
	assert.Equal(t, registry.EvalInvalid, beta.State)
	assert.Equal(t, registry.EvalInvalid, gamma.State)
}

func TestEvaluate_FailurePoisonsDownstream(t *testing.T) {
	reg, g, _ := setup(t, chainSpec)

	funcs := NewRegistry()
	funcs.Register("beta_f", func(map[string]float64) (float64, error) {
		return 0, fmt.Errorf("domain error")
	})
	funcs.Register("gamma_f", func(map[string]float64) (float64, error) {
		t.Fatal("gamma_f must not be invoked with a poisoned input")
		return 0, nil
	})

	err := New(g, reg, funcs, nil).Evaluate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormulaEvaluation))

	beta, _ := reg.Get("beta")
	gamma, _ := reg.Get("gamma")
	assert.Equal(t, registry.EvalInvalid, beta.State)
	assert.Equal(t, registry.EvalInvalid, gamma.State,
		"downstream dependents are poisoned, never defaulted")
}

func TestEvaluate_NonFiniteResult(t *testing.T) {
	spec := `
parameters:
  - id: num
    category: c
    status: topological
    value: 1
    unit: dimensionless
  - id: den
    category: c
    status: topological
    value: 0
    unit: dimensionless
  - id: q
    category: c
    status: derived
    unit: dimensionless
    formula: q_f
    inputs: [num, den]
formulas:
  - id: q_f
    inputs: [num, den]
    output: q
    op: ratio
`
	reg, g, funcs := setup(t, spec)

	err := New(g, reg, funcs, nil).Evaluate()
	require.Error(t, err)

	var fe *FormulaEvaluationError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "q", fe.ParameterID)

	q, _ := reg.Get("q")
	assert.Equal(t, registry.EvalInvalid, q.State)
}

func TestRecompute_MatchesFullEvaluation(t *testing.T) {
	reg, g, funcs := setup(t, chainSpec)
	ev := New(g, reg, funcs, nil)
	require.NoError(t, ev.Evaluate())

	// Change the base input and recompute only the dirty set.
	alpha, _ := reg.Get("alpha")
	alpha.Value = 5.0
	require.NoError(t, ev.Recompute("alpha"))

	// Compare against a full evaluation from scratch.
	fresh, err := registry.Parse([]byte(chainSpec))
	require.NoError(t, err)
	freshAlpha, _ := fresh.Get("alpha")
	freshAlpha.Value = 5.0
	fg, err := graph.Build(fresh)
	require.NoError(t, err)
	ffuncs := NewRegistry()
	require.NoError(t, RegisterBuiltins(ffuncs, fresh))
	require.NoError(t, New(fg, fresh, ffuncs, nil).Evaluate())

	for _, id := range reg.IDs() {
		got, _ := reg.Get(id)
		want, _ := fresh.Get(id)
		assert.Equal(t, want.Value, got.Value, "parameter %s", id)
		assert.Equal(t, want.State, got.State, "parameter %s", id)
	}
}

func TestRecompute_UnknownParameter(t *testing.T) {
	reg, g, funcs := setup(t, chainSpec)
	err := New(g, reg, funcs, nil).Recompute("ghost")
	assert.True(t, errors.Is(err, registry.ErrUnknownParameter))
}

func TestRecompute_LeavesSiblingsUntouched(t *testing.T) {
	spec := `
parameters:
  - id: a
    category: c
    status: topological
    value: 1
    unit: dimensionless
  - id: b
    category: c
    status: topological
    value: 10
    unit: dimensionless
  - id: double_a
    category: c
    status: derived
    unit: dimensionless
    formula: fa
    inputs: [a]
  - id: double_b
    category: c
    status: derived
    unit: dimensionless
    formula: fb
    inputs: [b]
formulas:
  - id: fa
    inputs: [a]
    output: double_a
    op: product
    coefficient: 2
  - id: fb
    inputs: [b]
    output: double_b
    op: product
    coefficient: 2
`
	reg, g, _ := setup(t, spec)
	funcs := NewRegistry()
	require.NoError(t, RegisterBuiltins(funcs, reg))

	ev := New(g, reg, funcs, nil)
	require.NoError(t, ev.Evaluate())

	calls := 0
	funcs.Register("fb", func(map[string]float64) (float64, error) {
		calls++
		return 0, nil
	})

	a, _ := reg.Get("a")
	a.Value = 3
	require.NoError(t, ev.Recompute("a"))

	da, _ := reg.Get("double_a")
	db, _ := reg.Get("double_b")
	assert.Equal(t, 6.0, da.Value)
	assert.Equal(t, 20.0, db.Value, "sibling branch keeps its value")
	assert.Zero(t, calls, "sibling branch is not re-evaluated")
}

func TestRegisterBuiltins(t *testing.T) {
	reg, _, funcs := setup(t, chainSpec)
	_ = reg

	assert.Equal(t, []string{"beta_f", "gamma_f"}, funcs.IDs())

	fn, err := funcs.Get("beta_f")
	require.NoError(t, err)
	v, err := fn(map[string]float64{"alpha": 2})
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)
}

func TestBuiltinOps(t *testing.T) {
	tests := []struct {
		name    string
		formula registry.Formula
		inputs  map[string]float64
		want    float64
		wantErr bool
	}{
		{
			name:    "sum",
			formula: registry.Formula{ID: "f", Inputs: []string{"a", "b"}, Op: OpSum},
			inputs:  map[string]float64{"a": 1, "b": 2},
			want:    3,
		},
		{
			name:    "difference keeps input order",
			formula: registry.Formula{ID: "f", Inputs: []string{"a", "b"}, Op: OpDifference},
			inputs:  map[string]float64{"a": 5, "b": 2},
			want:    3,
		},
		{
			name:    "scaled product",
			formula: registry.Formula{ID: "f", Inputs: []string{"a", "b"}, Op: OpProduct, Coefficient: 0.5},
			inputs:  map[string]float64{"a": 4, "b": 3},
			want:    6,
		},
		{
			name:    "ratio",
			formula: registry.Formula{ID: "f", Inputs: []string{"a", "b"}, Op: OpRatio},
			inputs:  map[string]float64{"a": 6, "b": 3},
			want:    2,
		},
		{
			name:    "ratio by zero",
			formula: registry.Formula{ID: "f", Inputs: []string{"a", "b"}, Op: OpRatio},
			inputs:  map[string]float64{"a": 6, "b": 0},
			wantErr: true,
		},
		{
			name:    "power",
			formula: registry.Formula{ID: "f", Inputs: []string{"a"}, Op: OpPower, Exponent: 3},
			inputs:  map[string]float64{"a": 2},
			want:    8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := builtinFunc(&tt.formula)
			require.NoError(t, err)
			v, err := fn(tt.inputs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestBuiltinFunc_Invalid(t *testing.T) {
	_, err := builtinFunc(&registry.Formula{ID: "f", Inputs: []string{"a"}, Op: "integrate"})
	assert.Error(t, err)

	_, err = builtinFunc(&registry.Formula{ID: "f", Inputs: []string{"a", "b"}, Op: OpPower})
	assert.Error(t, err)
}
