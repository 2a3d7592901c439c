package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSpec = `
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
    formula: beta_from_alpha
    inputs: [alpha]
formulas:
  - id: beta_from_alpha
    inputs: [alpha]
    output: beta
    op: product
    coefficient: 3
`

func TestParse_ValidSpec(t *testing.T) {
	r, err := Parse([]byte(validSpec))
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"alpha", "beta"}, r.IDs())
	assert.Equal(t, []string{"alpha"}, r.BaseIDs())

	alpha, err := r.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, StatusExperimentalInput, alpha.Status)
	assert.Equal(t, EvalValid, alpha.State, "literal values are final immediately")
	require.NotNil(t, alpha.Uncertainty)
	assert.Equal(t, DistGaussian, alpha.Uncertainty.Model, "gaussian is the default model")

	beta, err := r.Get("beta")
	require.NoError(t, err)
	assert.True(t, beta.Derived())
	assert.Equal(t, EvalPending, beta.State)

	f, ok := r.Formula("beta_from_alpha")
	require.True(t, ok)
	assert.Equal(t, "beta", f.Output)
}

func TestParse_DuplicateParameterID(t *testing.T) {
	spec := `
parameters:
  - id: alpha
    category: couplings
    status: topological
    value: 1
    unit: dimensionless
  - id: alpha
    category: couplings
    status: topological
    value: 2
    unit: dimensionless
`
	_, err := Parse([]byte(spec))
	require.Error(t, err)

	var dup *DuplicateIDError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "alpha", dup.ID)
	assert.Equal(t, "parameter", dup.Kind)
	assert.True(t, errors.Is(err, ErrDuplicateID))
}

func TestParse_DuplicateFormulaID(t *testing.T) {
	spec := `
parameters:
  - id: alpha
    category: couplings
    status: topological
    value: 1
    unit: dimensionless
  - id: beta
    category: couplings
    status: derived
    unit: dimensionless
    formula: f
    inputs: [alpha]
formulas:
  - id: f
    inputs: [alpha]
    output: beta
  - id: f
    inputs: [alpha]
    output: beta
`
	_, err := Parse([]byte(spec))
	var dup *DuplicateIDError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "formula", dup.Kind)
}

func TestParse_UnknownInput(t *testing.T) {
	spec := `
parameters:
  - id: beta
    category: couplings
    status: derived
    unit: dimensionless
    formula: f
    inputs: [ghost]
formulas:
  - id: f
    inputs: [ghost]
    output: beta
`
	_, err := Parse([]byte(spec))
	require.Error(t, err)
	var unknown *UnknownParameterError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "ghost", unknown.ID)
}

func TestParse_FormulaInputMismatch(t *testing.T) {
	spec := `
parameters:
  - id: alpha
    category: couplings
    status: topological
    value: 1
    unit: dimensionless
  - id: gamma
    category: couplings
    status: topological
    value: 1
    unit: dimensionless
  - id: beta
    category: couplings
    status: derived
    unit: dimensionless
    formula: f
    inputs: [alpha]
formulas:
  - id: f
    inputs: [alpha, gamma]
    output: beta
`
	_, err := Parse([]byte(spec))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not match")
}

func TestParse_StructuralValidation(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want string
	}{
		{
			name: "no parameters",
			spec: `formulas: []`,
			want: "declares no parameters",
		},
		{
			name: "missing unit",
			spec: `
parameters:
  - id: alpha
    category: c
    status: topological
    value: 1
`,
			want: "unit is required",
		},
		{
			name: "unknown status",
			spec: `
parameters:
  - id: alpha
    category: c
    status: guessed
    value: 1
    unit: dimensionless
`,
			want: "unknown status",
		},
		{
			name: "derived without formula",
			spec: `
parameters:
  - id: alpha
    category: c
    status: derived
    unit: dimensionless
    inputs: [x]
`,
			want: "requires a formula",
		},
		{
			name: "non-derived with inputs",
			spec: `
parameters:
  - id: alpha
    category: c
    status: topological
    value: 1
    unit: dimensionless
    inputs: [x]
`,
			want: "must not declare inputs",
		},
		{
			name: "predicts on non-derived",
			spec: `
parameters:
  - id: alpha
    category: c
    status: topological
    value: 1
    unit: dimensionless
    predicts: omega
`,
			want: "predicts is only valid",
		},
		{
			name: "calibrated_against on non-fitted",
			spec: `
parameters:
  - id: alpha
    category: c
    status: topological
    value: 1
    unit: dimensionless
    calibrated_against: omega
`,
			want: "calibrated_against is only valid",
		},
		{
			name: "negative sigma",
			spec: `
parameters:
  - id: alpha
    category: c
    status: topological
    value: 1
    unit: dimensionless
    uncertainty:
      sigma: -0.5
`,
			want: "sigma must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.spec))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r, err := Parse([]byte(validSpec))
	require.NoError(t, err)

	_, err = r.Get("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownParameter))
}

func TestSameInputs(t *testing.T) {
	assert.True(t, sameInputs([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, sameInputs([]string{"a"}, []string{"a", "b"}))
	assert.False(t, sameInputs([]string{"a", "c"}, []string{"a", "b"}))
}
