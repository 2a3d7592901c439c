package registry

import (
	"fmt"
)

// Status is the declared provenance of a parameter's value.
type Status string

// Provenance statuses. A parameter's status is declared in the spec file and
// machine-checked; it is never inferred.
const (
	// StatusTopological marks a value fixed by construction (no measurement).
	StatusTopological Status = "topological"
	// StatusDerived marks a value computed from other parameters via a formula.
	StatusDerived Status = "derived"
	// StatusFitted marks a value calibrated against an external observable.
	StatusFitted Status = "fitted"
	// StatusExperimentalInput marks a directly measured value.
	StatusExperimentalInput Status = "experimental_input"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTopological, StatusDerived, StatusFitted, StatusExperimentalInput:
		return true
	}
	return false
}

// EvalState tracks the outcome of evaluation for a parameter within one build.
// It is runtime state, never written back to the spec file.
type EvalState string

// Evaluation states.
const (
	// EvalPending means the parameter has not been evaluated yet.
	EvalPending EvalState = "pending"
	// EvalValid means the parameter holds a defined value.
	EvalValid EvalState = "valid"
	// EvalInvalid means evaluation failed for this parameter or an upstream
	// input; the value must not be used.
	EvalInvalid EvalState = "invalid"
)

// DistModel names an uncertainty distribution.
type DistModel string

// Supported distribution models for non-derived parameters.
const (
	DistGaussian  DistModel = "gaussian"
	DistUniform   DistModel = "uniform"
	DistLogNormal DistModel = "lognormal"
)

// Uncertainty declares the uncertainty model of a non-derived parameter.
type Uncertainty struct {
	// Model is the distribution family. Defaults to gaussian when a sigma is
	// given without a model.
	Model DistModel `yaml:"model" json:"model"`

	// Sigma is the standard deviation (gaussian, lognormal) or half-width
	// (uniform), in the parameter's unit.
	Sigma float64 `yaml:"sigma" json:"sigma"`
}

// Validate checks the uncertainty declaration.
func (u *Uncertainty) Validate() error {
	switch u.Model {
	case DistGaussian, DistUniform, DistLogNormal:
	case "":
		u.Model = DistGaussian
	default:
		return fmt.Errorf("unknown uncertainty model: %q", u.Model)
	}
	if u.Sigma < 0 {
		return fmt.Errorf("uncertainty sigma must be non-negative, got %g", u.Sigma)
	}
	return nil
}

// Parameter is one physical or numeric quantity in the canonical registry.
type Parameter struct {
	// ID is the unique identifier within the registry.
	ID string `yaml:"id" json:"id"`

	// Category groups parameters in the exported dataset (e.g. "masses").
	Category string `yaml:"category" json:"category"`

	// Status is the declared provenance.
	Status Status `yaml:"status" json:"status"`

	// Value is the declared literal value for non-derived parameters. For
	// derived parameters it is computed by the evaluator.
	Value float64 `yaml:"value" json:"value"`

	// Unit is the physical unit. "dimensionless" is explicit, never empty.
	Unit string `yaml:"unit" json:"unit"`

	// Formula is the formula id for derived parameters.
	Formula string `yaml:"formula,omitempty" json:"formula,omitempty"`

	// Inputs lists the parameter ids consumed by the formula (derived only).
	Inputs []string `yaml:"inputs,omitempty" json:"inputs,omitempty"`

	// Uncertainty is the declared uncertainty model. Nil means unknown, which
	// is distinct from zero uncertainty and surfaced as a warning during
	// propagation.
	Uncertainty *Uncertainty `yaml:"uncertainty,omitempty" json:"uncertainty,omitempty"`

	// Labels are the human-readable names the content scanner recognizes
	// next to a literal in a rendered document.
	Labels []string `yaml:"labels,omitempty" json:"labels,omitempty"`

	// Tolerance is the declared rounding tolerance for literal comparison in
	// documents. Zero means "use category or precision default".
	Tolerance float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`

	// CalibratedAgainst names the external observable a fitted parameter was
	// calibrated to. Fitted parameters only.
	CalibratedAgainst string `yaml:"calibrated_against,omitempty" json:"calibrated_against,omitempty"`

	// Predicts names the external observable a derived parameter claims to
	// predict. Used to reject calibration loops.
	Predicts string `yaml:"predicts,omitempty" json:"predicts,omitempty"`

	// State is the evaluation outcome for the current build.
	State EvalState `yaml:"-" json:"-"`
}

// Derived reports whether the parameter's value comes from a formula.
func (p *Parameter) Derived() bool { return p.Status == StatusDerived }

func (p *Parameter) validate() error {
	if p.ID == "" {
		return fmt.Errorf("parameter id is required")
	}
	if p.Category == "" {
		return fmt.Errorf("parameter %q: category is required", p.ID)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("parameter %q: unknown status %q", p.ID, p.Status)
	}
	if p.Unit == "" {
		return fmt.Errorf("parameter %q: unit is required", p.ID)
	}
	if p.Derived() {
		if p.Formula == "" {
			return fmt.Errorf("parameter %q: derived parameter requires a formula", p.ID)
		}
		if len(p.Inputs) == 0 {
			return fmt.Errorf("parameter %q: derived parameter requires at least one input", p.ID)
		}
	} else {
		if p.Formula != "" {
			return fmt.Errorf("parameter %q: %s parameter must not reference a formula", p.ID, p.Status)
		}
		if len(p.Inputs) != 0 {
			return fmt.Errorf("parameter %q: %s parameter must not declare inputs", p.ID, p.Status)
		}
	}
	if p.Predicts != "" && !p.Derived() {
		return fmt.Errorf("parameter %q: predicts is only valid on derived parameters", p.ID)
	}
	if p.CalibratedAgainst != "" && p.Status != StatusFitted {
		return fmt.Errorf("parameter %q: calibrated_against is only valid on fitted parameters", p.ID)
	}
	if p.Tolerance < 0 {
		return fmt.Errorf("parameter %q: tolerance must be non-negative", p.ID)
	}
	if p.Uncertainty != nil {
		if err := p.Uncertainty.Validate(); err != nil {
			return fmt.Errorf("parameter %q: %w", p.ID, err)
		}
	}
	return nil
}
