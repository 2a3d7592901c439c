package registry

import (
	"fmt"
	"sort"
)

// Formula declares a named computation producing one derived parameter.
// The numeric implementation is supplied externally and resolved by id at
// evaluation time; the registry only checks the declaration.
type Formula struct {
	// ID is the unique formula identifier.
	ID string `yaml:"id" json:"id"`

	// Inputs lists the parameter ids the computation consumes, in call order.
	Inputs []string `yaml:"inputs" json:"inputs"`

	// Output is the id of the derived parameter this formula produces.
	Output string `yaml:"output" json:"output"`

	// Verification is a free-form reference (document path, section) to the
	// derivation's verification material.
	Verification string `yaml:"verification,omitempty" json:"verification,omitempty"`

	// Op optionally names a builtin numeric operation implementing this
	// formula (e.g. "product", "ratio", "power"), used when no function has
	// been registered for the formula id. Empty means the implementation
	// must be registered programmatically.
	Op string `yaml:"op,omitempty" json:"op,omitempty"`

	// Coefficient scales the builtin operation's result (0 means 1).
	Coefficient float64 `yaml:"coefficient,omitempty" json:"coefficient,omitempty"`

	// Exponent parameterizes the "power" builtin (0 means 1).
	Exponent float64 `yaml:"exponent,omitempty" json:"exponent,omitempty"`
}

func (f *Formula) validate() error {
	if f.ID == "" {
		return fmt.Errorf("formula id is required")
	}
	if f.Output == "" {
		return fmt.Errorf("formula %q: output is required", f.ID)
	}
	if len(f.Inputs) == 0 {
		return fmt.Errorf("formula %q: at least one input is required", f.ID)
	}
	return nil
}

// sameInputs reports whether the formula's declared inputs match the
// parameter's declared inputs, ignoring order.
func sameInputs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
