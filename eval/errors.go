package eval

import (
	"errors"
	"fmt"
)

// ErrFormulaEvaluation is the sentinel for arithmetic or domain failures
// during derivation.
var ErrFormulaEvaluation = errors.New("formula evaluation failed")

// FormulaEvaluationError reports a failed derivation. The named parameter and
// every downstream dependent are marked invalid; no fallback value is ever
// substituted.
type FormulaEvaluationError struct {
	ParameterID string
	FormulaID   string
	Err         error
}

func (e *FormulaEvaluationError) Error() string {
	return fmt.Sprintf("formula %q failed for parameter %q: %v", e.FormulaID, e.ParameterID, e.Err)
}

func (e *FormulaEvaluationError) Unwrap() error { return ErrFormulaEvaluation }
