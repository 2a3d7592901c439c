package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCircularDependency is the sentinel for any dependency cycle, including
// observable calibration loops.
var ErrCircularDependency = errors.New("circular dependency")

// CircularDependencyError reports a dependency cycle among parameters.
// Path lists each node in the cycle exactly once plus the repeated start
// node, e.g. [mixing_angle, alpha_difference, mixing_angle].
type CircularDependencyError struct {
	Path []string

	// Observable is set when the cycle runs through an external observable:
	// a derived parameter predicting the observable transitively consumes a
	// fitted parameter calibrated against it.
	Observable string
}

func (e *CircularDependencyError) Error() string {
	path := strings.Join(e.Path, " -> ")
	if e.Observable != "" {
		return fmt.Sprintf("circular dependency through observable %q: %s", e.Observable, path)
	}
	return fmt.Sprintf("circular dependency: %s", path)
}

func (e *CircularDependencyError) Unwrap() error { return ErrCircularDependency }
