package registry

import (
	"errors"
	"fmt"
)

// Common registry errors.
var (
	// ErrDuplicateID is returned when two definitions share an id.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrUnknownParameter is returned when a parameter id does not resolve.
	ErrUnknownParameter = errors.New("unknown parameter")
)

// DuplicateIDError reports a repeated parameter or formula id in a spec file.
type DuplicateIDError struct {
	ID   string
	Kind string // "parameter" or "formula"
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate %s id: %q", e.Kind, e.ID)
}

func (e *DuplicateIDError) Unwrap() error { return ErrDuplicateID }

// UnknownParameterError reports a lookup of an id absent from the registry.
type UnknownParameterError struct {
	ID string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("unknown parameter: %q", e.ID)
}

func (e *UnknownParameterError) Unwrap() error { return ErrUnknownParameter }
