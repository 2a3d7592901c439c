package export

import (
	"errors"
	"fmt"
)

// ErrExportIntegrity is the sentinel for a divergence between a declared
// artifact and what was actually written.
var ErrExportIntegrity = errors.New("export integrity violation")

// IntegrityError reports a generated artifact that does not match the
// snapshot it claims to mirror.
type IntegrityError struct {
	Artifact string
	Detail   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("export integrity violation in %s: %s", e.Artifact, e.Detail)
}

func (e *IntegrityError) Unwrap() error { return ErrExportIntegrity }
