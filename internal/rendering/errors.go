// Package rendering assembles the CV markup document from a record snapshot.
package rendering

import (
	"errors"
	"fmt"
)

// ErrMissingField is matched by every MissingFieldError
var ErrMissingField = errors.New("missing required field")

// MissingFieldError reports a preamble placeholder with no personal value behind it.
// Rendering stops without output rather than substituting empty text.
type MissingFieldError struct {
	Key string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, e.Key)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// builtinSource names the default preamble in errors
const builtinSource = "built-in preamble"

// TemplateError is a preamble that could not be read, parsed or executed
type TemplateError struct {
	// Source is the template path, or builtinSource
	Source string
	// Stage is "read", "parse" or "execute"
	Stage string
	Cause error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s: %s failed: %v", e.Source, e.Stage, e.Cause)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}
