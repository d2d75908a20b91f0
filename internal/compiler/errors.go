// Package compiler runs the external LaTeX compiler on a rendered document and classifies the outcome.
package compiler

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below
var (
	ErrCompilerNotFound = errors.New("LaTeX compiler not found")
	ErrCompileFailure   = errors.New("LaTeX compilation failed")
)

// NotFoundError reports that no compiler executable could be resolved.
// The compiler is never invoked in that case.
type NotFoundError struct {
	Name  string
	Tried []string
	Cause error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s is not installed or not on PATH. %s", ErrCompilerNotFound, e.Name, e.Remediation())
}

// Remediation tells the user how to get a working compiler
func (e *NotFoundError) Remediation() string {
	return "Please install a LaTeX distribution that ships " + e.Name + " (e.g., TeX Live, MacTeX, MiKTeX)"
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrCompilerNotFound
}

func (e *NotFoundError) Unwrap() error {
	return e.Cause
}

// CompileFailureError carries the diagnostic of a run that produced no PDF
type CompileFailureError struct {
	Diagnostic string
	Cause      error
}

func (e *CompileFailureError) Error() string {
	return ErrCompileFailure.Error() + ": PDF was not generated"
}

func (e *CompileFailureError) Is(target error) bool {
	return target == ErrCompileFailure
}

func (e *CompileFailureError) Unwrap() error {
	return e.Cause
}

// WorkspaceError represents a failure preparing the scoped working directory
type WorkspaceError struct {
	Message string
	Cause   error
}

func (e *WorkspaceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("compile workspace error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("compile workspace error: %s", e.Message)
}

func (e *WorkspaceError) Unwrap() error {
	return e.Cause
}
