// Package project saves and loads CV records as JSON or YAML project files.
package project

import (
	"errors"
	"fmt"
)

// ErrPersistence matches every *PersistenceError
var ErrPersistence = errors.New("project persistence failed")

// PersistenceError represents a failed save or load. The in-memory record
// is never modified when one is returned.
type PersistenceError struct {
	Op    string
	Path  string
	Cause error
}

func (e *PersistenceError) Error() string {
	op := "Save"
	if e.Op == "load" {
		op = "Load"
	}
	if e.Path != "" {
		return fmt.Sprintf("%s failed: %s: %v", op, e.Path, e.Cause)
	}
	return fmt.Sprintf("%s failed: %v", op, e.Cause)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}
