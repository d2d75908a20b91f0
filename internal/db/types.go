package db

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxNameLength bounds project names
const MaxNameLength = 200

// ErrProjectNotFound is returned when no project has the requested name
var ErrProjectNotFound = errors.New("project not found")

// ProjectSummary is a listing row for a stored project
type ProjectSummary struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CompileRun is the persisted record of one compile session
type CompileRun struct {
	ID         uuid.UUID `json:"id"`
	Project    string    `json:"project"`
	Status     string    `json:"status"`
	Diagnostic string    `json:"diagnostic,omitempty"`
	Compiler   string    `json:"compiler,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// ValidateName checks a project name before it is used as a key
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return fmt.Errorf("project name is required")
	case trimmed != name:
		return fmt.Errorf("project name must not have surrounding whitespace")
	case utf8.RuneCountInString(name) > MaxNameLength:
		return fmt.Errorf("project name exceeds %d characters", MaxNameLength)
	}
	return nil
}
