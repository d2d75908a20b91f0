// Package record holds the in-memory CV record and the only operations allowed to mutate it.
package record

import (
	"errors"
	"fmt"

	"github.com/jonathan/cv-editor/internal/types"
)

// Sentinel errors for store updates
var (
	ErrUnknownField   = errors.New("unknown personal field")
	ErrUnknownSection = errors.New("unknown section")
	ErrNotStructured  = errors.New("section does not hold entries")
	ErrEntryIndex     = errors.New("entry index out of range")
)

// EntryFieldError reports an entry field that is not part of the section schema
type EntryFieldError struct {
	Section types.SectionKey
	Field   string
}

func (e *EntryFieldError) Error() string {
	return fmt.Sprintf("section %s has no entry field %q", e.Section, e.Field)
}

func unknownSection(key types.SectionKey) error {
	return fmt.Errorf("%w: %s", ErrUnknownSection, key)
}
