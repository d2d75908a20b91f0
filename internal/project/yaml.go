package project

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// MaxInputSize limits project file input (4MB)
var MaxInputSize = 4 << 20

var (
	// ErrEmptyInput is returned for zero-length project data
	ErrEmptyInput = errors.New("project data is empty")
	// ErrInputTooLarge is returned when project data exceeds MaxInputSize
	ErrInputTooLarge = errors.New("project data exceeds maximum size")
	// ErrMalformed matches every SyntaxError
	ErrMalformed = errors.New("malformed project data")
)

// SyntaxError reports project data that could not be parsed at all
type SyntaxError struct {
	Format Format
	Cause  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid %s: %v", strings.ToUpper(string(e.Format)), e.Cause)
}

func (e *SyntaxError) Is(target error) bool {
	return target == ErrMalformed
}

func (e *SyntaxError) Unwrap() error {
	return e.Cause
}

func checkInput(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyInput
	}
	if len(data) > MaxInputSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(data), MaxInputSize)
	}
	return nil
}

func unmarshalYAML(data []byte, v any) error {
	if err := yaml.Unmarshal(data, v); err != nil {
		return &SyntaxError{Format: FormatYAML, Cause: err}
	}
	return nil
}

// quoteString writes every string as a double-quoted scalar so values such
// as "yes", ".inf", "~" or leading whitespace read back unchanged
func quoteString(s string) ([]byte, error) {
	return []byte(strconv.Quote(s)), nil
}

func marshalYAML(v any) ([]byte, error) {
	out, err := yaml.MarshalWithOptions(v,
		yaml.IndentSequence(true),
		yaml.CustomMarshaler[string](quoteString),
	)
	if err != nil {
		return nil, fmt.Errorf("yaml encode: %w", err)
	}
	return out, nil
}
