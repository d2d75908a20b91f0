// Package artifact hands a compiled PDF to the user: naming, saving and opening it.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jonathan/cv-editor/internal/types"
)

// DefaultFilename is used when the record has no complete name
const DefaultFilename = "Resume.pdf"

// ErrEmptyArtifact is returned when asked to save zero bytes
var ErrEmptyArtifact = errors.New("artifact is empty")

// Error represents a failure writing or opening an artifact
type Error struct {
	Op    string
	Path  string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("artifact %s %s: %v", e.Op, e.Path, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

var unsafeChars = strings.NewReplacer("/", "_", `\`, "_", "\x00", "", ":", "_")

// SuggestFilename returns "<last>_<first>_Resume.pdf" when both names are
// set and DefaultFilename otherwise
func SuggestFilename(p types.PersonalInfo) string {
	first := strings.TrimSpace(unsafeChars.Replace(p[types.FieldNameFirst]))
	last := strings.TrimSpace(unsafeChars.Replace(p[types.FieldNameLast]))
	if first == "" || last == "" {
		return DefaultFilename
	}
	return last + "_" + first + "_Resume.pdf"
}

// Save writes data to dest, creating parent directories as needed
func Save(dest string, data []byte) error {
	if len(data) == 0 {
		return &Error{Op: "save", Path: dest, Cause: ErrEmptyArtifact}
	}
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &Error{Op: "save", Path: dest, Cause: err}
		}
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return &Error{Op: "save", Path: dest, Cause: err}
	}
	return nil
}

// Opener launches the platform viewer for a file
type Opener struct {
	// GOOS selects the launcher; empty means runtime.GOOS
	GOOS string
	// Start runs the launcher without waiting; nil uses os/exec
	Start func(name string, args ...string) error
}

// Command returns the launcher invocation for path
func (o Opener) Command(path string) (string, []string) {
	goos := o.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "cmd", []string{"/c", "start", "", path}
	default:
		return "xdg-open", []string{path}
	}
}

// Open launches the viewer for path and returns once it has started
func (o Opener) Open(path string) error {
	name, args := o.Command(path)
	start := o.Start
	if start == nil {
		start = func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		}
	}
	if err := start(name, args...); err != nil {
		return &Error{Op: "open", Path: path, Cause: err}
	}
	return nil
}
