// Package validation inspects compiled PDFs.
package validation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoPageCounter means neither pdfinfo nor ghostscript could count pages
var ErrNoPageCounter = errors.New("no PDF page counter available")

// PageCountError records why each page counter failed for one file
type PageCountError struct {
	Path   string
	Causes map[string]error
}

func (e *PageCountError) Error() string {
	tools := make([]string, 0, len(pageCounters))
	for _, c := range pageCounters {
		if err, ok := e.Causes[c.tool]; ok {
			tools = append(tools, fmt.Sprintf("%s: %v", c.tool, err))
		}
	}
	return fmt.Sprintf("failed to count pages of %s (%s); install poppler-utils (pdfinfo) or ghostscript",
		e.Path, strings.Join(tools, "; "))
}

func (e *PageCountError) Is(target error) bool {
	return target == ErrNoPageCounter
}
