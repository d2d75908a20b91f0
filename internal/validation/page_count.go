package validation

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// pageCounter runs one external tool and parses its output
type pageCounter struct {
	tool  string
	args  func(pdfPath string) []string
	parse func(output string) (int, error)
}

// pageCounters are tried in order
var pageCounters = []pageCounter{
	{
		tool:  "pdfinfo",
		args:  func(p string) []string { return []string{p} },
		parse: parsePdfinfo,
	},
	{
		tool: "gs",
		args: func(p string) []string {
			return []string{"-q", "-dNODISPLAY", "-dNOSAFER", "-c",
				fmt.Sprintf("(%s) (r) file runpdfbegin pdfpagecount = quit", p)}
		},
		parse: parseGhostscript,
	},
}

// CountPDFPages counts the pages of the PDF at pdfPath with the first
// page counter that works. When none does the error matches ErrNoPageCounter.
func CountPDFPages(ctx context.Context, pdfPath string) (int, error) {
	causes := make(map[string]error, len(pageCounters))
	for _, c := range pageCounters {
		output, err := exec.CommandContext(ctx, c.tool, c.args(pdfPath)...).Output()
		if err != nil {
			causes[c.tool] = err
			continue
		}
		count, err := c.parse(string(output))
		if err != nil {
			causes[c.tool] = err
			continue
		}
		return count, nil
	}
	return 0, &PageCountError{Path: pdfPath, Causes: causes}
}

// parsePdfinfo extracts N from the "Pages: N" line
func parsePdfinfo(output string) (int, error) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		if count, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:"))); err == nil {
			return count, nil
		}
	}
	return 0, fmt.Errorf("no page count in pdfinfo output")
}

func parseGhostscript(output string) (int, error) {
	out := strings.TrimSpace(output)
	count, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("unexpected ghostscript output %q", out)
	}
	return count, nil
}
