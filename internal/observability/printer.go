// Package observability provides formatted terminal output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jonathan/cv-editor/internal/compiler"
	"github.com/jonathan/cv-editor/internal/db"
	"github.com/jonathan/cv-editor/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// diagnosticLines bounds the failure excerpt shown in a box
	diagnosticLines = 12
)

// Printer handles formatted output for CLI commands
type Printer struct {
	out  io.Writer
	ok   lipgloss.Style
	fail lipgloss.Style
	dim  lipgloss.Style
}

// NewPrinter creates a new Printer that writes to the given writer.
// Colour is only emitted when the writer is a terminal.
func NewPrinter(out io.Writer) *Printer {
	r := lipgloss.NewRenderer(out)
	return &Printer{
		out:  out,
		ok:   r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		fail: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		dim:  r.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

func clip(line string, width int) string {
	runes := []rune(line)
	if len(runes) > width {
		return string(runes[:width-3]) + "..."
	}
	return line
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// Success prints a highlighted status line
//
//nolint:errcheck
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.out, p.ok.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Failure prints a highlighted error line
//
//nolint:errcheck
func (p *Printer) Failure(format string, args ...any) {
	fmt.Fprintln(p.out, p.fail.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Note prints a dimmed informational line
//
//nolint:errcheck
func (p *Printer) Note(format string, args ...any) {
	fmt.Fprintln(p.out, p.dim.Render(fmt.Sprintf(format, args...)))
}

// PrintRecord outputs a summary of the personal information and sections.
func (p *Printer) PrintRecord(rec types.Record) {
	var sb strings.Builder
	for _, key := range types.PersonalKeys {
		sb.WriteString(fmt.Sprintf("%-10s %s\n", types.PersonalLabels[key]+":", rec.Personal[key]))
	}
	p.printBox("PERSONAL INFORMATION", strings.TrimSuffix(sb.String(), "\n"))

	sb.Reset()
	for _, key := range types.SectionOrder {
		sec, ok := rec.Section(key)
		if !ok {
			continue
		}
		mark := "☑"
		if !sec.Visible {
			mark = "☐"
		}
		sb.WriteString(fmt.Sprintf("%s %-32s %s\n", mark, sec.Title(), describeContent(sec.Content)))
	}
	p.printBox("SECTIONS", strings.TrimSuffix(sb.String(), "\n"))
}

func describeContent(c types.Content) string {
	if c.Kind == types.ContentEntries {
		if len(c.Entries) == 1 {
			return "1 entry"
		}
		return fmt.Sprintf("%d entries", len(c.Entries))
	}
	if strings.TrimSpace(c.Text) == "" {
		return "empty"
	}
	return "text"
}

// PrintSection outputs one section in full.
func (p *Printer) PrintSection(sec types.Section) {
	var sb strings.Builder
	if !sec.Visible {
		sb.WriteString("(hidden)\n\n")
	}
	if sec.Content.Kind == types.ContentText {
		sb.WriteString(sec.Content.Text)
	} else {
		schema, _ := types.Schema(sec.Key)
		for i, e := range sec.Content.Entries {
			sb.WriteString(fmt.Sprintf("#%d\n", i))
			for _, f := range schema.Fields {
				sb.WriteString(fmt.Sprintf("  %s: %s\n", f.Label, e[f.Name]))
			}
		}
		if len(sec.Content.Entries) == 0 {
			sb.WriteString("no entries")
		}
	}
	p.printBox(strings.ToUpper(sec.Title()), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCompileResult outputs the outcome of a compile.
func (p *Printer) PrintCompileResult(res *compiler.Result, savedTo string) {
	if res == nil {
		return
	}
	if res.Succeeded() {
		msg := fmt.Sprintf("PDF generated (%d bytes, %s)", len(res.Artifact), res.Duration.Round(time.Millisecond))
		if savedTo != "" {
			msg += ": " + savedTo
		}
		p.Success("%s", msg)
		return
	}

	p.Failure("PDF generation failed")
	lines := strings.Split(res.Diagnostic, "\n")
	if len(lines) > diagnosticLines {
		lines = append(lines[:diagnosticLines], fmt.Sprintf("... and %d more lines", len(lines)-diagnosticLines))
	}
	p.printBox("COMPILER OUTPUT", strings.Join(lines, "\n"))
}

// PrintCompilerNotFound outputs the install hint for a missing compiler.
func (p *Printer) PrintCompilerNotFound(err *compiler.NotFoundError) {
	if err == nil {
		return
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s is not installed or not on PATH.\n\n", err.Name))
	sb.WriteString(err.Remediation() + "\n")
	if len(err.Tried) > 0 {
		sb.WriteString("\nLocations checked:\n")
		count := min(len(err.Tried), maxItemsToShow)
		for _, path := range err.Tried[:count] {
			sb.WriteString(fmt.Sprintf("  • %s\n", path))
		}
		if len(err.Tried) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(err.Tried)-maxItemsToShow))
		}
	}
	p.printBox("LATEX COMPILER NOT FOUND", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintProjects outputs stored projects.
//
//nolint:errcheck
func (p *Printer) PrintProjects(projects []db.ProjectSummary) {
	if len(projects) == 0 {
		fmt.Fprintln(p.out, "No stored projects")
		return
	}
	var sb strings.Builder
	for _, pr := range projects {
		sb.WriteString(fmt.Sprintf("%-36s %s\n", pr.Name, pr.UpdatedAt.Format("2006-01-02 15:04")))
	}
	p.printBox(fmt.Sprintf("STORED PROJECTS (%d)", len(projects)), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCompiles outputs compile history.
//
//nolint:errcheck
func (p *Printer) PrintCompiles(runs []db.CompileRun) {
	if len(runs) == 0 {
		fmt.Fprintln(p.out, "No compile history")
		return
	}
	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("%s  %-9s %6dms  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Status, r.DurationMS, r.Project))
	}
	p.printBox("COMPILE HISTORY", strings.TrimSuffix(sb.String(), "\n"))
}
