package compiler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	// TexFile is the fixed name of the document written into the working directory
	TexFile = "cv.tex"
	// PDFFile is the artifact the compiler is expected to produce next to it
	PDFFile = "cv.pdf"
	// DiagnosticLimit bounds how much of each output stream goes into a failure diagnostic
	DiagnosticLimit = 1000
)

// Status classifies a finished compile
type Status string

// Compile outcomes
const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Result is the outcome of one compile. On success Artifact holds the PDF
// bytes, copied out before the working directory is removed.
type Result struct {
	Status     Status
	Artifact   []byte
	Diagnostic string
	Stdout     string
	Stderr     string
	// ExitErr is the process error, informational only: the compiler exits
	// non-zero on recoverable warnings while still writing a usable PDF.
	ExitErr  error
	Compiler string
	Duration time.Duration
}

// Succeeded reports whether the artifact was produced
func (r *Result) Succeeded() bool {
	return r != nil && r.Status == StatusSucceeded
}

// Err returns a *CompileFailureError for a failed result and nil otherwise
func (r *Result) Err() error {
	if r.Succeeded() {
		return nil
	}
	return &CompileFailureError{Diagnostic: r.Diagnostic, Cause: r.ExitErr}
}

// Compiler turns a markup document into a PDF with an external TeX engine
type Compiler struct {
	Locator *Locator
	Runner  Runner
	// Timeout bounds the external process; zero means the run is only
	// bounded by the caller's context.
	Timeout time.Duration
	// TempDir is the parent for scoped working directories; empty uses os.TempDir
	TempDir string
	Logger  *zap.Logger
}

// New returns a compiler that resolves name with the platform locator and runs it with os/exec
func New(name string, logger *zap.Logger) *Compiler {
	return &Compiler{
		Locator: NewLocator(name),
		Runner:  ExecRunner{},
		Logger:  logger,
	}
}

func (c *Compiler) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Compile runs one fresh, full compile of markup in its own temporary
// directory. Success is decided by the presence of the PDF, not the exit
// code. A missing compiler is returned as an error before anything runs;
// a run without a PDF is a Result with StatusFailed.
func (c *Compiler) Compile(ctx context.Context, markup string) (*Result, error) {
	log := c.logger()

	workDir, err := os.MkdirTemp(c.TempDir, "cv-compile-*")
	if err != nil {
		return nil, &WorkspaceError{Message: "failed to create temporary working directory", Cause: err}
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn("failed to remove compile directory", zap.String("dir", workDir), zap.Error(err))
		}
	}()

	texPath := filepath.Join(workDir, TexFile)
	if err := os.WriteFile(texPath, []byte(markup), 0600); err != nil {
		return nil, &WorkspaceError{Message: fmt.Sprintf("failed to write %s", TexFile), Cause: err}
	}

	locator := c.Locator
	if locator == nil {
		locator = NewLocator(DefaultCompiler)
	}
	exe, err := locator.Locate()
	if err != nil {
		return nil, err
	}

	runner := c.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	log.Debug("running compiler", zap.String("compiler", exe), zap.String("dir", workDir))
	start := time.Now()
	stdout, stderr, runErr := runner.Run(ctx, workDir, exe,
		"-interaction=nonstopmode",
		"-output-directory", workDir,
		texPath,
	)

	result := &Result{
		Stdout:   stdout,
		Stderr:   stderr,
		ExitErr:  runErr,
		Compiler: exe,
		Duration: time.Since(start),
	}

	artifact, err := os.ReadFile(filepath.Join(workDir, PDFFile))
	switch {
	case err == nil:
		result.Status = StatusSucceeded
		result.Artifact = artifact
		if runErr != nil {
			log.Warn("compiler reported an error but produced a PDF", zap.Error(runErr))
		}
	case errors.Is(err, fs.ErrNotExist):
		result.Status = StatusFailed
		result.Diagnostic = Diagnostic(stdout, stderr)
	default:
		return nil, &WorkspaceError{Message: fmt.Sprintf("failed to read %s", PDFFile), Cause: err}
	}

	log.Info("compile finished",
		zap.String("status", string(result.Status)),
		zap.Duration("duration", result.Duration),
		zap.Int("artifact_bytes", len(result.Artifact)))
	return result, nil
}

// Diagnostic builds the user-facing failure report from the captured streams
func Diagnostic(stdout, stderr string) string {
	return "PDF generation failed.\n\nLaTeX Output:\n" + truncate(stdout, DiagnosticLimit) +
		"\n\nErrors:\n" + truncate(stderr, DiagnosticLimit)
}

// truncate keeps the first n characters of s without splitting a rune
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
