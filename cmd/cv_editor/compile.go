package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/jonathan/cv-editor/internal/artifact"
	"github.com/jonathan/cv-editor/internal/compiler"
	"github.com/jonathan/cv-editor/internal/session"
	"github.com/jonathan/cv-editor/internal/types"
	"github.com/jonathan/cv-editor/internal/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	renderProject string
	renderOut     string

	compileProject string
	compileOut     string
	compileOpen    bool
	compileMaxPage int

	batchOutDir string
	batchJobs   int

	// viewer opens compiled PDFs for --open
	viewer = artifact.Opener{}
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the project to LaTeX",
	Long:  "Renders the project into a complete LaTeX document and writes it to stdout or --out.",
	RunE:  runRender,
}

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Render and compile the project to PDF",
	Long:  "Renders the project, compiles it with the configured TeX engine and saves the PDF. The compile succeeds when the engine writes a PDF, whatever its exit code.",
	RunE:  runCompile,
}

var buildBatchCmd = &cobra.Command{
	Use:   "build-batch <project>...",
	Short: "Compile several projects concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBuildBatch,
}

var locateCompilerCmd = &cobra.Command{
	Use:   "locate-compiler",
	Short: "Show which TeX engine executable would be used",
	RunE:  runLocateCompiler,
}

func init() {
	renderCmd.Flags().StringVarP(&renderProject, "project", "p", "", "Path to the project file (default from config)")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "Write the document to this file instead of stdout")
	rootCmd.AddCommand(renderCmd)

	compileCmd.Flags().StringVarP(&compileProject, "project", "p", "", "Path to the project file (default from config)")
	compileCmd.Flags().StringVarP(&compileOut, "out", "o", "", "PDF destination (default: <output_dir>/<Last>_<First>_Resume.pdf)")
	compileCmd.Flags().BoolVar(&compileOpen, "open", false, "Open the PDF in the system viewer")
	compileCmd.Flags().IntVar(&compileMaxPage, "max-pages", 0, "Fail when the PDF has more pages than this (needs pdfinfo or ghostscript)")
	rootCmd.AddCommand(compileCmd)

	buildBatchCmd.Flags().StringVar(&batchOutDir, "out-dir", "", "Directory for the PDFs (default from config)")
	buildBatchCmd.Flags().IntVarP(&batchJobs, "jobs", "j", 0, "Concurrent compiles (default from config)")
	rootCmd.AddCommand(buildBatchCmd)

	rootCmd.AddCommand(locateCompilerCmd)
}

func runRender(cmd *cobra.Command, _ []string) error {
	store, err := openStore(projectPath(renderProject))
	if err != nil {
		return err
	}
	markup, err := newRenderer().Render(store.Snapshot())
	if err != nil {
		return err
	}

	if renderOut == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), markup)
		return err
	}
	if err := os.WriteFile(renderOut, []byte(markup), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", renderOut, err)
	}
	printer(cmd).Success("Wrote %s", renderOut)
	return nil
}

// pdfDestination picks --out, or the suggested filename inside dir
func pdfDestination(out, dir string, personal types.PersonalInfo) string {
	if out != "" {
		return out
	}
	return filepath.Join(dir, artifact.SuggestFilename(personal))
}

func runCompile(cmd *cobra.Command, _ []string) error {
	store, err := openStore(projectPath(compileProject))
	if err != nil {
		return err
	}
	p := printer(cmd)

	manager := session.NewManager(newRenderer(), newCompiler(), logger)
	_, outcomes, err := manager.Start(cmd.Context(), store)
	if err != nil {
		return err
	}
	outcome := <-outcomes

	var notFound *compiler.NotFoundError
	if errors.As(outcome.Err, &notFound) {
		p.PrintCompilerNotFound(notFound)
		return outcome.Err
	}
	if outcome.Err != nil && outcome.Result == nil {
		return outcome.Err
	}

	dest := ""
	if outcome.Result.Succeeded() {
		dest = pdfDestination(compileOut, cfg.OutputDir, store.Snapshot().Personal)
		if err := artifact.Save(dest, outcome.Result.Artifact); err != nil {
			return err
		}
	}
	p.PrintCompileResult(outcome.Result, dest)
	if outcome.Err != nil {
		return outcome.Err
	}
	if compileMaxPage > 0 {
		if err := checkPageCount(cmd.Context(), dest, compileMaxPage); err != nil {
			return err
		}
	}

	if compileOpen {
		if err := viewer.Open(dest); err != nil {
			logger.Warn("could not open PDF viewer", zap.String("path", dest), zap.Error(err))
		}
	}
	return nil
}

// checkPageCount fails when the PDF at path is longer than limit. A missing
// page counter is logged and ignored.
func checkPageCount(ctx context.Context, path string, limit int) error {
	pages, err := validation.CountPDFPages(ctx, path)
	if err != nil {
		logger.Warn("page limit not checked", zap.String("path", path), zap.Error(err))
		return nil
	}
	if pages > limit {
		return fmt.Errorf("%s has %d pages, limit is %d", path, pages, limit)
	}
	logger.Debug("page count", zap.Int("pages", pages), zap.Int("limit", limit))
	return nil
}

// batchResult is the outcome for one project of build-batch
type batchResult struct {
	project string
	dest    string
	err     error
}

func runBuildBatch(cmd *cobra.Command, args []string) error {
	jobs := batchJobs
	if jobs <= 0 {
		jobs = cfg.Jobs
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	outDir := batchOutDir
	if outDir == "" {
		outDir = cfg.OutputDir
	}

	renderer := newRenderer()
	comp := newCompiler()
	if _, err := comp.Locator.Locate(); err != nil {
		var notFound *compiler.NotFoundError
		if errors.As(err, &notFound) {
			printer(cmd).PrintCompilerNotFound(notFound)
		}
		return err
	}

	var (
		mu      sync.Mutex
		results = make([]batchResult, len(args))
	)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(jobs)
	for i, path := range args {
		g.Go(func() error {
			dest, err := buildOne(ctx, renderer, comp, path, outDir)
			mu.Lock()
			results[i] = batchResult{project: path, dest: dest, err: err}
			mu.Unlock()
			// a failing project does not stop the others
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p := printer(cmd)
	var failed []string
	for _, r := range results {
		if r.err != nil {
			p.Failure("%s: %v", r.project, r.err)
			failed = append(failed, r.project)
			continue
		}
		p.Success("%s → %s", r.project, r.dest)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d projects failed: %s", len(failed), len(args), strings.Join(failed, ", "))
	}
	return nil
}

// buildOne renders and compiles one project. Each project gets its own
// store and its own compile directory.
func buildOne(ctx context.Context, r session.Renderer, c session.Compiler, path, outDir string) (string, error) {
	store, err := openStore(path)
	if err != nil {
		return "", err
	}
	rec := store.Snapshot()
	markup, err := r.Render(rec)
	if err != nil {
		return "", err
	}
	res, err := c.Compile(ctx, markup)
	if err != nil {
		return "", err
	}
	if err := res.Err(); err != nil {
		return "", err
	}

	// projects often share a name, so the project file name leads
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dest := filepath.Join(outDir, base+"_"+artifact.SuggestFilename(rec.Personal))
	if err := artifact.Save(dest, res.Artifact); err != nil {
		return "", err
	}
	logger.Debug("batch project compiled", zap.String("project", path), zap.Duration("duration", res.Duration))
	return dest, nil
}

func runLocateCompiler(cmd *cobra.Command, _ []string) error {
	loc := newCompiler().Locator
	p := printer(cmd)
	path, err := loc.Locate()
	if err != nil {
		var notFound *compiler.NotFoundError
		if errors.As(err, &notFound) {
			p.PrintCompilerNotFound(notFound)
		}
		return err
	}
	p.Success("%s", path)
	return nil
}
