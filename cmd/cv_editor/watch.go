package main

import (
	"context"
	"errors"
	"time"

	"github.com/jonathan/cv-editor/internal/artifact"
	"github.com/jonathan/cv-editor/internal/compiler"
	"github.com/jonathan/cv-editor/internal/session"
	"github.com/jonathan/cv-editor/internal/watch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	watchProject  string
	watchOut      string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Recompile whenever the project or template changes",
	Long:  "Compiles once, then again after every saved change to the project file or the preamble template, until interrupted.",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchProject, "project", "p", "", "Path to the project file (default from config)")
	watchCmd.Flags().StringVarP(&watchOut, "out", "o", "", "PDF destination (default: <output_dir>/<Last>_<First>_Resume.pdf)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before recompiling")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	path := projectPath(watchProject)
	p := printer(cmd)
	manager := session.NewManager(newRenderer(), newCompiler(), logger)

	rebuild := func(ctx context.Context, changed string) {
		if changed != "" {
			p.Note("%s changed, recompiling", changed)
		}
		store, err := openStore(path)
		if err != nil {
			p.Failure("%v", err)
			return
		}
		_, outcomes, err := manager.Start(ctx, store)
		if err != nil {
			p.Failure("%v", err)
			return
		}
		outcome := <-outcomes

		var notFound *compiler.NotFoundError
		switch {
		case errors.As(outcome.Err, &notFound):
			p.PrintCompilerNotFound(notFound)
		case outcome.Result == nil:
			p.Failure("%v", outcome.Err)
		case outcome.Result.Succeeded():
			dest := pdfDestination(watchOut, cfg.OutputDir, store.Snapshot().Personal)
			if err := artifact.Save(dest, outcome.Result.Artifact); err != nil {
				p.Failure("%v", err)
				return
			}
			p.PrintCompileResult(outcome.Result, dest)
		default:
			p.PrintCompileResult(outcome.Result, "")
		}
	}

	w, err := watch.New(rebuild, logger.Named("watch"), path, cfg.Template)
	if err != nil {
		return err
	}
	w.Debounce = watchDebounce

	rebuild(cmd.Context(), "")
	p.Note("Watching %s (Ctrl+C to stop)", path)
	err = w.Run(cmd.Context())
	manager.Wait()
	if err != nil {
		logger.Error("watch stopped", zap.Error(err))
	}
	return err
}
