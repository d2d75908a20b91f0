package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jonathan/cv-editor/internal/compiler"
	"github.com/jonathan/cv-editor/internal/observability"
	"github.com/jonathan/cv-editor/internal/project"
	"github.com/jonathan/cv-editor/internal/record"
	"github.com/jonathan/cv-editor/internal/rendering"
	"github.com/spf13/cobra"
)

// projectPath returns the --project flag value or the configured default
func projectPath(flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.Project
}

// openStore loads the project at path on top of the built-in defaults
func openStore(path string) (*record.Store, error) {
	rec, err := project.Load(path, record.Default())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w (create one with: cv_editor init --out %s)", err, path)
		}
		return nil, err
	}
	return record.NewStoreFrom(rec), nil
}

// saveStore writes the store back to path
func saveStore(store *record.Store, path string) error {
	return project.Save(path, store.Snapshot())
}

func newRenderer() *rendering.Renderer {
	return &rendering.Renderer{
		TemplatePath: cfg.Template,
		EscapeText:   cfg.EscapeUserText,
		Logger:       logger.Named("render"),
	}
}

func newCompiler() *compiler.Compiler {
	c := compiler.New(cfg.Compiler, logger.Named("compile"))
	c.Locator.Path = cfg.CompilerPath
	c.Timeout = cfg.CompileTimeout()
	return c
}

func printer(cmd *cobra.Command) *observability.Printer {
	return observability.NewPrinter(cmd.OutOrStdout())
}

// parseAssignments turns field=value pairs into a map
func parseAssignments(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected field=value", pair)
		}
		out[strings.TrimSpace(key)] = value
	}
	return out, nil
}
