// Package main provides the cv_editor command line tool: edit a CV project,
// render it to LaTeX, compile it to PDF and serve the same operations over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/cv-editor/internal/config"
	"github.com/jonathan/cv-editor/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool
	logLevel   string
	logJSON    bool
)

// cfg and logger are resolved once per invocation by PersistentPreRunE
var (
	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "cv_editor",
	Short:         "Edit, render and compile a LaTeX CV",
	Long:          "cv_editor keeps a CV as structured project data, renders it into a LaTeX document and compiles it to PDF with xelatex.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := resolveConfig(configPath, os.Getenv)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Verbose = true
		}
		cfg = loaded

		l, err := logging.New(logging.Options{Level: logLevel, Verbose: cfg.Verbose, JSON: logJSON})
		if err != nil {
			return err
		}
		logger = l

		// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
		// in which case Go runtime defaults apply.
		_, _ = maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf))
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")
}

// resolveConfig layers defaults, the optional config file and CV_* environment variables
func resolveConfig(path string, getenv func(string) string) (config.Config, error) {
	file := config.Config{}
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return config.Config{}, err
		}
		file = *loaded
	}
	merged := file.MergeWithDefaults(config.Defaults())
	if err := merged.ApplyEnv(getenv); err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := merged.Validate(); err != nil {
		return config.Config{}, err
	}
	return merged, nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
