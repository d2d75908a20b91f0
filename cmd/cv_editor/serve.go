package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jonathan/cv-editor/internal/project"
	"github.com/jonathan/cv-editor/internal/record"
	"github.com/jonathan/cv-editor/internal/server"
	"github.com/jonathan/cv-editor/internal/server/ratelimit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serveDBConns sizes the pool shared by API handlers and compile hooks
const serveDBConns = 4

var (
	serveHost     string
	servePort     int
	serveProject  string
	serveAutosave bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server that exposes the record, rendering and compiling over REST endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (default loopback unless an API key is set)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config)")
	serveCmd.Flags().StringVarP(&serveProject, "project", "p", "", "Project file to serve (default from config)")
	serveCmd.Flags().BoolVar(&serveAutosave, "autosave", false, "Write every change back to the project file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	path := projectPath(serveProject)
	store, err := openStore(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("project file not found, starting from example data", zap.String("path", path))
		store = record.NewStore()
	} else if err != nil {
		return err
	}

	port := servePort
	if port == 0 {
		port = cfg.Port
	}

	host := serveHost
	if host == "" {
		host = cfg.Host
	}
	if host != "" && cfg.APIKey == "" && !isLoopback(host) {
		logger.Warn("serving without an API key on a non-loopback address", zap.String("host", host))
	}

	srvCfg := server.Config{
		Host:        host,
		Port:        port,
		Store:       store,
		Renderer:    newRenderer(),
		Compiler:    newCompiler(),
		Project:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		ProjectPath: path,
		APIKey:      cfg.APIKey,
		RateLimit:   ratelimit.LoadConfig(nil),
		Logger:      logger.Named("server"),

		AllowedOrigins: cfg.CORSOrigins,
	}

	if cfg.DatabaseURL != "" {
		database, err := connectDB(cmd.Context(), serveDBConns)
		if err != nil {
			return err
		}
		defer database.Close()
		srvCfg.DB = database
	}

	if serveAutosave {
		var mu sync.Mutex
		unsubscribe := store.Subscribe(func(c record.Change) {
			mu.Lock()
			defer mu.Unlock()
			if err := project.Save(path, store.Snapshot()); err != nil {
				logger.Warn("autosave failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Debug("autosaved", zap.String("change", string(c.Kind)), zap.String("key", c.Key))
		})
		defer unsubscribe()
	}

	srv, err := server.New(srvCfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start(cmd.Context())
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
