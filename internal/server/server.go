// Package server provides the HTTP API for editing, rendering and compiling a CV.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/cv-editor/internal/db"
	"github.com/jonathan/cv-editor/internal/record"
	"github.com/jonathan/cv-editor/internal/server/middleware"
	"github.com/jonathan/cv-editor/internal/server/ratelimit"
	"github.com/jonathan/cv-editor/internal/session"
	"github.com/jonathan/cv-editor/internal/types"
	"go.uber.org/zap"
)

// historyLimit caps GET /history results
const historyLimit = 50

// ProjectDB is the subset of the database used by the API. It is optional.
type ProjectDB interface {
	SaveProject(ctx context.Context, name string, rec types.Record) error
	LoadProject(ctx context.Context, name string, base types.Record) (types.Record, error)
	RecordCompile(ctx context.Context, run db.CompileRun) error
	ListCompiles(ctx context.Context, project string, limit int) ([]db.CompileRun, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	store       *record.Store
	renderer    session.Renderer
	sessions    *session.Manager
	db          ProjectDB
	project     string
	projectPath string
	projectRoot projectRoot
	origins     map[string]bool
	apiKey      string
	rateLimiter *ratelimit.Limiter
	validate    *validator.Validate
	logger      *zap.Logger
	handler     http.Handler

	// baseCtx outlives individual requests and bounds every compile
	baseCtx context.Context
	cancel  context.CancelFunc
}

// Config holds server configuration
type Config struct {
	// Host is the listen address. Empty means loopback without an API key
	// and every interface with one.
	Host     string
	Port     int
	Store    *record.Store
	Renderer session.Renderer
	Compiler session.Compiler
	// DB enables database-backed projects and compile history when set
	DB ProjectDB
	// Project names the record in compile history
	Project string
	// ProjectPath is the default target of POST /project/save. Paths in
	// load and save requests must stay inside its directory.
	ProjectPath string
	APIKey      string
	RateLimit   *ratelimit.Config
	Logger      *zap.Logger

	// AllowedOrigins lists browser origins allowed to call the API. Requests
	// carrying any other Origin header are refused.
	AllowedOrigins []string
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("server: record store is required")
	}
	if cfg.Renderer == nil || cfg.Compiler == nil {
		return nil, errors.New("server: renderer and compiler are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	root, err := newProjectRoot(cfg.ProjectPath)
	if err != nil {
		return nil, fmt.Errorf("server: resolving project directory: %w", err)
	}
	origins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		origins[strings.TrimSuffix(o, "/")] = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		store:       cfg.Store,
		renderer:    cfg.Renderer,
		sessions:    session.NewManager(cfg.Renderer, cfg.Compiler, logger),
		db:          cfg.DB,
		project:     cfg.Project,
		projectPath: cfg.ProjectPath,
		projectRoot: root,
		origins:     origins,
		apiKey:      cfg.APIKey,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		validate:    validator.New(),
		logger:      logger,
		baseCtx:     ctx,
		cancel:      cancel,
	}
	if s.db != nil {
		s.sessions.OnFinish(s.recordCompile)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /record", s.handleGetRecord)
	mux.HandleFunc("PUT /record/personal/{key}", s.handleSetPersonal)
	mux.HandleFunc("GET /record/sections/{key}", s.handleGetSection)
	mux.HandleFunc("PUT /record/sections/{key}", s.handleSetSection)
	mux.HandleFunc("PUT /record/sections/{key}/visibility", s.handleSetVisibility)
	mux.HandleFunc("POST /record/sections/{key}/entries", s.handleAddEntry)
	mux.HandleFunc("PUT /record/sections/{key}/entries/{index}", s.handleUpdateEntry)
	mux.HandleFunc("DELETE /record/sections/{key}/entries/{index}", s.handleDeleteEntry)

	mux.HandleFunc("GET /render", s.handleRender)

	mux.HandleFunc("POST /compiles", s.handleStartCompile)
	mux.HandleFunc("GET /compiles", s.handleListCompiles)
	mux.HandleFunc("GET /compiles/latest", s.handleLatestCompile)
	mux.HandleFunc("GET /compiles/{id}", s.handleGetCompile)
	mux.HandleFunc("GET /compiles/{id}/artifact", s.handleCompileArtifact)
	mux.HandleFunc("GET /compiles/{id}/events", s.handleCompileEvents)

	mux.HandleFunc("POST /project/load", s.handleLoadProject)
	mux.HandleFunc("POST /project/save", s.handleSaveProject)
	mux.HandleFunc("GET /history", s.handleHistory)

	s.handler = middleware.RequestID(
		middleware.Logging(logger)(
			s.withRateLimit(
				middleware.APIKey(cfg.APIKey)(
					s.withCORS(mux)))))

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(listenHost(cfg.Host, cfg.APIKey), strconv.Itoa(cfg.Port)),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped request handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully: in-flight
// requests get 30 seconds, running compiles are cancelled and awaited.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.Close()
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Close cancels running compiles, waits for them and stops background work
func (s *Server) Close() {
	s.cancel()
	s.sessions.Wait()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

// recordCompile persists a finished session to compile history
func (s *Server) recordCompile(sess session.Session) {
	run := db.CompileRun{
		ID:        sess.ID,
		Project:   s.project,
		Status:    string(sess.State),
		CreatedAt: sess.StartedAt,
	}
	if sess.Result != nil {
		run.Diagnostic = sess.Result.Diagnostic
		run.Compiler = sess.Result.Compiler
		run.DurationMS = sess.Result.Duration.Milliseconds()
	} else if sess.Err != nil {
		run.Diagnostic = sess.Err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.db.RecordCompile(ctx, run); err != nil {
		s.logger.Warn("failed to record compile", zap.String("session", sess.ID.String()), zap.Error(err))
	}
}

// listenHost binds an unauthenticated API to loopback only
func listenHost(host, apiKey string) string {
	if host == "" && apiKey == "" {
		return "127.0.0.1"
	}
	return host
}

// withCORS refuses browser requests from origins not in the allow list and
// answers allowed ones with their own origin
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		if origin := r.Header.Get("Origin"); origin != "" {
			if !s.origins[origin] {
				s.errorResponse(w, http.StatusForbidden, "origin not allowed")
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"compile": string(s.sessions.State()),
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("error encoding JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// decodeAndValidate reads a JSON body into req and runs its validate tags.
// It writes the 400 response itself and reports whether the handler may go on.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if !s.decodeJSON(w, r, req) {
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
		return false
	}
	return true
}

// decodeJSON reads a JSON body into v, writing 400 on malformed input
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// extractClientID extracts the client identifier from the request.
// It uses the IP address from RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		response["retry_after"] = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	s.logger.Info("rate limit exceeded",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit),
		zap.Time("reset", info.ResetTime))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
