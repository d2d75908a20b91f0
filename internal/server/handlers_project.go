package server

import (
	"net/http"
	"strconv"

	"github.com/jonathan/cv-editor/internal/db"
	"github.com/jonathan/cv-editor/internal/project"
	"github.com/jonathan/cv-editor/internal/types"
	"go.uber.org/zap"
)

// handleLoadProject stages a project from disk or the database and applies
// it in one step. On any error the live record is left as it was.
func (s *Server) handleLoadProject(w http.ResponseWriter, r *http.Request) {
	var req types.ProjectRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	base := s.store.Snapshot()
	var (
		rec types.Record
		err error
	)
	switch {
	case req.Name != "":
		if s.db == nil {
			s.errorResponse(w, http.StatusServiceUnavailable, "database not configured")
			return
		}
		if err := db.ValidateName(req.Name); err != nil {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		rec, err = s.db.LoadProject(r.Context(), req.Name, base)
	default:
		path, perr := s.projectRoot.resolve(req.Path)
		if perr != nil {
			s.writeError(w, perr)
			return
		}
		rec, err = project.Load(path, base)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.store.Replace(rec)
	s.logger.Info("project loaded", zap.String("path", req.Path), zap.String("name", req.Name))
	s.jsonResponse(w, http.StatusOK, project.FromRecord(rec))
}

// handleSaveProject writes the record to a file or the database. With an
// empty body the configured project path is used.
func (s *Server) handleSaveProject(w http.ResponseWriter, r *http.Request) {
	var req types.ProjectRequest
	if r.ContentLength != 0 {
		if !s.decodeJSON(w, r, &req) {
			return
		}
	}
	// an empty request saves to the configured project file
	explicit := req.Path != ""
	if !explicit && req.Name == "" {
		req.Path = s.projectPath
	}
	if err := s.validate.Struct(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
		return
	}
	path := req.Path
	if explicit {
		resolved, err := s.projectRoot.resolve(req.Path)
		if err != nil {
			s.writeError(w, err)
			return
		}
		path = resolved
	}

	snap := s.store.Snapshot()
	if req.Name != "" {
		if s.db == nil {
			s.errorResponse(w, http.StatusServiceUnavailable, "database not configured")
			return
		}
		if err := db.ValidateName(req.Name); err != nil {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.db.SaveProject(r.Context(), req.Name, snap); err != nil {
			s.writeError(w, err)
			return
		}
		s.jsonResponse(w, http.StatusOK, map[string]string{"name": req.Name})
		return
	}

	if err := project.Save(path, snap); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"path": path})
}

// handleHistory lists persisted compile runs, newest first
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "database not configured")
		return
	}

	limit := historyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > historyLimit {
			s.errorResponse(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(historyLimit))
			return
		}
		limit = n
	}

	runs, err := s.db.ListCompiles(r.Context(), r.URL.Query().Get("project"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []db.CompileRun{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs})
}
