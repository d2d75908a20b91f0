package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/cv-editor/internal/compiler"
	"github.com/jonathan/cv-editor/internal/session"
	"github.com/jonathan/cv-editor/internal/types"
	"go.uber.org/zap"
)

// sessionResponse is the API view of a compile session
type sessionResponse struct {
	ID            string     `json:"id"`
	State         string     `json:"state"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	DurationMS    int64      `json:"duration_ms,omitempty"`
	Compiler      string     `json:"compiler,omitempty"`
	ArtifactBytes int        `json:"artifact_bytes,omitempty"`
	Diagnostic    string     `json:"diagnostic,omitempty"`
	Error         string     `json:"error,omitempty"`
	Remediation   string     `json:"remediation,omitempty"`
}

func toSessionResponse(sess session.Session) sessionResponse {
	resp := sessionResponse{
		ID:        sess.ID.String(),
		State:     string(sess.State),
		StartedAt: sess.StartedAt,
	}
	if sess.State.Terminal() {
		finished := sess.FinishedAt
		resp.FinishedAt = &finished
	}
	if res := sess.Result; res != nil {
		resp.DurationMS = res.Duration.Milliseconds()
		resp.Compiler = res.Compiler
		resp.ArtifactBytes = len(res.Artifact)
		resp.Diagnostic = res.Diagnostic
	}
	if sess.Err != nil {
		resp.Error = sess.Err.Error()
		var notFound *compiler.NotFoundError
		if errors.As(sess.Err, &notFound) {
			resp.Remediation = notFound.Remediation()
		}
	}
	return resp
}

// handleRender returns the markup for the current record
func (s *Server) handleRender(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	markup, err := s.renderer.Render(snap)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(markup)); err != nil {
		s.logger.Debug("render response write failed", zap.Error(err))
	}
}

// handleStartCompile renders synchronously and compiles in the background.
// A missing field fails here with 422; a busy compiler with 409.
func (s *Server) handleStartCompile(w http.ResponseWriter, _ *http.Request) {
	sess, _, err := s.sessions.Start(s.baseCtx, s.store)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/compiles/"+sess.ID.String())
	s.jsonResponse(w, http.StatusAccepted, types.CompileResponse{
		ID:     sess.ID.String(),
		Status: string(sess.State),
	})
}

func (s *Server) handleListCompiles(w http.ResponseWriter, _ *http.Request) {
	list := s.sessions.List()
	out := make([]sessionResponse, 0, len(list))
	for _, sess := range list {
		out = append(out, toSessionResponse(sess))
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"compiles": out})
}

func (s *Server) handleLatestCompile(w http.ResponseWriter, _ *http.Request) {
	sess, err := s.sessions.Latest()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, toSessionResponse(sess))
}

// sessionFromPath resolves {id}, writing 400 or 404 on failure
func (s *Server) sessionFromPath(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid compile id")
		return session.Session{}, false
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		s.writeError(w, err)
		return session.Session{}, false
	}
	return sess, true
}

func (s *Server) handleGetCompile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, toSessionResponse(sess))
}

// handleCompileArtifact serves the PDF of a succeeded session
func (s *Server) handleCompileArtifact(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	if sess.State != session.StateSucceeded || sess.Result == nil {
		s.errorResponse(w, http.StatusConflict, fmt.Sprintf("compile is %s, no artifact available", sess.State))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sess.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(sess.Result.Artifact)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(sess.Result.Artifact); err != nil {
		s.logger.Debug("artifact write failed", zap.Error(err))
	}
}

// handleCompileEvents streams the session state until it finishes or the
// client goes away.
func (s *Server) handleCompileEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	done, err := s.sessions.Done(sess.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	stream, err := newEventStream(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := stream.status(toSessionResponse(sess)); err != nil {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for waiting := true; waiting; {
		select {
		case <-done:
			waiting = false
		case <-ticker.C:
			if err := stream.heartbeat(); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}

	final, err := s.sessions.Get(sess.ID)
	if err != nil {
		stream.fail(err.Error()) //nolint:errcheck
		return
	}
	stream.complete(toSessionResponse(final)) //nolint:errcheck
}
