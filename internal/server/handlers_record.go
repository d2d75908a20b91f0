package server

import (
	"net/http"
	"strconv"

	"github.com/jonathan/cv-editor/internal/project"
	"github.com/jonathan/cv-editor/internal/types"
)

// sectionResponse is the API view of one section
type sectionResponse struct {
	Key     string         `json:"key"`
	Title   string         `json:"title"`
	Kind    string         `json:"kind"`
	Visible bool           `json:"visible"`
	Text    *string        `json:"text,omitempty"`
	Entries *[]types.Entry `json:"entries,omitempty"`
}

func toSectionResponse(sec types.Section) sectionResponse {
	resp := sectionResponse{
		Key:     string(sec.Key),
		Title:   sec.Title(),
		Visible: sec.Visible,
	}
	if schema, ok := types.Schema(sec.Key); ok {
		resp.Kind = schema.Kind.String()
	}
	if sec.Content.Kind == types.ContentText {
		text := sec.Content.Text
		resp.Text = &text
	} else {
		entries := sec.Content.Entries
		if entries == nil {
			entries = []types.Entry{}
		}
		resp.Entries = &entries
	}
	return resp
}

// sectionKey resolves the {key} path value, writing 404 for unknown sections
func (s *Server) sectionKey(w http.ResponseWriter, r *http.Request) (types.SectionKey, bool) {
	key, ok := types.ParseSectionKey(r.PathValue("key"))
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "unknown section: "+r.PathValue("key"))
		return "", false
	}
	return key, true
}

// entryIndex parses the {index} path value
func (s *Server) entryIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "entry index must be an integer")
		return 0, false
	}
	return idx, true
}

// handleGetRecord returns the whole record in project document form
func (s *Server) handleGetRecord(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, project.FromRecord(s.store.Snapshot()))
}

func (s *Server) handleSetPersonal(w http.ResponseWriter, r *http.Request) {
	var req types.SetPersonalRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	key := r.PathValue("key")
	if err := s.store.SetPersonal(key, *req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"key": key, "value": *req.Value})
}

func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	key, ok := s.sectionKey(w, r)
	if !ok {
		return
	}
	sec, found := s.store.Section(key)
	if !found {
		s.errorResponse(w, http.StatusNotFound, "unknown section: "+string(key))
		return
	}
	s.jsonResponse(w, http.StatusOK, toSectionResponse(sec))
}

// handleSetSection replaces a section body with text or entries
func (s *Server) handleSetSection(w http.ResponseWriter, r *http.Request) {
	key, ok := s.sectionKey(w, r)
	if !ok {
		return
	}
	var req types.SetSectionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	var err error
	if req.Text != nil {
		err = s.store.SetSectionText(key, *req.Text)
	} else {
		err = s.store.SetSectionEntries(key, req.Entries)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respondSection(w, key, http.StatusOK)
}

func (s *Server) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	key, ok := s.sectionKey(w, r)
	if !ok {
		return
	}
	var req types.SetVisibilityRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if err := s.store.SetVisible(key, *req.Visible); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondSection(w, key, http.StatusOK)
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	key, ok := s.sectionKey(w, r)
	if !ok {
		return
	}
	var entry types.Entry
	if !s.decodeJSON(w, r, &entry) {
		return
	}
	if err := s.store.AddEntry(key, entry); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondSection(w, key, http.StatusCreated)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	key, ok := s.sectionKey(w, r)
	if !ok {
		return
	}
	idx, ok := s.entryIndex(w, r)
	if !ok {
		return
	}
	var entry types.Entry
	if !s.decodeJSON(w, r, &entry) {
		return
	}
	if err := s.store.UpdateEntry(key, idx, entry); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondSection(w, key, http.StatusOK)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	key, ok := s.sectionKey(w, r)
	if !ok {
		return
	}
	idx, ok := s.entryIndex(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteEntry(key, idx); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respondSection(w http.ResponseWriter, key types.SectionKey, status int) {
	sec, _ := s.store.Section(key)
	s.jsonResponse(w, status, toSectionResponse(sec))
}
