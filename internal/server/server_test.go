package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/cv-editor/internal/compiler"
	"github.com/jonathan/cv-editor/internal/db"
	"github.com/jonathan/cv-editor/internal/record"
	"github.com/jonathan/cv-editor/internal/rendering"
	"github.com/jonathan/cv-editor/internal/server/ratelimit"
	"github.com/jonathan/cv-editor/internal/session"
	"github.com/jonathan/cv-editor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompiler returns a fixed result, optionally blocking until released
type fakeCompiler struct {
	gate   chan struct{}
	result *compiler.Result
	err    error
}

func (f *fakeCompiler) Compile(ctx context.Context, _ string) (*compiler.Result, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

func succeeded() *compiler.Result {
	return &compiler.Result{
		Status:   compiler.StatusSucceeded,
		Artifact: []byte("%PDF-1.5 fake"),
		Compiler: "/usr/bin/xelatex",
		Duration: 1500 * time.Millisecond,
	}
}

// mockDB is an in-memory ProjectDB
type mockDB struct {
	mu       sync.Mutex
	projects map[string]types.Record
	runs     []db.CompileRun
}

func newMockDB() *mockDB {
	return &mockDB{projects: make(map[string]types.Record)}
}

func (m *mockDB) SaveProject(_ context.Context, name string, rec types.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[name] = rec.Clone()
	return nil
}

func (m *mockDB) LoadProject(_ context.Context, name string, _ types.Record) (types.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.projects[name]
	if !ok {
		return types.Record{}, db.ErrProjectNotFound
	}
	return rec.Clone(), nil
}

func (m *mockDB) RecordCompile(_ context.Context, run db.CompileRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockDB) ListCompiles(_ context.Context, project string, limit int) ([]db.CompileRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.CompileRun
	for _, r := range m.runs {
		if project == "" || r.Project == project {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type testOption func(*Config)

func withDB(d ProjectDB) testOption {
	return func(c *Config) { c.DB = d }
}

func withCompiler(c session.Compiler) testOption {
	return func(cfg *Config) { cfg.Compiler = c }
}

func newTestServer(t *testing.T, opts ...testOption) *Server {
	t.Helper()
	cfg := Config{
		Store:       record.NewStore(),
		Renderer:    &rendering.Renderer{},
		Compiler:    &fakeCompiler{result: succeeded()},
		Project:     "main",
		ProjectPath: filepath.Join(t.TempDir(), "cv.cvproj"),
		RateLimit:   &ratelimit.Config{Enabled: false},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Store: record.NewStore()})
	assert.Error(t, err)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"status": "ok", "compile": "idle"}, decode(t, w))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandleGetRecord(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/record", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	personal := body["personal"].(map[string]any)
	assert.Equal(t, "John", personal["name_first"])
	visibility := body["visibility"].(map[string]any)
	assert.Equal(t, true, visibility["summary"])
	assert.Len(t, body["sections"], len(types.SectionOrder))
}

func TestHandleSetPersonal(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPut, "/record/personal/email", `{"value":"ada@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	v, _ := s.store.Personal(types.FieldEmail)
	assert.Equal(t, "ada@example.com", v)

	w = do(t, s, http.MethodPut, "/record/personal/email", `{"value":""}`)
	require.Equal(t, http.StatusOK, w.Code)
	v, _ = s.store.Personal(types.FieldEmail)
	assert.Empty(t, v)
}

func TestHandleSetPersonal_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		path    string
		body    string
		want    int
		message string
	}{
		{"unknown field", "/record/personal/twitter", `{"value":"x"}`, http.StatusNotFound, "unknown personal field"},
		{"missing value", "/record/personal/email", `{}`, http.StatusBadRequest, "value is required"},
		{"malformed body", "/record/personal/email", `{`, http.StatusBadRequest, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, decode(t, w)["error"], tt.message)
		})
	}
}

func TestHandleSetSection(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPut, "/record/sections/summary", `{"text":"  Builds compilers.\n"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Builds compilers.", body["text"])
	assert.Equal(t, "freeform", body["kind"])
	assert.Equal(t, "Summary", body["title"])

	w = do(t, s, http.MethodPut, "/record/sections/languages", `{"entries":[{"language":"Go","proficiency":"Fluent"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	sec, _ := s.store.Section(types.SectionLanguages)
	require.Len(t, sec.Content.Entries, 1)
	assert.Equal(t, "Go", sec.Content.Entries[0]["language"])

	w = do(t, s, http.MethodPut, "/record/sections/languages", `{"entries":[]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decode(t, w)["entries"])
}

func TestHandleSetSection_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown section", "/record/sections/hobbies", `{"text":"x"}`, http.StatusNotFound},
		{"neither text nor entries", "/record/sections/summary", `{}`, http.StatusBadRequest},
		{"both text and entries", "/record/sections/summary", `{"text":"x","entries":[]}`, http.StatusBadRequest},
		{"entries in freeform section", "/record/sections/summary", `{"entries":[{"a":"b"}]}`, http.StatusUnprocessableEntity},
		{"unknown entry field", "/record/sections/languages", `{"entries":[{"dialect":"x"}]}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.store.Snapshot()
			w := do(t, s, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Equal(t, before, s.store.Snapshot())
		})
	}
}

func TestHandleGetSection(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/record/sections/education", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "structured", body["kind"])
	assert.Len(t, body["entries"], 1)

	w = do(t, s, http.MethodGet, "/record/sections/hobbies", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleSetVisibility(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPut, "/record/sections/awards/visibility", `{"visible":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["visible"])

	w = do(t, s, http.MethodGet, "/render", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `\section{Awards}`)

	w = do(t, s, http.MethodPut, "/record/sections/awards/visibility", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEntries(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/record/sections/languages/entries", `{"language":"Go","proficiency":"Fluent"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, decode(t, w)["entries"], 3)

	w = do(t, s, http.MethodPut, "/record/sections/languages/entries/0", `{"language":"Latin","proficiency":"Reading"}`)
	require.Equal(t, http.StatusOK, w.Code)
	sec, _ := s.store.Section(types.SectionLanguages)
	assert.Equal(t, "Latin", sec.Content.Entries[0]["language"])

	w = do(t, s, http.MethodDelete, "/record/sections/languages/entries/0", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	sec, _ = s.store.Section(types.SectionLanguages)
	assert.Len(t, sec.Content.Entries, 2)

	w = do(t, s, http.MethodDelete, "/record/sections/languages/entries/9", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodDelete, "/record/sections/languages/entries/first", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/record/sections/summary/entries", `{"a":"b"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleRender(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/render", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `\begin{document}`)
	assert.Contains(t, w.Body.String(), "John")
}

func TestHandleRender_MissingField(t *testing.T) {
	rec := record.Default()
	delete(rec.Personal, types.FieldEmail)
	s := newTestServer(t, func(c *Config) { c.Store = record.NewStoreFrom(rec) })

	w := do(t, s, http.MethodGet, "/render", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode(t, w)["error"], "email")
}

func TestCompile_Success(t *testing.T) {
	d := newMockDB()
	s := newTestServer(t, withDB(d))

	w := do(t, s, http.MethodPost, "/compiles", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	body := decode(t, w)
	id := body["id"].(string)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "/compiles/"+id, w.Header().Get("Location"))

	s.sessions.Wait()

	w = do(t, s, http.MethodGet, "/compiles/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode(t, w)
	assert.Equal(t, "succeeded", status["state"])
	assert.EqualValues(t, 1500, status["duration_ms"])
	assert.EqualValues(t, len("%PDF-1.5 fake"), status["artifact_bytes"])
	assert.NotNil(t, status["finished_at"])

	w = do(t, s, http.MethodGet, "/compiles/"+id+"/artifact", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Doe_John_Resume.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.5 fake", w.Body.String())

	w = do(t, s, http.MethodGet, "/compiles/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode(t, w)["id"])

	w = do(t, s, http.MethodGet, "/compiles", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["compiles"], 1)

	require.Len(t, d.runs, 1)
	assert.Equal(t, "main", d.runs[0].Project)
	assert.Equal(t, "succeeded", d.runs[0].Status)
	assert.Equal(t, int64(1500), d.runs[0].DurationMS)
}

func TestCompile_ArtifactNamedFromCompiledRecord(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/compiles", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	id := decode(t, w)["id"].(string)
	s.sessions.Wait()

	w = do(t, s, http.MethodPut, "/record/personal/name_last", `{"value":"Roe"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, s, http.MethodGet, "/compiles/"+id+"/artifact", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="Doe_John_Resume.pdf"`, w.Header().Get("Content-Disposition"))
}

func TestCompile_Failure(t *testing.T) {
	fc := &fakeCompiler{result: &compiler.Result{
		Status:     compiler.StatusFailed,
		Diagnostic: compiler.Diagnostic("! Undefined control sequence.", ""),
	}}
	s := newTestServer(t, withCompiler(fc))

	w := do(t, s, http.MethodPost, "/compiles", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	id := decode(t, w)["id"].(string)
	s.sessions.Wait()

	w = do(t, s, http.MethodGet, "/compiles/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode(t, w)
	assert.Equal(t, "failed", status["state"])
	assert.Contains(t, status["diagnostic"], "Undefined control sequence")

	w = do(t, s, http.MethodGet, "/compiles/"+id+"/artifact", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCompile_CompilerNotFound(t *testing.T) {
	fc := &fakeCompiler{err: &compiler.NotFoundError{Name: "xelatex"}}
	s := newTestServer(t, withCompiler(fc))

	w := do(t, s, http.MethodPost, "/compiles", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	id := decode(t, w)["id"].(string)
	s.sessions.Wait()

	w = do(t, s, http.MethodGet, "/compiles/"+id, "")
	status := decode(t, w)
	assert.Equal(t, "failed", status["state"])
	assert.Contains(t, status["error"], "LaTeX compiler not found")
	assert.Contains(t, status["remediation"], "TeX Live")
}

func TestCompile_MissingField(t *testing.T) {
	rec := record.Default()
	delete(rec.Personal, types.FieldPhone)
	s := newTestServer(t, func(c *Config) { c.Store = record.NewStoreFrom(rec) })

	w := do(t, s, http.MethodPost, "/compiles", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, s, http.MethodGet, "/compiles/latest", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompile_BusyWhileRunning(t *testing.T) {
	fc := &fakeCompiler{gate: make(chan struct{}), result: succeeded()}
	s := newTestServer(t, withCompiler(fc))

	w := do(t, s, http.MethodPost, "/compiles", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	id := decode(t, w)["id"].(string)

	w = do(t, s, http.MethodPost, "/compiles", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, s, http.MethodGet, "/compiles/"+id+"/artifact", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	close(fc.gate)
	s.sessions.Wait()

	w = do(t, s, http.MethodPost, "/compiles", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestGetCompile_BadID(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/compiles/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/compiles/6f1c2d4e-8a3b-4c5d-9e7f-0a1b2c3d4e5f", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompileEvents(t *testing.T) {
	fc := &fakeCompiler{gate: make(chan struct{}), result: succeeded()}
	s := newTestServer(t, withCompiler(fc))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/compiles", "application/json", nil)
	require.NoError(t, err)
	var started types.CompileResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/compiles/" + started.ID + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	nextEvent := func() (string, map[string]any) {
		var name string
		var data map[string]any
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &data))
			case line == "" && name != "":
				return name, data
			}
		}
		return name, data
	}

	name, data := nextEvent()
	assert.Equal(t, "status", name)
	assert.Equal(t, "running", data["state"])

	close(fc.gate)

	name, data = nextEvent()
	assert.Equal(t, "complete", name)
	assert.Equal(t, "succeeded", data["state"])
	assert.Equal(t, started.ID, data["id"])
}

func TestProject_SaveAndLoadFile(t *testing.T) {
	s := newTestServer(t)
	path := filepath.Join(filepath.Dir(s.projectPath), "mine.json")

	require.NoError(t, s.store.SetPersonal(types.FieldNameFirst, "Ada"))
	w := do(t, s, http.MethodPost, "/project/save", `{"path":"`+path+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.FileExists(t, path)

	require.NoError(t, s.store.SetPersonal(types.FieldNameFirst, "Grace"))
	w = do(t, s, http.MethodPost, "/project/load", `{"path":"`+path+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	v, _ := s.store.Personal(types.FieldNameFirst)
	assert.Equal(t, "Ada", v)

	// relative paths are taken from the project directory
	w = do(t, s, http.MethodPost, "/project/save", `{"path":"drafts/../relative.yaml"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, filepath.Join(filepath.Dir(s.projectPath), "relative.yaml"), decode(t, w)["path"])
	assert.FileExists(t, filepath.Join(filepath.Dir(s.projectPath), "relative.yaml"))
}

func TestProject_PathsConfinedToProjectDir(t *testing.T) {
	s := newTestServer(t)
	dir := filepath.Dir(s.projectPath)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "other.cvproj"), []byte(`{}`), 0644))

	tests := []struct {
		name string
		path string
		want int
	}{
		{"absolute elsewhere", filepath.Join(outside, "pwned.cvproj"), http.StatusForbidden},
		{"traversal through a subdirectory", filepath.Join(outside, "sub", "..", "pwned.cvproj"), http.StatusForbidden},
		{"relative traversal", "../pwned.cvproj", http.StatusForbidden},
		{"dotted prefix sibling", dir + "-evil/pwned.cvproj", http.StatusForbidden},
		{"the directory itself", dir, http.StatusForbidden},
		{"shell script", filepath.Join(dir, "pwned.sh"), http.StatusBadRequest},
		{"no extension", "notes", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"path":` + strconv.Quote(tt.path) + `}`

			w := do(t, s, http.MethodPost, "/project/save", body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())

			before := s.store.Snapshot()
			w = do(t, s, http.MethodPost, "/project/load", body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Equal(t, before, s.store.Snapshot())
		})
	}

	entries, err := os.ReadDir(outside)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "nothing may be written outside the project directory")
	assert.NoFileExists(t, filepath.Join(dir, "pwned.sh"))
}

func TestProject_SymlinkOutOfProjectDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	s := newTestServer(t)
	outside := t.TempDir()
	link := filepath.Join(filepath.Dir(s.projectPath), "escape")
	require.NoError(t, os.Symlink(outside, link))

	w := do(t, s, http.MethodPost, "/project/save", `{"path":"escape/cv.cvproj"}`)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.NoFileExists(t, filepath.Join(outside, "cv.cvproj"))
}

func TestProject_SaveDefaultPath(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/project/save", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, s.projectPath, decode(t, w)["path"])
	assert.FileExists(t, s.projectPath)
}

func TestProject_LoadErrors(t *testing.T) {
	s := newTestServer(t)
	dir := filepath.Dir(s.projectPath)
	invalid := filepath.Join(dir, "bad.cvproj")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"personal": ["not", "a", "map"]}`), 0644))
	malformed := filepath.Join(dir, "broken.cvproj")
	require.NoError(t, os.WriteFile(malformed, []byte(`{"personal":`), 0644))

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing file", `{"path":"` + filepath.Join(dir, "nope.cvproj") + `"}`, http.StatusNotFound},
		{"schema violation", `{"path":"` + invalid + `"}`, http.StatusUnprocessableEntity},
		{"malformed file", `{"path":"` + malformed + `"}`, http.StatusUnprocessableEntity},
		{"path and name", `{"path":"a","name":"b"}`, http.StatusBadRequest},
		{"no database", `{"name":"main"}`, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.store.Snapshot()
			w := do(t, s, http.MethodPost, "/project/load", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Equal(t, before, s.store.Snapshot())
		})
	}
}

func TestProject_Database(t *testing.T) {
	d := newMockDB()
	s := newTestServer(t, withDB(d))

	require.NoError(t, s.store.SetPersonal(types.FieldTitle, "Engineer"))
	w := do(t, s, http.MethodPost, "/project/save", `{"name":"main"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, s.store.SetPersonal(types.FieldTitle, "Manager"))
	w = do(t, s, http.MethodPost, "/project/load", `{"name":"main"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v, _ := s.store.Personal(types.FieldTitle)
	assert.Equal(t, "Engineer", v)

	w = do(t, s, http.MethodPost, "/project/load", `{"name":"other"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPost, "/project/save", `{"name":" padded "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHistory(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/history", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	d := newMockDB()
	s = newTestServer(t, withDB(d))
	w = do(t, s, http.MethodPost, "/compiles", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	s.sessions.Wait()

	w = do(t, s, http.MethodGet, "/history?project=main", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["runs"], 1)

	w = do(t, s, http.MethodGet, "/history?project=other", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decode(t, w)["runs"])

	w = do(t, s, http.MethodGet, "/history?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	fc := &fakeCompiler{gate: make(chan struct{}), result: succeeded()}
	s := newTestServer(t, withCompiler(fc), func(c *Config) {
		c.RateLimit = &ratelimit.Config{
			Enabled:         true,
			DefaultLimit:    1000,
			DefaultWindow:   time.Minute,
			CleanupInterval: time.Minute,
			IdleTTL:         time.Hour,
			EndpointConfigs: []ratelimit.EndpointConfig{
				{Path: "/compiles", Method: "POST", Limit: 1, Window: time.Hour, Burst: 1},
			},
		}
	})
	defer close(fc.gate)

	w := do(t, s, http.MethodPost, "/compiles", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = do(t, s, http.MethodPost, "/compiles", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decode(t, w)["error"])
}

func TestAPIKeyRequired(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.APIKey = "secret" })

	w := do(t, s, http.MethodGet, "/record", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/record", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	w = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.AllowedOrigins = []string{"http://localhost:5173"} })

	send := func(method, path, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}

	w := send(http.MethodOptions, "/record/personal/email", "http://localhost:5173")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")

	// requests without an Origin header are not browser cross-origin calls
	w = send(http.MethodGet, "/record", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	before := s.store.Snapshot()
	w = send(http.MethodPost, "/project/load", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, before, s.store.Snapshot())
}

func TestCORS_NoOriginsByDefault(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/project/save", strings.NewReader(`{"path":"cv.cvproj"}`))
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.NoFileExists(t, s.projectPath)
}

func TestListenAddress(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		apiKey string
		want   string
	}{
		{"open API stays on loopback", "", "", "127.0.0.1:8080"},
		{"API key allows every interface", "", "secret", ":8080"},
		{"explicit host wins", "0.0.0.0", "", "0.0.0.0:8080"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, func(c *Config) {
				c.Host = tt.host
				c.APIKey = tt.apiKey
				c.Port = 8080
			})
			assert.Equal(t, tt.want, s.httpServer.Addr)
		})
	}
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.Port = 0 })
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestEventStream_Format(t *testing.T) {
	w := httptest.NewRecorder()
	stream, err := newEventStream(w)
	require.NoError(t, err)

	require.NoError(t, stream.status(sessionResponse{ID: "a", State: "running"}))
	require.NoError(t, stream.heartbeat())
	require.NoError(t, stream.fail("gone"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "id: 1\nevent: status\ndata: {"), body)
	assert.Contains(t, body, "\n\n: ping\n\n")
	assert.Contains(t, body, "id: 2\nevent: error\ndata: {\"error\":\"gone\"}\n\n")
}
