// Package session orchestrates compile requests: it snapshots the record,
// renders it and runs the compiler off the caller's goroutine, tracking
// each request as a session with a small state machine.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/cv-editor/internal/artifact"
	"github.com/jonathan/cv-editor/internal/compiler"
	"github.com/jonathan/cv-editor/internal/types"
)

// State is the lifecycle position of a session
type State string

// Session states. Idle only describes a manager with nothing in flight;
// a recorded session is always Running, Succeeded or Failed.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transition can happen
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// MaxHistory is the number of finished sessions kept for lookup
const MaxHistory = 32

var (
	// ErrBusy is returned by Start while another compile is running
	ErrBusy = errors.New("a compile is already running")
	// ErrNotFound is returned for unknown session IDs
	ErrNotFound = errors.New("compile session not found")
)

// Source yields the record to compile. *record.Store satisfies it.
type Source interface {
	Snapshot() types.Record
}

// Renderer turns a record into markup
type Renderer interface {
	Render(types.Record) (string, error)
}

// Compiler turns markup into a PDF
type Compiler interface {
	Compile(ctx context.Context, markup string) (*compiler.Result, error)
}

// Session is a point-in-time view of one compile request
type Session struct {
	ID         uuid.UUID
	State      State
	Markup     string
	// Filename is the suggested download name, taken from the snapshot
	Filename   string
	Result     *compiler.Result
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Outcome is delivered once per started session
type Outcome struct {
	SessionID uuid.UUID
	Result    *compiler.Result
	// Err is nil only on success. It is a *compiler.NotFoundError when no
	// compiler could be resolved and a *compiler.CompileFailureError when
	// the run produced no PDF.
	Err error
}

// FinishFunc observes every session once it reaches a terminal state
type FinishFunc func(Session)

// Manager runs at most one compile at a time
type Manager struct {
	renderer Renderer
	compiler Compiler
	logger   *zap.Logger

	mu       sync.Mutex
	running  bool
	sessions map[uuid.UUID]*entry
	order    []uuid.UUID
	latest   uuid.UUID
	onFinish []FinishFunc
	wg       sync.WaitGroup
}

type entry struct {
	session Session
	done    chan struct{}
}

// NewManager creates a manager. A nil logger disables logging.
func NewManager(r Renderer, c Compiler, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		renderer: r,
		compiler: c,
		logger:   logger,
		sessions: make(map[uuid.UUID]*entry),
	}
}

// OnFinish registers fn to run after each session finishes, in the
// compile goroutine and before the outcome is delivered.
func (m *Manager) OnFinish(fn FinishFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFinish = append(m.onFinish, fn)
}

// State reports whether a compile is in flight
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return StateRunning
	}
	return StateIdle
}

// Start snapshots src, renders it synchronously and dispatches the compile.
// Render errors such as a missing personal field are returned directly and
// no session is created. ctx bounds the compile itself, so it must outlive
// the call. The returned channel yields exactly one Outcome and is then closed.
func (m *Manager) Start(ctx context.Context, src Source) (Session, <-chan Outcome, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return Session{}, nil, ErrBusy
	}
	m.running = true
	m.mu.Unlock()

	rec := src.Snapshot()
	markup, err := m.renderer.Render(rec)
	if err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return Session{}, nil, err
	}

	e := &entry{
		session: Session{
			ID:        uuid.New(),
			State:     StateRunning,
			Markup:    markup,
			Filename:  artifact.SuggestFilename(rec.Personal),
			StartedAt: time.Now(),
		},
		done: make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[e.session.ID] = e
	m.order = append(m.order, e.session.ID)
	m.latest = e.session.ID
	m.prune()
	started := e.session
	m.mu.Unlock()

	m.logger.Info("compile started", zap.String("session", started.ID.String()))

	out := make(chan Outcome, 1)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(out)
		out <- m.run(ctx, e, markup)
	}()

	return started, out, nil
}

func (m *Manager) run(ctx context.Context, e *entry, markup string) Outcome {
	res, err := m.compiler.Compile(ctx, markup)
	if err == nil {
		err = res.Err()
	}

	m.mu.Lock()
	e.session.Result = res
	e.session.Err = err
	e.session.FinishedAt = time.Now()
	if err == nil {
		e.session.State = StateSucceeded
	} else {
		e.session.State = StateFailed
	}
	finished := e.session
	hooks := append([]FinishFunc(nil), m.onFinish...)
	m.running = false
	close(e.done)
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("compile failed",
			zap.String("session", finished.ID.String()),
			zap.Error(err))
	} else {
		m.logger.Info("compile succeeded",
			zap.String("session", finished.ID.String()),
			zap.Int("bytes", len(res.Artifact)))
	}

	for _, fn := range hooks {
		fn(finished)
	}
	return Outcome{SessionID: finished.ID, Result: res, Err: err}
}

// prune drops the oldest finished sessions beyond MaxHistory. Callers hold mu.
func (m *Manager) prune() {
	for len(m.order) > MaxHistory {
		id := m.order[0]
		if e, ok := m.sessions[id]; ok && !e.session.State.Terminal() {
			return
		}
		delete(m.sessions, id)
		m.order = m.order[1:]
	}
}

// Get returns the session with the given ID
func (m *Manager) Get(id uuid.UUID) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return e.session, nil
}

// Latest returns the most recently started session
func (m *Manager) Latest() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[m.latest]
	if !ok {
		return Session{}, ErrNotFound
	}
	return e.session, nil
}

// Done returns a channel closed once the session reaches a terminal state
func (m *Manager) Done(id uuid.UUID) (<-chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.done, nil
}

// List returns known sessions, oldest first
func (m *Manager) List() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sessions[id].session)
	}
	return out
}

// Wait blocks until every dispatched compile has finished
func (m *Manager) Wait() {
	m.wg.Wait()
}
