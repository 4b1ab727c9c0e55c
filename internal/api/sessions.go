package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/factaudit/internal/audit"
	"github.com/ppiankov/factaudit/internal/model"
)

// ErrSessionNotFound is returned for unknown session ids
var ErrSessionNotFound = errors.New("session not found")

// entry is one UI session: its audit state plus the in-flight run, if any
type entry struct {
	id      uuid.UUID
	session *audit.Session
	created time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	report *model.Report
}

// begin abandons any in-flight run and starts a new one whose context derives from parent
func (e *entry) begin(parent context.Context) (*audit.Run, context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	e.cancel = cancel
	e.report = nil

	return e.session.Begin(), ctx
}

// finish stores the report of run if it is still the current one
func (e *entry) finish(run *audit.Run, report *model.Report) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !run.Active() {
		return
	}
	e.report = report
}

// reset cancels the in-flight run and returns the session to idle
func (e *entry) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.report = nil
	e.session.Reset()
}

func (e *entry) lastReport() *model.Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.report
}

// registry holds the live sessions of the API
type registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
}

// newRegistry creates an empty registry
func newRegistry() *registry {
	return &registry{sessions: make(map[uuid.UUID]*entry)}
}

// create registers a new idle session
func (r *registry) create() *entry {
	e := &entry{
		id:      uuid.New(),
		session: audit.NewSession(),
		created: time.Now().UTC(),
	}

	r.mu.Lock()
	r.sessions[e.id] = e
	r.mu.Unlock()

	return e
}

// get looks a session up by its string id
func (r *registry) get(id string) (*entry, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[parsed]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// count returns the number of sessions
func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// cancelAll cancels every in-flight run
func (r *registry) cancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.sessions {
		e.mu.Lock()
		if e.cancel != nil {
			e.cancel()
		}
		e.mu.Unlock()
	}
}
