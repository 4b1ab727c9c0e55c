package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/factaudit/internal/model"
)

// Session owns the single AuditState of one UI and the trace lines of its current run.
// Every change goes through Reduce. Starting or resetting an audit bumps the generation,
// so results that arrive late from an abandoned run are dropped.
type Session struct {
	mu         sync.RWMutex
	state      model.AuditState
	trace      []string
	generation uint64
	updatedAt  time.Time
	observers  []func(Snapshot)
}

// Snapshot is a point-in-time copy of a session that callers may keep and modify
type Snapshot struct {
	State      model.AuditState `json:"state"`
	Trace      []string         `json:"trace"`
	Generation uint64           `json:"generation"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// NewSession creates an idle session
func NewSession() *Session {
	return &Session{
		state:     model.NewAuditState(),
		trace:     []string{},
		updatedAt: time.Now(),
	}
}

// OnChange registers fn to be called with a snapshot after every accepted update.
// fn runs outside the session lock.
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Begin resets the session and returns a handle for a new run
func (s *Session) Begin() *Run {
	s.mu.Lock()
	s.generation++
	s.state = model.NewAuditState()
	s.trace = []string{}
	s.updatedAt = time.Now()
	gen := s.generation
	snap, observers := s.snapshotLocked(), s.observers
	s.mu.Unlock()

	notify(observers, snap)
	return &Run{session: s, generation: gen}
}

// Reset abandons the current run, if any, and returns to idle
func (s *Session) Reset() {
	s.mu.Lock()
	s.generation++
	s.state = Reduce(s.state, Reset{})
	s.trace = []string{}
	s.updatedAt = time.Now()
	snap, observers := s.snapshotLocked(), s.observers
	s.mu.Unlock()

	notify(observers, snap)
}

// State returns a copy of the current state
func (s *Session) State() model.AuditState {
	return s.Snapshot().State
}

// Snapshot returns a deep copy of the session
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Generation returns the id of the current run
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:      cloneState(s.state),
		Trace:      append([]string{}, s.trace...),
		Generation: s.generation,
		UpdatedAt:  s.updatedAt,
	}
}

// update applies fn under the lock when gen is still current
func (s *Session) update(gen uint64, fn func()) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	fn()
	s.updatedAt = time.Now()
	snap, observers := s.snapshotLocked(), s.observers
	s.mu.Unlock()

	notify(observers, snap)
	return true
}

func notify(observers []func(Snapshot), snap Snapshot) {
	for _, fn := range observers {
		fn(snap)
	}
}

// Run is the handle one audit uses to publish into its session.
// Once the session moves on to another generation all writes are discarded.
type Run struct {
	session    *Session
	generation uint64
}

// Dispatch applies ev to the session state. It reports false when the run is stale.
func (r *Run) Dispatch(ev Event) bool {
	return r.session.update(r.generation, func() {
		r.session.state = Reduce(r.session.state, ev)
	})
}

// Trace appends a formatted line to the session trace. It reports false when the run is stale.
func (r *Run) Trace(format string, args ...any) bool {
	line := fmt.Sprintf(format, args...)
	return r.session.update(r.generation, func() {
		r.session.trace = append(r.session.trace, line)
	})
}

// Active reports whether this run is still the session's current run
func (r *Run) Active() bool {
	return r.session.Generation() == r.generation
}

// Generation returns the id this run was started with
func (r *Run) Generation() uint64 {
	return r.generation
}

// Session returns the session the run publishes into
func (r *Run) Session() *Session {
	return r.session
}

func cloneState(s model.AuditState) model.AuditState {
	out := s
	out.Findings = make([]model.Finding, len(s.Findings))
	for i, f := range s.Findings {
		if f.CalculationSteps != nil {
			f.CalculationSteps = append([]model.CalculationStep{}, f.CalculationSteps...)
		}
		out.Findings[i] = f
	}
	return out
}
