// Package session tracks recording-session state reported by the client.
// The state machine is idle → recording ⇄ paused → stopped/failed; invalid
// transitions are no-ops, not errors.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

type Event string

const (
	EventStart  Event = "start"
	EventPause  Event = "pause"
	EventResume Event = "resume"
	EventStop   Event = "stop"
	EventFail   Event = "fail"
)

// Transition returns the state after applying event. ok is false when the
// event is not valid in the current state; the state is then returned
// unchanged so callers can treat invalid transitions as no-ops.
func Transition(s State, e Event) (State, bool) {
	switch s {
	case StateIdle:
		if e == EventStart {
			return StateRecording, true
		}
	case StateRecording:
		switch e {
		case EventPause:
			return StatePaused, true
		case EventStop:
			return StateStopped, true
		case EventFail:
			return StateFailed, true
		}
	case StatePaused:
		switch e {
		case EventResume:
			return StateRecording, true
		case EventStop:
			return StateStopped, true
		case EventFail:
			return StateFailed, true
		}
	}
	// Terminal states (stopped, failed) accept nothing.
	return s, false
}

// Session is one recording attempt's server-side view.
type Session struct {
	ID        string    `json:"id"`
	StudentID string    `json:"-"`
	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Manager holds in-flight sessions. State here is advisory: the client
// owns the recorder; the server mirrors it so abandoned sessions are
// observable.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create registers a new idle session for a student.
func (m *Manager) Create(studentID string) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		StudentID: studentID,
		State:     StateIdle,
		UpdatedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns a student's session by id. Unknown ids and sessions owned by
// another student both return false.
func (m *Manager) Get(id, studentID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.StudentID != studentID {
		return Session{}, false
	}
	return *s, true
}

// Apply runs one event against a session. applied is false when the event
// was an invalid transition (the session is left untouched); found is false
// for unknown or not-owned sessions.
func (m *Manager) Apply(id, studentID string, e Event) (s Session, applied, found bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[id]
	if !ok || cur.StudentID != studentID {
		return Session{}, false, false
	}
	next, ok := Transition(cur.State, e)
	if ok {
		cur.State = next
		cur.UpdatedAt = time.Now().UTC()
	}
	return *cur, ok, true
}
