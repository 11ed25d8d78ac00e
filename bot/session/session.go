// Package session owns the per-user conversation state machine.
//
// A user has at most one Session, keyed by Telegram user ID. Sessions are
// process-local: a restart loses all in-flight conversations by design.
package session

import (
	"sync"

	"github.com/m3rciful/relaybot/bot/storage"
)

// State identifies the conversation stage of one user.
type State string

const (
	// StateAwaitingBackend waits for the user to pick a destination from
	// the menu sent by /start.
	StateAwaitingBackend State = "awaiting_backend"
	// StateReceivingFiles accepts attachments until /cancel; the state
	// self-loops so any number of files can ride one backend selection.
	StateReceivingFiles State = "receiving_files"
)

// Session tracks one user's conversation stage and bound destination.
// Backend stays nil until the user picks a destination; the binding is
// sticky for the session's lifetime.
type Session struct {
	State   State
	Backend storage.Backend
}

// Manager owns the userID->Session map. Map mutations happen under the
// manager mutex; With additionally serializes whole-event processing per
// user so no two concurrent handlers read-modify-write the same session,
// while events for different users proceed in parallel.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	locks    map[int64]*sync.Mutex
}

// NewManager constructs an empty session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[int64]*Session),
		locks:    make(map[int64]*sync.Mutex),
	}
}

func (m *Manager) userLock(userID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	return l
}

// With runs fn under the user's exclusion lock. fn receives the live
// session, or nil when the user has none; it must not retain the pointer
// past its return.
func (m *Manager) With(userID int64, fn func(s *Session)) {
	l := m.userLock(userID)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	s := m.sessions[userID]
	m.mu.Unlock()

	fn(s)
}

// Begin creates a fresh session in StateAwaitingBackend, replacing any
// existing one. A second /start therefore resets the user's session and
// clears a previously bound backend instead of duplicating state.
func (m *Manager) Begin(userID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Session{State: StateAwaitingBackend}
	m.sessions[userID] = s
	return s
}

// Get returns the user's session if one exists.
func (m *Manager) Get(userID int64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// State returns the user's current state, or "" when no session exists.
func (m *Manager) State(userID int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s.State
	}
	return ""
}

// Bind attaches the chosen backend and advances the session into
// StateReceivingFiles. It reports false when the user has no session
// awaiting a backend choice.
func (m *Manager) Bind(userID int64, b storage.Backend) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok || s.State != StateAwaitingBackend {
		return false
	}
	s.Backend = b
	s.State = StateReceivingFiles
	return true
}

// End discards the user's session and reports whether one existed. It
// does not interrupt an upload already underway: the in-flight handler
// holds the user lock and finishes on the session snapshot it read.
func (m *Manager) End(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	delete(m.sessions, userID)
	return ok
}

// Active reports whether the user has any session.
func (m *Manager) Active(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	return ok
}

// Len returns the number of live sessions (diagnostics).
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
