package game

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry tracks the live sessions of the process, keyed by game id.
// Sessions remove themselves once they reach a terminal state.
type Registry struct {
	log      *logrus.Logger
	reporter ResultReporter

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. All sessions it creates share
// the given logger and result reporter.
func NewRegistry(log *logrus.Logger, reporter ResultReporter) *Registry {
	return &Registry{
		log:      log,
		reporter: reporter,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the live session for the game id, creating one
// if none exists. Two players connecting for the same challenge meet
// in the same session regardless of arrival order.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := NewSession(id, r.log, r.reporter, r.Remove)
	r.sessions[id] = s
	return s
}

// Lookup returns the live session for the game id, if any.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Remove drops the session for the game id. Terminal sessions call
// this themselves; deliveries to a removed session are no-ops.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}
