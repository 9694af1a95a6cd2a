package ingest

import (
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned when attaching to a publisher with no live session.
	ErrNotFound = errors.New("no live session for publisher")

	// ErrPublisherLive is returned when a publisher connects while it already
	// has a registered session.
	ErrPublisherLive = errors.New("publisher already has a live session")
)

// Registry maps publisher ids to their live sessions. It does only map
// bookkeeping under its lock; session state is owned by each session's loop.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Put registers s under its publisher id.
func (r *Registry) Put(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.PublisherID]; ok {
		return ErrPublisherLive
	}
	r.sessions[s.PublisherID] = s
	return nil
}

// Get returns the live session for publisherID.
func (r *Registry) Get(publisherID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[publisherID]
	return s, ok
}

// Remove evicts s, but only if it is still the registered session for its
// publisher; a newer session under the same id is left alone.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.PublisherID]; ok && cur == s {
		delete(r.sessions, s.PublisherID)
	}
}

// Sessions returns a snapshot of all registered sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of registered sessions. Used for metrics.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
