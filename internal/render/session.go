package render

import (
	"sync"

	"github.com/google/uuid"
)

// Sessions tracks which display surface currently owns hardware capture.
// Each surface gets a fresh id when it is created; teardown of a surface
// whose id is no longer current must leave capture alone, because a newer
// surface has already taken it over.
type Sessions struct {
	mu      sync.Mutex
	current string
}

// Begin makes a new session current and returns its id.
func (s *Sessions) Begin() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
	return id
}

// IsCurrent reports whether id is the current session.
func (s *Sessions) IsCurrent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id != "" && s.current == id
}

// End clears id if it is still current and reports whether it was.
func (s *Sessions) End(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" || s.current != id {
		return false
	}
	s.current = ""
	return true
}

// Current returns the current session id, empty when none.
func (s *Sessions) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
