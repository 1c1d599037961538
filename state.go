package session

import "sync"

// State is the in-memory, non-persisted view of "are we logged in and as
// whom". It lives for the process lifetime and is written only by the Engine.
type State struct {
	mu            sync.RWMutex
	authenticated bool
	user          Snapshot
}

// NewState returns an unauthenticated state.
func NewState() *State {
	return &State{}
}

// IsAuthenticated reports whether a login has completed and no logout (forced
// or explicit) has completed since.
func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// CurrentUser returns the current user snapshot, empty when logged out.
func (s *State) CurrentUser() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *State) setAuthenticated(user Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
	s.user = user
}

func (s *State) replaceUser(user Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

func (s *State) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	s.user = nil
}
