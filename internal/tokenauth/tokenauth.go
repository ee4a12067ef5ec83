// Package tokenauth is a minimal in-memory Authenticator: one fixed
// instructor token plus a set of per-topology student join codes. It exists
// to let cmd/ae3gis-labd serve run end-to-end in a demo setting; it is not
// the production credential store.
package tokenauth

import (
	"fmt"
	"sync"

	"ae3gis-labd/internal/labapi"
)

// Store is a concurrency-safe, in-memory token registry.
type Store struct {
	instructorToken string

	mu    sync.RWMutex
	slots map[string]string // join code -> topology id
}

// New creates a Store with a fixed instructor token and no student slots.
func New(instructorToken string) *Store {
	return &Store{
		instructorToken: instructorToken,
		slots:           make(map[string]string),
	}
}

// AddStudentSlot registers a join code scoped to one topology. Re-adding an
// existing code overwrites its topology scope.
func (s *Store) AddStudentSlot(joinCode, topologyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[joinCode] = topologyID
}

// RemoveStudentSlot revokes a join code.
func (s *Store) RemoveStudentSlot(joinCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, joinCode)
}

// Authenticate resolves a token to an instructor or student Identity.
// Matches the instructor-token-first precedence of the original's
// require_any_auth: the instructor token always wins even if it happens to
// collide with a join code.
func (s *Store) Authenticate(token string) (labapi.Identity, error) {
	if token == "" {
		return labapi.Identity{}, fmt.Errorf("tokenauth: %w: no token supplied", labapi.ErrUnauthorized)
	}
	if token == s.instructorToken {
		return labapi.Identity{Role: "instructor"}, nil
	}

	s.mu.RLock()
	topologyID, ok := s.slots[token]
	s.mu.RUnlock()
	if !ok {
		return labapi.Identity{}, fmt.Errorf("tokenauth: %w: unknown token", labapi.ErrUnauthorized)
	}
	return labapi.Identity{Role: "student", TopologyID: topologyID}, nil
}
