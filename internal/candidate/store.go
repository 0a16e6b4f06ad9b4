package candidate

import (
	"sync"

	"sqlboost/internal/gate"
)

// Store holds every patch attempted during one job's session. Each session
// owns exactly one store; lanes append concurrently within a round.
type Store struct {
	mu      sync.Mutex
	patches []Patch
}

// NewStore allocates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Add records a finished patch.
func (s *Store) Add(p Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches = append(s.patches, p)
}

// Len returns the number of recorded patches.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patches)
}

// Snapshot returns a copy of all recorded patches.
func (s *Store) Snapshot() []Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Patch(nil), s.patches...)
}

// Best returns the highest-speedup semantically passed patch. Ties break
// toward the lower lane id so selection is deterministic for any arrival
// order.
func (s *Store) Best() (Patch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	best := Patch{}
	found := false
	for _, p := range s.patches {
		if p.Verdict != gate.VerdictSemanticallyPassed || !p.Benchmarked() {
			continue
		}
		if !found || p.Speedup > best.Speedup || (p.Speedup == best.Speedup && p.Lane < best.Lane) {
			best = p
			found = true
		}
	}
	return best, found
}
