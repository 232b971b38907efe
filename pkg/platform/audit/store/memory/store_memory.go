package memory

import (
	"context"
	"sync"

	audit "fides/pkg/platform/audit"
)

// InMemoryStore keeps audit entries in process memory. Suitable for tests
// and single-node development; production uses the Postgres store.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
	byActor map[string][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byActor: make(map[string][]int)}
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	s.byActor[entry.ActorID] = append(s.byActor[entry.ActorID], len(s.entries)-1)
	return nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actorID string) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.byActor[actorID]
	out := make([]audit.Entry, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// ListRecent returns the most recent N entries in emission order.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]audit.Entry, limit)
	copy(out, s.entries[len(s.entries)-limit:])
	return out, nil
}

// Clear drops all entries. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byActor = make(map[string][]int)
}
