// Package revocation provides stores for revocation records and the
// distributed revocation list.
package revocation

import (
	"context"
	"sync"

	"fides/internal/credential/models"
	id "fides/pkg/domain"
	"fides/pkg/platform/sentinel"
)

// InMemoryStore keeps revocation records in process memory.
//
// Execute serializes the transition-approval read-modify-write, which is how
// the double-approval guard holds under concurrent transition requests.
type InMemoryStore struct {
	mu           sync.RWMutex
	revocations  map[id.RevocationID]*models.Revocation
	byCredential map[id.CredentialID]id.RevocationID
}

func New() *InMemoryStore {
	return &InMemoryStore{
		revocations:  make(map[id.RevocationID]*models.Revocation),
		byCredential: make(map[id.CredentialID]id.RevocationID),
	}
}

// Create stores a revocation record. A credential is revoked at most once,
// so a second record for the same credential is a conflict.
func (s *InMemoryStore) Create(_ context.Context, revocation *models.Revocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.revocations[revocation.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byCredential[revocation.CredentialID]; exists {
		return sentinel.ErrConflict
	}
	stored := cloneRevocation(revocation)
	s.revocations[revocation.ID] = &stored
	s.byCredential[revocation.CredentialID] = revocation.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, revocationID id.RevocationID) (models.Revocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.revocations[revocationID]
	if !ok {
		return models.Revocation{}, sentinel.ErrNotFound
	}
	return cloneRevocation(stored), nil
}

func (s *InMemoryStore) FindByCredential(_ context.Context, credentialID id.CredentialID) (models.Revocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	revocationID, ok := s.byCredential[credentialID]
	if !ok {
		return models.Revocation{}, sentinel.ErrNotFound
	}
	return cloneRevocation(s.revocations[revocationID]), nil
}

// Execute atomically runs validate then mutate against the stored record.
func (s *InMemoryStore) Execute(
	_ context.Context,
	revocationID id.RevocationID,
	validate func(*models.Revocation) error,
	mutate func(*models.Revocation),
) (models.Revocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.revocations[revocationID]
	if !ok {
		return models.Revocation{}, sentinel.ErrNotFound
	}

	candidate := cloneRevocation(stored)
	if validate != nil {
		if err := validate(&candidate); err != nil {
			return models.Revocation{}, err
		}
	}
	if mutate != nil {
		mutate(&candidate)
	}
	s.revocations[revocationID] = &candidate
	return cloneRevocation(&candidate), nil
}

func cloneRevocation(r *models.Revocation) models.Revocation {
	out := *r
	out.DistributedTo = append([]id.NodeID(nil), r.DistributedTo...)
	if r.TransitionedAt != nil {
		at := *r.TransitionedAt
		out.TransitionedAt = &at
	}
	return out
}
