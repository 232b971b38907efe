// Package credential provides stores for issued credentials.
package credential

import (
	"context"
	"sync"

	"fides/internal/credential/models"
	id "fides/pkg/domain"
	"fides/pkg/platform/sentinel"
)

// InMemoryStore keeps credentials in process memory. Single-node
// development and test implementation; production uses the Postgres store.
//
// All mutation goes through Execute, which runs the read-validate-mutate
// sequence under the store lock so concurrent verification and revocation of
// the same credential serialize.
type InMemoryStore struct {
	mu          sync.RWMutex
	credentials map[id.CredentialID]*models.Credential
}

func New() *InMemoryStore {
	return &InMemoryStore{credentials: make(map[id.CredentialID]*models.Credential)}
}

// Create stores a new credential. Fails with sentinel.ErrConflict when the
// id already exists: credential ids are never reused.
func (s *InMemoryStore) Create(_ context.Context, credential *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.credentials[credential.ID]; exists {
		return sentinel.ErrConflict
	}
	stored := clone(credential)
	s.credentials[credential.ID] = &stored
	return nil
}

// FindByID returns a copy of the credential, or sentinel.ErrNotFound.
func (s *InMemoryStore) FindByID(_ context.Context, credentialID id.CredentialID) (models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.credentials[credentialID]
	if !ok {
		return models.Credential{}, sentinel.ErrNotFound
	}
	return clone(stored), nil
}

// ListBySubject returns copies of all credentials bound to a subject,
// including revoked ones: revoked credentials persist for audit.
func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID id.SubjectID) ([]models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Credential
	for _, stored := range s.credentials {
		if stored.SubjectID == subjectID {
			out = append(out, clone(stored))
		}
	}
	return out, nil
}

// Execute atomically runs validate then mutate against the stored
// credential. If validate returns an error the credential is left untouched
// and the error is returned. The updated credential is returned as a copy.
func (s *InMemoryStore) Execute(
	_ context.Context,
	credentialID id.CredentialID,
	validate func(*models.Credential) error,
	mutate func(*models.Credential),
) (models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.credentials[credentialID]
	if !ok {
		return models.Credential{}, sentinel.ErrNotFound
	}

	// Validate against a copy so a failing validate cannot leak partial
	// writes into the stored record.
	candidate := clone(stored)
	if validate != nil {
		if err := validate(&candidate); err != nil {
			return models.Credential{}, err
		}
	}
	if mutate != nil {
		mutate(&candidate)
	}
	s.credentials[credentialID] = &candidate
	return clone(&candidate), nil
}

// clone deep-copies a credential so callers never alias stored state.
func clone(c *models.Credential) models.Credential {
	out := *c
	out.Capabilities = append([]string(nil), c.Capabilities...)
	out.Signature.PublicKey = append([]byte(nil), c.Signature.PublicKey...)
	out.CryptoSignature = append([]byte(nil), c.CryptoSignature...)
	out.Evolution.History = append([]models.EvolutionEvent(nil), c.Evolution.History...)
	if c.ExpiresAt != nil {
		expires := *c.ExpiresAt
		out.ExpiresAt = &expires
	}
	if c.RevokedAt != nil {
		revoked := *c.RevokedAt
		out.RevokedAt = &revoked
	}
	return out
}
