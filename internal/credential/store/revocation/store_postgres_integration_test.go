//go:build integration

package revocation_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fides/internal/credential/models"
	"fides/internal/credential/store/revocation"
	id "fides/pkg/domain"
	"fides/pkg/platform/sentinel"
	"fides/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *revocation.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = revocation.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "revocations")
	s.Require().NoError(err)
}

func newTestRevocation() *models.Revocation {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Revocation{
		ID:                id.NewRevocationID(),
		CredentialID:      id.NewCredentialID(),
		RevokedBy:         "registrar",
		Reason:            "policy",
		RevokedAt:         now,
		EffectiveAt:       now,
		TransitionTarget:  models.TargetPeer,
		PreserveSignature: true,
		SignatureStatus:   models.SignatureActive,
	}
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()

	r := newTestRevocation()
	s.Require().NoError(s.store.Create(ctx, r))

	byID, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.CredentialID, byID.CredentialID)
	s.True(byID.PreserveSignature)

	byCredential, err := s.store.FindByCredential(ctx, r.CredentialID)
	s.Require().NoError(err)
	s.Equal(r.ID, byCredential.ID)

	s.Run("one revocation per credential", func() {
		dup := newTestRevocation()
		dup.CredentialID = r.CredentialID
		s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)
	})

	s.Run("unknown credential is not found", func() {
		_, err := s.store.FindByCredential(ctx, id.NewCredentialID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestConcurrentTransitionApproval verifies the row lock makes transition
// approval first-writer-wins: one peer identity is allocated, the rest
// observe it.
func (s *PostgresStoreSuite) TestConcurrentTransitionApproval() {
	ctx := context.Background()
	const attempts = 20

	r := newTestRevocation()
	s.Require().NoError(s.store.Create(ctx, r))

	var wg sync.WaitGroup
	var allocations atomic.Int32

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, r.ID, nil, func(r *models.Revocation) {
				if r.TransitionApproved {
					return
				}
				r.TransitionApproved = true
				r.PeerNodeID = id.NewNodeID()
				allocations.Add(1)
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Equal(int32(1), allocations.Load(), "exactly one transition should allocate a peer identity")

	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.True(found.TransitionApproved)
	s.False(found.PeerNodeID.IsNil())
}
