//go:build integration

package credential_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fides/internal/credential/models"
	"fides/internal/credential/store/credential"
	id "fides/pkg/domain"
	"fides/pkg/platform/sentinel"
	"fides/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *credential.PostgresStore
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
	s.store = credential.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "credentials")
	s.Require().NoError(err)
}

func newTestCredential(subjectID id.SubjectID) *models.Credential {
	now := time.Now().UTC().Truncate(time.Microsecond)
	credentialID := id.NewCredentialID()
	return &models.Credential{
		ID:            credentialID,
		SubjectID:     subjectID,
		IssuerID:      id.NewIssuerID(),
		InstitutionID: id.NewInstitutionID(),
		Type:          models.TypeEnrollment,
		Tier:          2,
		Capabilities:  []string{"course.read"},
		Signature: models.SignatureSnapshot{
			IdentityHash:     "hash-1",
			CapturedAt:       now,
			Reason:           models.ReasonEnrollment,
			EvolutionCounter: 1,
			EvolutionKey:     "evo-1",
		},
		Evolution: models.EvolutionRecord{
			CredentialID:            credentialID,
			CurrentCounter:          1,
			LastVerified:            now,
			ReverificationThreshold: 0.7,
		},
		IssuedAt: now,
		Status:   models.StatusActive,
	}
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()

	c := newTestCredential(id.NewSubjectID())
	s.Require().NoError(s.store.Create(ctx, c))

	found, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.ID, found.ID)
	s.Equal(c.SubjectID, found.SubjectID)
	s.Equal(c.Signature.IdentityHash, found.Signature.IdentityHash)
	s.Equal(models.StatusActive, found.Status)

	s.Run("duplicate id conflicts", func() {
		err := s.store.Create(ctx, c)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.FindByID(ctx, id.NewCredentialID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestListBySubject() {
	ctx := context.Background()
	subjectID := id.NewSubjectID()

	for range 3 {
		s.Require().NoError(s.store.Create(ctx, newTestCredential(subjectID)))
	}
	s.Require().NoError(s.store.Create(ctx, newTestCredential(id.NewSubjectID())))

	listed, err := s.store.ListBySubject(ctx, subjectID)
	s.Require().NoError(err)
	s.Len(listed, 3)
	for _, c := range listed {
		s.Equal(subjectID, c.SubjectID)
	}
}

func (s *PostgresStoreSuite) TestExecute() {
	ctx := context.Background()

	c := newTestCredential(id.NewSubjectID())
	s.Require().NoError(s.store.Create(ctx, c))

	s.Run("mutation persists", func() {
		updated, err := s.store.Execute(ctx, c.ID,
			func(c *models.Credential) error { return c.CanRevoke() },
			func(c *models.Credential) { c.ApplyRevocation(time.Now().UTC(), "registrar", "policy") },
		)
		s.Require().NoError(err)
		s.Equal(models.StatusRevoked, updated.Status)

		found, err := s.store.FindByID(ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusRevoked, found.Status)
	})

	s.Run("validation failure leaves the row untouched", func() {
		_, err := s.store.Execute(ctx, c.ID,
			func(c *models.Credential) error { return c.CanRevoke() },
			func(c *models.Credential) { c.Status = models.StatusActive },
		)
		s.ErrorIs(err, sentinel.ErrInvalidState)

		found, err := s.store.FindByID(ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusRevoked, found.Status)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.Execute(ctx, id.NewCredentialID(), nil, nil)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestConcurrentExecute verifies that the row lock serializes concurrent
// mutations: every increment lands, none is lost.
func (s *PostgresStoreSuite) TestConcurrentExecute() {
	ctx := context.Background()
	const attempts = 20

	c := newTestCredential(id.NewSubjectID())
	s.Require().NoError(s.store.Create(ctx, c))

	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, c.ID, nil, func(c *models.Credential) {
				c.Evolution.History = append(c.Evolution.History, models.EvolutionEvent{
					Timestamp: time.Now().UTC(),
					Counter:   uint64(i + 1),
				})
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	found, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Len(found.Evolution.History, attempts)
}
