//go:build integration

package crl_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fides/internal/credential/store/crl"
	id "fides/pkg/domain"
	"fides/pkg/testutil/containers"
)

type RedisCRLSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	crl   *crl.RedisCRL
}

func TestRedisCRLSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCRLSuite))
}

func (s *RedisCRLSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.crl = crl.NewRedisCRL(s.redis.Client)
}

func (s *RedisCRLSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCRLSuite) TestMarkAndCheck() {
	ctx := context.Background()
	credentialID := id.NewCredentialID()

	revoked, err := s.crl.IsRevoked(ctx, credentialID)
	s.Require().NoError(err)
	s.False(revoked)

	s.Require().NoError(s.crl.MarkRevoked(ctx, credentialID, nil))

	revoked, err = s.crl.IsRevoked(ctx, credentialID)
	s.Require().NoError(err)
	s.True(revoked)
}

func (s *RedisCRLSuite) TestEntryExpiresWithCredential() {
	ctx := context.Background()
	credentialID := id.NewCredentialID()

	expiresAt := time.Now().Add(time.Second)
	s.Require().NoError(s.crl.MarkRevoked(ctx, credentialID, &expiresAt))

	revoked, err := s.crl.IsRevoked(ctx, credentialID)
	s.Require().NoError(err)
	s.True(revoked)

	time.Sleep(1500 * time.Millisecond)

	revoked, err = s.crl.IsRevoked(ctx, credentialID)
	s.Require().NoError(err)
	s.False(revoked, "revocation marker should expire with the credential")
}

func (s *RedisCRLSuite) TestExpiredCredentialIsNotMarked() {
	ctx := context.Background()
	credentialID := id.NewCredentialID()

	past := time.Now().Add(-time.Hour)
	s.Require().NoError(s.crl.MarkRevoked(ctx, credentialID, &past))

	revoked, err := s.crl.IsRevoked(ctx, credentialID)
	s.Require().NoError(err)
	s.False(revoked)
}
