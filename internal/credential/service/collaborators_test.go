package service

import (
	"context"

	"go.uber.org/mock/gomock"

	"fides/internal/credential/models"
	"fides/internal/credential/service/mocks"
	"fides/internal/evolution"
	id "fides/pkg/domain"
	dErrors "fides/pkg/domain-errors"
)

// withCollaborators rebuilds the service on the suite's stores with the
// given optional collaborators attached.
func (s *ServiceSuite) withCollaborators(opts ...Option) {
	svc, err := New(
		s.credentials,
		s.revocations,
		s.engine,
		evolution.New(),
		s.keys,
		s.publisher,
		opts...,
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) TestRevocationListCollaboration() {
	ctx := context.Background()
	ctrl := gomock.NewController(s.T())

	s.Run("revocation marks the shared list", func() {
		crl := mocks.NewMockRevocationList(ctrl)
		s.withCollaborators(WithRevocationList(crl))
		c := s.issue()

		crl.EXPECT().MarkRevoked(gomock.Any(), c.ID, gomock.Any()).Return(nil)

		_, err := s.service.Revoke(ctx, models.RevokeRequest{
			CredentialID: c.ID,
			RevokedBy:    "registrar",
			Reason:       "policy",
		})
		s.Require().NoError(err)
	})

	s.Run("list failure does not fail revocation", func() {
		crl := mocks.NewMockRevocationList(ctrl)
		s.withCollaborators(WithRevocationList(crl))
		c := s.issue()

		crl.EXPECT().MarkRevoked(gomock.Any(), c.ID, gomock.Any()).
			Return(dErrors.New(dErrors.CodeInternal, "redis down"))

		_, err := s.service.Revoke(ctx, models.RevokeRequest{
			CredentialID: c.ID,
			RevokedBy:    "registrar",
			Reason:       "policy",
		})
		s.Require().NoError(err)
	})

	s.Run("list failure degrades verification to store state", func() {
		crl := mocks.NewMockRevocationList(ctrl)
		s.withCollaborators(WithRevocationList(crl))
		c := s.issue()

		crl.EXPECT().IsRevoked(gomock.Any(), c.ID).
			Return(false, dErrors.New(dErrors.CodeInternal, "redis down"))

		result, err := s.service.VerifyAccess(ctx, verifyRequest(c))
		s.Require().NoError(err)
		s.True(result.Allowed)
	})

	s.Run("list revocation from another instance denies access", func() {
		crl := mocks.NewMockRevocationList(ctrl)
		s.withCollaborators(WithRevocationList(crl))
		c := s.issue()

		crl.EXPECT().IsRevoked(gomock.Any(), c.ID).Return(true, nil)

		result, err := s.service.VerifyAccess(ctx, verifyRequest(c))
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.False(result.Checks.CredentialActive)
	})
}

func (s *ServiceSuite) TestRevocationDistribution() {
	ctx := context.Background()
	ctrl := gomock.NewController(s.T())

	reached := []id.NodeID{id.NewNodeID(), id.NewNodeID()}

	s.Run("reached peers are recorded on the revocation", func() {
		distributor := mocks.NewMockDistributor(ctrl)
		s.withCollaborators(WithDistributor(distributor))
		c := s.issue()

		distributor.EXPECT().Distribute(gomock.Any(), gomock.Any()).Return(reached, nil)

		result, err := s.service.Revoke(ctx, models.RevokeRequest{
			CredentialID: c.ID,
			RevokedBy:    "registrar",
			Reason:       "policy",
		})
		s.Require().NoError(err)
		s.Equal(reached, result.Revocation.DistributedTo)

		stored, err := s.revocations.FindByID(ctx, result.Revocation.ID)
		s.Require().NoError(err)
		s.Equal(reached, stored.DistributedTo)
	})

	s.Run("distribution failure does not fail revocation", func() {
		distributor := mocks.NewMockDistributor(ctrl)
		s.withCollaborators(WithDistributor(distributor))
		c := s.issue()

		distributor.EXPECT().Distribute(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "brokers unreachable"))

		result, err := s.service.Revoke(ctx, models.RevokeRequest{
			CredentialID: c.ID,
			RevokedBy:    "registrar",
			Reason:       "policy",
		})
		s.Require().NoError(err)
		s.Empty(result.Revocation.DistributedTo)
	})
}

func (s *ServiceSuite) TestTransitionPeerDirectory() {
	ctx := context.Background()
	ctrl := gomock.NewController(s.T())

	peers := []id.NodeID{id.NewNodeID()}
	directory := mocks.NewMockPeerDirectory(ctrl)
	s.withCollaborators(WithPeerDirectory(directory))
	c := s.issue()

	revoked, err := s.service.Revoke(ctx, models.RevokeRequest{
		CredentialID:    c.ID,
		RevokedBy:       "registrar",
		Reason:          "graduation",
		AllowTransition: true,
	})
	s.Require().NoError(err)

	directory.EXPECT().TransitionedPeers(gomock.Any()).Return(peers)

	result, err := s.service.ProcessNetworkTransition(ctx, models.TransitionRequest{
		RevocationID:   revoked.Revocation.ID,
		PeerAuthorized: true,
	})
	s.Require().NoError(err)
	s.Require().True(result.Approved)
	s.Equal(peers, result.PeerConnections)
}
