package service

import (
	"context"
	"errors"

	"fides/internal/credential/models"
	"fides/internal/law"
	id "fides/pkg/domain"
	dErrors "fides/pkg/domain-errors"
	"fides/pkg/platform/audit"
	"fides/pkg/platform/sentinel"
	"fides/pkg/requestcontext"
)

// ProcessNetworkTransition downgrades a revoked credential's holder to a
// restricted peer-only identity. Approval requires the revocation to have
// been armed with a peer transition target at revoke time, which carries
// the peer network's consent; a denial still returns the fixed restriction
// set so callers see what a peer identity would be limited to.
//
// The operation is idempotent in effect: repeated calls for an already
// transitioned revocation return the originally allocated node id instead
// of minting a second identity. The serialization point is the revocation
// store's per-record lock.
func (s *Service) ProcessNetworkTransition(ctx context.Context, req models.TransitionRequest) (models.TransitionResult, error) {
	ctx, span := s.tracer.Start(ctx, "credential.transition")
	defer span.End()

	if req.RevocationID.IsNil() {
		return models.TransitionResult{}, dErrors.New(dErrors.CodeInvalidInput, "revocation id is required")
	}

	armed, err := s.revocations.FindByID(ctx, req.RevocationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.TransitionResult{}, dErrors.Wrap(err, dErrors.CodeNotFound, "revocation not found")
		}
		return models.TransitionResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "load revocation")
	}

	// A revocation armed with a peer target carries the peer network's
	// consent, recorded when the revoker allowed the transition. The
	// request flag alone cannot grant it.
	peerAuthorized := req.PeerAuthorized || armed.TransitionTarget == models.TargetPeer

	check, err := s.engine.Check(ctx, law.CheckRequest{
		ResourceID: req.RevocationID.String(),
		LawIDs:     law.TransitionLaws,
		Context: law.Context{
			"credentialRevoked": true,
			"aiStillActing":     false,
			"crossNetwork":      true,
			"peerAuthorized":    peerAuthorized,
		},
	})
	if err != nil {
		return models.TransitionResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "transition law check failed")
	}
	if !check.Compliant {
		auditID := s.denialEntry(ctx, audit.ActionTransitionDenied, "", "", req.RevocationID.String(), check)
		return models.TransitionResult{}, &LawViolationError{Violations: check.Violations, AuditID: auditID}
	}

	var (
		alreadyDone bool
		denied      string
	)
	revocation, err := s.revocations.Execute(ctx, req.RevocationID, nil,
		func(r *models.Revocation) {
			if r.TransitionApproved {
				alreadyDone = true
				return
			}
			if r.TransitionTarget != models.TargetPeer {
				denied = "revocation does not permit a peer transition"
				return
			}
			if req.RequestedNodeType != "" && req.RequestedNodeType != string(models.TargetPeer) {
				denied = "only peer node transitions are supported"
				return
			}
			now := requestcontext.Now(ctx)
			r.TransitionApproved = true
			r.TransitionedAt = &now
			r.PeerNodeID = id.NewNodeID()
		})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.TransitionResult{}, dErrors.Wrap(err, dErrors.CodeNotFound, "revocation not found")
		}
		return models.TransitionResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "process transition")
	}

	result := models.TransitionResult{
		Approved:        denied == "",
		SignatureStatus: revocation.SignatureStatus,
		Restrictions:    models.PeerRestrictions(),
	}

	if result.Approved {
		result.NewNodeID = revocation.PeerNodeID
		if s.peers != nil {
			result.PeerConnections = s.peers.TransitionedPeers(ctx)
		}
	}

	action := audit.ActionTransitionApproved
	outcome := audit.ResultSuccess
	metadata := map[string]string{
		"law_check_audit": check.AuditID.String(),
		"repeat":          boolString(alreadyDone),
	}
	if !result.Approved {
		action = audit.ActionTransitionDenied
		outcome = audit.ResultDenied
		metadata["denial_reason"] = denied
	} else {
		metadata["peer_node_id"] = revocation.PeerNodeID.String()
	}
	auditID, err := s.publisher.Emit(ctx, audit.Entry{
		Action:     action,
		ResourceID: revocation.CredentialID.String(),
		Result:     outcome,
		Metadata:   metadata,
	})
	if err != nil {
		return models.TransitionResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "record transition")
	}
	result.AuditID = auditID

	if !alreadyDone {
		s.metrics.ObserveTransition(result.Approved)
	}
	s.logger.InfoContext(ctx, "network transition processed",
		"revocation_id", revocation.ID.String(),
		"approved", result.Approved,
		"repeat", alreadyDone,
	)

	return result, nil
}
