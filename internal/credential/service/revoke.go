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

// Revoke moves a credential to its terminal revoked state and creates the
// revocation record. Revocation is permanent; there is no un-revoke path.
// The signature snapshot is always preserved so past verifications stay
// auditable. When the revoker allows it, the record is marked for a later
// peer transition and the signature stays active for peer-side matching;
// otherwise the signature is archived immediately.
func (s *Service) Revoke(ctx context.Context, req models.RevokeRequest) (models.RevokeResult, error) {
	ctx, span := s.tracer.Start(ctx, "credential.revoke")
	defer span.End()

	if req.CredentialID.IsNil() {
		return models.RevokeResult{}, dErrors.New(dErrors.CodeInvalidInput, "credential id is required")
	}
	if req.RevokedBy == "" {
		return models.RevokeResult{}, dErrors.New(dErrors.CodeInvalidInput, "revoked_by is required")
	}
	if req.Reason == "" {
		return models.RevokeResult{}, dErrors.New(dErrors.CodeInvalidInput, "reason is required")
	}

	check, err := s.engine.Check(ctx, law.CheckRequest{
		ActorID:    req.RevokedBy,
		ResourceID: req.CredentialID.String(),
		LawIDs:     law.RevocationLaws,
		Context: law.Context{
			// Revocation itself satisfies revocability: once this call
			// completes the holder is no longer acting under the credential.
			"credentialRevoked": true,
			"aiStillActing":     false,
		},
	})
	if err != nil {
		return models.RevokeResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "revocation law check failed")
	}
	if !check.Compliant {
		auditID := s.denialEntry(ctx, audit.ActionRevocationDenied, req.RevokedBy, "", req.CredentialID.String(), check)
		return models.RevokeResult{}, &LawViolationError{Violations: check.Violations, AuditID: auditID}
	}

	credential, err := s.credentials.Execute(ctx, req.CredentialID,
		func(c *models.Credential) error { return c.CanRevoke() },
		func(c *models.Credential) {
			c.ApplyRevocation(requestcontext.Now(ctx), req.RevokedBy, req.Reason)
		})
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return models.RevokeResult{}, dErrors.Wrap(err, dErrors.CodeConflict, "credential is already revoked")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.RevokeResult{}, dErrors.Wrap(err, dErrors.CodeNotFound, "credential not found")
		}
		return models.RevokeResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "revoke credential")
	}

	now := requestcontext.Now(ctx)
	revocation := models.Revocation{
		ID:                 id.NewRevocationID(),
		CredentialID:       credential.ID,
		RevokedBy:          req.RevokedBy,
		Reason:             req.Reason,
		RevokedAt:          now,
		EffectiveAt:        now,
		TransitionApproved: false,
		PreserveSignature:  true,
		SignatureStatus:    models.SignatureArchived,
	}
	if req.AllowTransition {
		// The signature stays active so peer networks can keep matching
		// against it until the transition is decided.
		revocation.TransitionTarget = models.TargetPeer
		revocation.SignatureStatus = models.SignatureActive
	}

	if err := s.revocations.Create(ctx, &revocation); err != nil {
		return models.RevokeResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "store revocation")
	}

	if s.crl != nil {
		if err := s.crl.MarkRevoked(ctx, credential.ID, credential.ExpiresAt); err != nil {
			// Store state is authoritative; other instances fall back to it.
			s.logger.WarnContext(ctx, "revocation list update failed",
				"error", err, "credential_id", credential.ID.String())
		}
	}

	if s.distributor != nil {
		reached, err := s.distributor.Distribute(ctx, revocation)
		if err != nil {
			s.logger.WarnContext(ctx, "revocation distribution failed",
				"error", err, "revocation_id", revocation.ID.String())
		} else if len(reached) > 0 {
			revocation, err = s.revocations.Execute(ctx, revocation.ID, nil,
				func(r *models.Revocation) { r.DistributedTo = reached })
			if err != nil {
				return models.RevokeResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "record distribution")
			}
		}
	}

	auditID, err := s.publisher.Emit(ctx, audit.Entry{
		ActorID:     req.RevokedBy,
		Action:      audit.ActionCredentialRevoked,
		SubjectID:   credential.SubjectID.String(),
		ResourceID:  credential.ID.String(),
		Result:      audit.ResultSuccess,
		LawsChecked: check.Checked,
		Metadata: map[string]string{
			"revocation_id":    revocation.ID.String(),
			"reason":           req.Reason,
			"allow_transition": boolString(req.AllowTransition),
			"signature_status": string(revocation.SignatureStatus),
			"law_check_audit":  check.AuditID.String(),
		},
	})
	if err != nil {
		return models.RevokeResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "record revocation")
	}

	s.metrics.ObserveRevoked()
	s.logger.InfoContext(ctx, "credential revoked",
		"credential_id", credential.ID.String(),
		"revocation_id", revocation.ID.String(),
		"allow_transition", req.AllowTransition,
	)

	return models.RevokeResult{Revocation: revocation, AuditID: auditID}, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
