package service

import (
	"context"

	"fides/internal/credential/models"
	"fides/internal/law"
	"fides/internal/signer"
	id "fides/pkg/domain"
	dErrors "fides/pkg/domain-errors"
	"fides/pkg/platform/audit"
	pstrings "fides/pkg/platform/strings"
	"fides/pkg/requestcontext"
)

// Issue creates, signs, and stores a new credential. The issuance laws
// (consent, capability bounds, audit) must pass first; a denial surfaces as
// a LawViolationError carrying every violated law.
//
// Issuance is deliberately not idempotent: re-issuing for an already
// credentialed subject produces a new, distinct credential id.
func (s *Service) Issue(ctx context.Context, req models.IssueRequest) (models.IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "credential.issue")
	defer span.End()

	if err := validateIssueRequest(req); err != nil {
		return models.IssueResult{}, err
	}

	check, err := s.engine.Check(ctx, law.CheckRequest{
		ActorID:   req.IssuerID.String(),
		SubjectID: req.SubjectID.String(),
		LawIDs:    law.IssuanceLaws,
		Context:   issuanceLawContext(req),
	})
	if err != nil {
		return models.IssueResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "issuance law check failed")
	}
	if !check.Compliant {
		auditID := s.denialEntry(ctx, audit.ActionIssuanceDenied, req.IssuerID.String(), req.SubjectID.String(), "", check)
		return models.IssueResult{}, &LawViolationError{Violations: check.Violations, AuditID: auditID}
	}

	now := requestcontext.Now(ctx)
	credentialID := id.NewCredentialID()

	threshold := req.ReverificationThreshold
	if threshold <= 0 {
		threshold = s.defaultThreshold
	}

	snapshot := models.SignatureSnapshot{
		IdentityHash:     req.Signature.IdentityHash,
		PublicKey:        append([]byte(nil), req.Signature.PublicKey...),
		CapturedAt:       now,
		Reason:           snapshotReason(req.Type),
		EvolutionCounter: req.Signature.EvolutionCounter,
		EvolutionKey:     req.Signature.EvolutionKey,
		Fingerprints:     req.Signature.Fingerprints,
		DriftBaseline:    0,
	}

	key, err := s.keys.SigningKey(ctx)
	if err != nil {
		return models.IssueResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "signing key unavailable")
	}

	credential := models.Credential{
		ID:            credentialID,
		SubjectID:     req.SubjectID,
		IssuerID:      req.IssuerID,
		InstitutionID: req.InstitutionID,
		Type:          req.Type,
		Tier:          req.Tier,
		Role:          req.Role,
		Capabilities:  pstrings.DedupeAndTrim(req.Capabilities),
		Signature:     snapshot,
		Evolution: models.EvolutionRecord{
			CredentialID:            credentialID,
			CurrentCounter:          snapshot.EvolutionCounter,
			CurrentDrift:            0,
			LastVerified:            now,
			ReverificationThreshold: threshold,
			History: []models.EvolutionEvent{{
				Timestamp: now,
				Counter:   snapshot.EvolutionCounter,
				Drift:     0,
			}},
		},
		IssuedAt:        now,
		ExpiresAt:       req.ExpiresAt,
		Status:          models.StatusActive,
		CryptoSignature: signer.SignCredential(key, credentialID, req.SubjectID, snapshot.IdentityHash),
	}

	if err := s.credentials.Create(ctx, &credential); err != nil {
		return models.IssueResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "store credential")
	}

	auditID, err := s.publisher.Emit(ctx, audit.Entry{
		ActorID:     req.IssuerID.String(),
		Action:      audit.ActionCredentialIssued,
		SubjectID:   req.SubjectID.String(),
		ResourceID:  credentialID.String(),
		Result:      audit.ResultSuccess,
		LawsChecked: check.Checked,
		Metadata: map[string]string{
			"credential_type": string(req.Type),
			"law_check_audit": check.AuditID.String(),
		},
	})
	if err != nil {
		return models.IssueResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "record issuance")
	}

	s.metrics.ObserveIssued()
	s.logger.InfoContext(ctx, "credential issued",
		"credential_id", credentialID.String(),
		"subject_id", req.SubjectID.String(),
		"type", string(req.Type),
		"tier", req.Tier,
	)

	return models.IssueResult{Credential: credential, AuditID: auditID}, nil
}

func validateIssueRequest(req models.IssueRequest) error {
	if req.SubjectID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}
	if req.IssuerID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "issuer id is required")
	}
	if !req.Type.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown credential type %q", req.Type)
	}
	if req.Tier < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "tier must not be negative")
	}
	if req.Signature.IdentityHash == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "signature identity hash is required")
	}
	if req.Signature.EvolutionKey == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "signature evolution key is required")
	}
	if req.ReverificationThreshold < 0 || req.ReverificationThreshold > 1 {
		return dErrors.New(dErrors.CodeInvalidInput, "reverification threshold must be within [0,1]")
	}
	return nil
}

// issuanceLawContext maps the issue request onto the law context fields. The
// capability-bounds facts assert that the issuer holds at least the tier it
// is granting and every capability it is handing out.
func issuanceLawContext(req models.IssueRequest) law.Context {
	c := law.Context{
		"affectsHuman": req.AffectsHuman,
		"humanConsent": req.HumanConsent,
		"involvesData": req.InvolvesData,
		"dataConsent":  req.DataConsent,
		"requiredTier": req.Tier,
		"currentTier":  req.IssuerTier,
	}
	if missing := firstUngrantable(req.Capabilities, req.IssuerCapabilities); missing != "" {
		c["requiredCapability"] = missing
		c["availableCapabilities"] = req.IssuerCapabilities
	}
	return c
}

// firstUngrantable returns the first requested capability the issuer does
// not itself hold, or "" when all are grantable.
func firstUngrantable(requested, held []string) string {
	heldSet := make(map[string]struct{}, len(held))
	for _, capability := range held {
		heldSet[capability] = struct{}{}
	}
	for _, capability := range requested {
		if _, ok := heldSet[capability]; !ok {
			return capability
		}
	}
	return ""
}

func snapshotReason(t models.Type) models.SnapshotReason {
	switch t {
	case models.TypeEmployment:
		return models.ReasonEmployment
	case models.TypePromotion:
		return models.ReasonPromotion
	case models.TypeRole:
		return models.ReasonReVerification
	default:
		return models.ReasonEnrollment
	}
}
