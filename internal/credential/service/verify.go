package service

import (
	"context"
	"fmt"

	"fides/internal/credential/models"
	"fides/internal/evolution"
	"fides/internal/signer"
	dErrors "fides/pkg/domain-errors"
	"fides/pkg/platform/audit"
	"fides/pkg/requestcontext"
)

// VerifyAccess runs the six independent access checks against a credential.
// All six are evaluated on every call, never short-circuited, so a denial
// carries every reason at once. The credential's evolution record is
// updated under the per-credential lock regardless of outcome: history must
// reflect every attempt, not only successes.
//
// A denial is not an error. Errors are reserved for missing credentials and
// infrastructure failures.
func (s *Service) VerifyAccess(ctx context.Context, req models.VerifyRequest) (models.VerificationResult, error) {
	ctx, span := s.tracer.Start(ctx, "credential.verify")
	defer span.End()

	start := requestcontext.Now(ctx)

	if req.CredentialID.IsNil() {
		return models.VerificationResult{}, dErrors.New(dErrors.CodeInvalidInput, "credential id is required")
	}

	// The issuer id is immutable, so the verification key can be resolved
	// before taking the credential lock. Key lookup and the shared
	// revocation list are the only potentially remote calls here; neither
	// may run while the lock is held.
	preliminary, err := s.credentials.FindByID(ctx, req.CredentialID)
	if err != nil {
		return models.VerificationResult{}, dErrors.Wrap(err, dErrors.CodeNotFound, "credential not found")
	}
	issuerKey, err := s.keys.PublicKey(ctx, preliminary.IssuerID)
	if err != nil {
		return models.VerificationResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "issuer key unavailable")
	}

	listRevoked := false
	if s.crl != nil {
		listRevoked, err = s.crl.IsRevoked(ctx, req.CredentialID)
		if err != nil {
			// The durable store remains authoritative; a list outage only
			// costs the cross-instance fast path.
			s.logger.WarnContext(ctx, "revocation list check failed",
				"error", err, "credential_id", req.CredentialID.String())
			listRevoked = false
		}
	}

	var (
		checks     models.VerificationChecks
		assessment evolution.Assessment
		drift      float64
		inactive   string
	)

	updated, err := s.credentials.Execute(ctx, req.CredentialID, nil,
		func(c *models.Credential) {
			now := requestcontext.Now(ctx)

			checks.CredentialValid = signer.VerifyCredential(
				issuerKey, c.ID, c.SubjectID, c.Signature.IdentityHash, c.CryptoSignature)

			switch {
			case listRevoked && c.Status != models.StatusRevoked:
				// Another instance revoked first; our store copy is stale.
				inactive = "revoked elsewhere in the network"
			case c.Status != models.StatusActive:
				inactive = fmt.Sprintf("credential status is %s", c.Status)
			case !c.ActiveAt(now):
				inactive = "credential has expired"
			}
			checks.CredentialActive = inactive == ""

			checks.SignatureMatches = req.Signature.IdentityHash == c.Signature.IdentityHash

			assessment = s.verifier.Assess(c.Signature, c.Evolution.CurrentCounter, req.Signature)
			checks.EvolutionLegitimate = assessment.Legitimate

			drift = s.verifier.Drift(c.Signature.Fingerprints, req.Signature.Fingerprints)
			checks.DriftAcceptable = drift <= c.Evolution.ReverificationThreshold

			checks.CapabilityGranted = true
			if req.RequiredCapability != "" && !c.HasCapability(req.RequiredCapability) {
				checks.CapabilityGranted = false
			}
			if req.RequiredTier > 0 && c.Tier < req.RequiredTier {
				checks.CapabilityGranted = false
			}

			flagged := !checks.SignatureMatches || !checks.EvolutionLegitimate || !checks.DriftAcceptable
			c.Evolution.RecordAttempt(now, req.Signature.EvolutionCounter, drift, flagged)
		})
	if err != nil {
		return models.VerificationResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "update evolution record")
	}

	result := models.VerificationResult{
		Allowed:             checks.All(),
		Checks:              checks,
		Drift:               drift,
		NeedsReverification: updated.Evolution.NeedsReverification,
		Reasons:             denialReasons(checks, assessment, drift, inactive, req),
	}

	action := audit.ActionAccessVerified
	outcome := audit.ResultSuccess
	if !result.Allowed {
		action = audit.ActionAccessDenied
		outcome = audit.ResultDenied
	}
	auditID, err := s.publisher.Emit(ctx, audit.Entry{
		ActorID:    updated.SubjectID.String(),
		Action:     action,
		SubjectID:  updated.SubjectID.String(),
		ResourceID: updated.ID.String(),
		Result:     outcome,
		Metadata: map[string]string{
			"drift":                fmt.Sprintf("%.4f", drift),
			"needs_reverification": boolString(result.NeedsReverification),
		},
	})
	if err != nil {
		return models.VerificationResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "record verification")
	}
	result.AuditID = auditID

	s.metrics.ObserveVerification(result.Allowed, drift, requestcontext.Now(ctx).Sub(start))
	if !result.Allowed {
		s.logger.InfoContext(ctx, "access denied",
			"credential_id", updated.ID.String(),
			"reasons", len(result.Reasons),
		)
	}
	return result, nil
}

// denialReasons turns failed checks into the structured reason list. Each
// failed check contributes exactly one reason with its own code, so callers
// can distinguish an identity substitution from a drift threshold breach.
func denialReasons(
	checks models.VerificationChecks,
	assessment evolution.Assessment,
	drift float64,
	inactive string,
	req models.VerifyRequest,
) []models.Reason {
	var reasons []models.Reason
	if !checks.CredentialValid {
		reasons = append(reasons, models.Reason{
			Code:   models.ReasonCredentialInvalid,
			Detail: "cryptographic signature does not verify against the issuer key",
		})
	}
	if !checks.CredentialActive {
		reasons = append(reasons, models.Reason{
			Code:   models.ReasonCredentialInactive,
			Detail: inactive,
		})
	}
	if !checks.SignatureMatches {
		reasons = append(reasons, models.Reason{
			Code:   models.ReasonIdentityMismatch,
			Detail: "presented identity hash does not match the credential snapshot",
		})
	}
	if !checks.EvolutionLegitimate {
		reasons = append(reasons, models.Reason{
			Code:   models.ReasonEvolutionIllegitimate,
			Detail: assessment.Detail,
		})
	}
	if !checks.DriftAcceptable {
		reasons = append(reasons, models.Reason{
			Code:   models.ReasonDriftExceeded,
			Detail: fmt.Sprintf("drift %.2f exceeds the reverification threshold", drift),
		})
	}
	if !checks.CapabilityGranted {
		detail := "credential does not grant the required capability"
		if req.RequiredCapability != "" {
			detail = fmt.Sprintf("credential does not grant capability %q", req.RequiredCapability)
		}
		reasons = append(reasons, models.Reason{
			Code:   models.ReasonCapabilityDenied,
			Detail: detail,
		})
	}
	return reasons
}
