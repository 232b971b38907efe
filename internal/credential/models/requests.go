package models

import (
	"time"

	id "fides/pkg/domain"
)

// IssueRequest asks the credential manager to issue a new credential. The
// Signature field is the subject's current signature state from the external
// signature source; the manager snapshots it as the drift baseline.
type IssueRequest struct {
	SubjectID     id.SubjectID     `json:"subject_id"`
	IssuerID      id.IssuerID      `json:"issuer_id"`
	InstitutionID id.InstitutionID `json:"institution_id"`
	Type          Type             `json:"type"`
	Tier          int              `json:"tier"`
	Role          string           `json:"role,omitempty"`
	Capabilities  []string         `json:"capabilities"`
	Signature     SignatureState   `json:"signature"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`

	// ReverificationThreshold overrides the configured default drift
	// threshold when positive.
	ReverificationThreshold float64 `json:"reverification_threshold,omitempty"`

	// Issuer authority facts, checked against the Capability Bounds law.
	IssuerTier         int      `json:"issuer_tier"`
	IssuerCapabilities []string `json:"issuer_capabilities"`

	// Consent facts, checked against the consent laws.
	AffectsHuman bool `json:"affects_human"`
	HumanConsent bool `json:"human_consent"`
	InvolvesData bool `json:"involves_data"`
	DataConsent  bool `json:"data_consent"`
}

// VerifyRequest asks whether a credential currently grants access. The
// Signature field is the subject's current signature state; RequiredTier and
// RequiredCapability describe what the requested action needs.
type VerifyRequest struct {
	CredentialID       id.CredentialID `json:"credential_id"`
	Signature          SignatureState  `json:"signature"`
	RequiredTier       int             `json:"required_tier,omitempty"`
	RequiredCapability string          `json:"required_capability,omitempty"`
}

// RevokeRequest revokes a credential. AllowTransition leaves a pending
// transition path to a peer identity on the revocation record.
type RevokeRequest struct {
	CredentialID    id.CredentialID `json:"credential_id"`
	RevokedBy       string          `json:"revoked_by"`
	Reason          string          `json:"reason"`
	AllowTransition bool            `json:"allow_transition"`
}

// TransitionRequest asks to downgrade a revoked credential's holder to a
// restricted peer-only network identity.
type TransitionRequest struct {
	RevocationID      id.RevocationID `json:"revocation_id"`
	RequestedNodeType string          `json:"requested_node_type"`
	PeerAuthorized    bool            `json:"peer_authorized"`
}

// ReasonCode distinguishes verification denial reasons.
type ReasonCode string

const (
	ReasonCredentialInvalid     ReasonCode = "credential_invalid"
	ReasonCredentialInactive    ReasonCode = "credential_inactive"
	ReasonIdentityMismatch      ReasonCode = "identity_mismatch"
	ReasonEvolutionIllegitimate ReasonCode = "evolution_illegitimate"
	ReasonDriftExceeded         ReasonCode = "drift_exceeded"
	ReasonCapabilityDenied      ReasonCode = "capability_denied"
	ReasonLawViolation          ReasonCode = "law_violation"
)

// Reason is one structured denial reason. Denials always carry the full
// reason list, never just the first.
type Reason struct {
	Code   ReasonCode `json:"code"`
	Detail string     `json:"detail"`
}

// VerificationChecks reports the six independent access checks. All are
// evaluated on every call; none short-circuits.
type VerificationChecks struct {
	CredentialValid     bool `json:"credential_valid"`
	CredentialActive    bool `json:"credential_active"`
	SignatureMatches    bool `json:"signature_matches"`
	EvolutionLegitimate bool `json:"evolution_legitimate"`
	DriftAcceptable     bool `json:"drift_acceptable"`
	CapabilityGranted   bool `json:"capability_granted"`
}

// All reports whether every check passed.
func (c VerificationChecks) All() bool {
	return c.CredentialValid && c.CredentialActive && c.SignatureMatches &&
		c.EvolutionLegitimate && c.DriftAcceptable && c.CapabilityGranted
}

// VerificationResult is the outcome of one access verification.
type VerificationResult struct {
	Allowed             bool               `json:"allowed"`
	Checks              VerificationChecks `json:"checks"`
	Drift               float64            `json:"drift"`
	NeedsReverification bool               `json:"needs_reverification"`
	Reasons             []Reason           `json:"reasons,omitempty"`
	AuditID             id.AuditID         `json:"audit_id"`
}

// IssueResult pairs the issued credential with its audit entry id.
type IssueResult struct {
	Credential Credential `json:"credential"`
	AuditID    id.AuditID `json:"audit_id"`
}

// RevokeResult pairs the revocation record with its audit entry id.
type RevokeResult struct {
	Revocation Revocation `json:"revocation"`
	AuditID    id.AuditID `json:"audit_id"`
}
