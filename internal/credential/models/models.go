// Package models defines the credential aggregate: the signed credential
// itself, the signature snapshot it is bound to, the evolution record that
// tracks drift from that snapshot, and the revocation record.
package models

import (
	"time"

	id "fides/pkg/domain"
	"fides/pkg/platform/sentinel"
)

// Type is the credential type, fixed at issuance.
type Type string

const (
	TypeEnrollment Type = "enrollment"
	TypeEmployment Type = "employment"
	TypeRole       Type = "role"
	TypePromotion  Type = "promotion"
)

// Valid reports whether the type is one of the issuable credential types.
func (t Type) Valid() bool {
	switch t {
	case TypeEnrollment, TypeEmployment, TypeRole, TypePromotion:
		return true
	}
	return false
}

// Status is the credential lifecycle state. Transitions are
// active→suspended→{active,revoked} or active→revoked; revoked is terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusRevoked   Status = "revoked"
)

// SnapshotReason records why a signature snapshot was captured.
type SnapshotReason string

const (
	ReasonEnrollment     SnapshotReason = "enrollment"
	ReasonEmployment     SnapshotReason = "employment"
	ReasonReVerification SnapshotReason = "re_verification"
	ReasonPromotion      SnapshotReason = "promotion"
)

// ModalFingerprints are the per-modality fingerprints of a multimodal
// signature. The core never computes these; it snapshots and compares what
// the signature source supplies.
type ModalFingerprints struct {
	Text   string `json:"text"`
	Image  string `json:"image"`
	Audio  string `json:"audio"`
	Object string `json:"object"`
}

// SignatureState is the current signature material for an identity as
// supplied by the external signature source.
type SignatureState struct {
	IdentityHash     string            `json:"identity_hash"`
	PublicKey        []byte            `json:"public_key"`
	EvolutionCounter uint64            `json:"evolution_counter"`
	EvolutionKey     string            `json:"evolution_key"`
	Fingerprints     ModalFingerprints `json:"fingerprints"`
}

// SignatureSnapshot is the immutable capture of an identity's signature at
// issuance time. Owned by exactly one credential; never mutated.
type SignatureSnapshot struct {
	IdentityHash     string            `json:"identity_hash"`
	PublicKey        []byte            `json:"public_key"`
	CapturedAt       time.Time         `json:"captured_at"`
	Reason           SnapshotReason    `json:"reason"`
	EvolutionCounter uint64            `json:"evolution_counter"`
	EvolutionKey     string            `json:"evolution_key"`
	Fingerprints     ModalFingerprints `json:"fingerprints"`
	DriftBaseline    float64           `json:"drift_baseline"`
}

// EvolutionEvent is one recorded verification attempt against the snapshot.
type EvolutionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Counter   uint64    `json:"counter"`
	Drift     float64   `json:"drift"`
	Flagged   bool      `json:"flagged"`
}

// EvolutionRecord tracks an identity's legitimate drift from its snapshot.
// Mutated on every verification attempt, allowed or not: history must
// reflect every attempt to support later forensics. Lifetime-bound to its
// credential.
type EvolutionRecord struct {
	CredentialID            id.CredentialID  `json:"credential_id"`
	CurrentCounter          uint64           `json:"current_counter"`
	CurrentDrift            float64          `json:"current_drift"`
	History                 []EvolutionEvent `json:"history"`
	LastVerified            time.Time        `json:"last_verified"`
	NeedsReverification     bool             `json:"needs_reverification"`
	ReverificationThreshold float64          `json:"reverification_threshold"`
}

// RecordAttempt appends a verification attempt and updates the current
// fields. The counter only moves forward; a lower presented counter is
// recorded in history (flagged) without regressing CurrentCounter.
func (r *EvolutionRecord) RecordAttempt(now time.Time, counter uint64, drift float64, flagged bool) {
	r.History = append(r.History, EvolutionEvent{
		Timestamp: now,
		Counter:   counter,
		Drift:     drift,
		Flagged:   flagged,
	})
	if counter > r.CurrentCounter {
		r.CurrentCounter = counter
	}
	r.CurrentDrift = drift
	r.LastVerified = now
	r.NeedsReverification = drift > r.ReverificationThreshold*reverificationWarningRatio
}

// reverificationWarningRatio is the fraction of the drift threshold past
// which re-verification is flagged. An early-warning signal, not a denial
// condition.
const reverificationWarningRatio = 0.8

// Credential binds an identity to a tier/role/capability set and a signature
// snapshot, under the issuer's cryptographic signature. Revoked credentials
// persist forever for audit.
type Credential struct {
	ID               id.CredentialID  `json:"id"`
	SubjectID        id.SubjectID     `json:"subject_id"`
	IssuerID         id.IssuerID      `json:"issuer_id"`
	InstitutionID    id.InstitutionID `json:"institution_id"`
	Type             Type             `json:"type"`
	Tier             int              `json:"tier"`
	Role             string           `json:"role,omitempty"`
	Capabilities     []string         `json:"capabilities"`
	Signature        SignatureSnapshot `json:"signature"`
	Evolution        EvolutionRecord  `json:"evolution"`
	IssuedAt         time.Time        `json:"issued_at"`
	ExpiresAt        *time.Time       `json:"expires_at,omitempty"`
	Status           Status           `json:"status"`
	CryptoSignature  []byte           `json:"crypto_signature"`
	RevokedAt        *time.Time       `json:"revoked_at,omitempty"`
	RevokedBy        string           `json:"revoked_by,omitempty"`
	RevocationReason string           `json:"revocation_reason,omitempty"`
}

// HasCapability reports whether the credential grants the named capability.
func (c *Credential) HasCapability(capability string) bool {
	for _, granted := range c.Capabilities {
		if granted == capability {
			return true
		}
	}
	return false
}

// ActiveAt reports whether the credential is usable at the given instant:
// status active and not past expiry.
func (c *Credential) ActiveAt(now time.Time) bool {
	if c.Status != StatusActive {
		return false
	}
	return c.ExpiresAt == nil || now.Before(*c.ExpiresAt)
}

// CanRevoke returns nil when the credential may be revoked.
func (c *Credential) CanRevoke() error {
	if c.Status == StatusRevoked {
		return sentinel.ErrInvalidState
	}
	return nil
}

// ApplyRevocation moves the credential to its terminal state. Irreversible.
func (c *Credential) ApplyRevocation(now time.Time, revokedBy, reason string) {
	c.Status = StatusRevoked
	c.RevokedAt = &now
	c.RevokedBy = revokedBy
	c.RevocationReason = reason
}

// Suspend pauses an active credential. Reversible via Reinstate.
func (c *Credential) Suspend() error {
	if c.Status != StatusActive {
		return sentinel.ErrInvalidState
	}
	c.Status = StatusSuspended
	return nil
}

// Reinstate returns a suspended credential to active. Revoked credentials
// never come back.
func (c *Credential) Reinstate() error {
	if c.Status != StatusSuspended {
		return sentinel.ErrInvalidState
	}
	c.Status = StatusActive
	return nil
}

// TransitionTarget is where a revoked holder's network identity may move.
type TransitionTarget string

const (
	TargetHome TransitionTarget = "home"
	TargetPeer TransitionTarget = "peer"
)

// SignatureStatus records whether a revoked credential's signature is still
// actively matched against elsewhere in the network.
type SignatureStatus string

const (
	SignatureActive   SignatureStatus = "active"
	SignatureArchived SignatureStatus = "archived"
)

// Revocation is the record created once per revoked credential.
// TransitionApproved flips false→true exactly once, by the network
// transition operation.
type Revocation struct {
	ID                 id.RevocationID  `json:"id"`
	CredentialID       id.CredentialID  `json:"credential_id"`
	RevokedBy          string           `json:"revoked_by"`
	Reason             string           `json:"reason"`
	RevokedAt          time.Time        `json:"revoked_at"`
	EffectiveAt        time.Time        `json:"effective_at"`
	TransitionTarget   TransitionTarget `json:"transition_target,omitempty"`
	TransitionApproved bool             `json:"transition_approved"`
	TransitionedAt     *time.Time       `json:"transitioned_at,omitempty"`
	PeerNodeID         id.NodeID        `json:"peer_node_id,omitempty"`
	PreserveSignature  bool             `json:"preserve_signature"`
	SignatureStatus    SignatureStatus  `json:"signature_status"`
	DistributedTo      []id.NodeID      `json:"distributed_to,omitempty"`
}

// Restrictions is the restriction set attached to a transitioned peer
// identity. Institutional resources and the knowledge repository are always
// off-limits; peer messaging with other transitioned identities is allowed.
type Restrictions struct {
	NoInstitutionalResourceAccess bool `json:"no_institutional_resource_access"`
	NoKnowledgeRepositoryAccess   bool `json:"no_knowledge_repository_access"`
	PeerMessagingAllowed          bool `json:"peer_messaging_allowed"`
}

// PeerRestrictions is the fixed restriction set for peer transitions.
func PeerRestrictions() Restrictions {
	return Restrictions{
		NoInstitutionalResourceAccess: true,
		NoKnowledgeRepositoryAccess:   true,
		PeerMessagingAllowed:          true,
	}
}

// TransitionResult is the derived, non-persistent outcome of a network
// transition request.
type TransitionResult struct {
	Approved        bool            `json:"approved"`
	NewNodeID       id.NodeID       `json:"new_node_id,omitempty"`
	SignatureStatus SignatureStatus `json:"signature_status"`
	PeerConnections []id.NodeID     `json:"peer_connections"`
	Restrictions    Restrictions    `json:"restrictions"`
	AuditID         id.AuditID      `json:"audit_id"`
}
