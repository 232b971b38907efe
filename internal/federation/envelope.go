// Package federation carries messages between trust networks: the wire
// envelope, the type-dispatching router, the peer connection registry, and
// the negotiation ledger.
package federation

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"time"

	"fides/internal/signer"
	id "fides/pkg/domain"
	dErrors "fides/pkg/domain-errors"
)

// MessageType tags a federation envelope. Dispatch is by exact match.
type MessageType string

const (
	TypeCredentialTransfer MessageType = "credential_transfer"
	TypeNegotiation        MessageType = "negotiation"
	TypePolicyTeaching     MessageType = "policy_teaching"
	TypeEscalation         MessageType = "escalation"
	TypeRevocation         MessageType = "revocation"
)

// Valid reports whether the type is one of the five routable types.
func (t MessageType) Valid() bool {
	switch t {
	case TypeCredentialTransfer, TypeNegotiation, TypePolicyTeaching,
		TypeEscalation, TypeRevocation:
		return true
	}
	return false
}

// Envelope is the wire form of a federation message. The signature covers
// message id, type, sender, recipient, and payload; Delivered belongs to
// the transport layer and is never set by handlers.
type Envelope struct {
	MessageID id.MessageID    `json:"message_id"`
	Type      MessageType     `json:"message_type"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Payload   json.RawMessage `json:"payload"`
	Signature []byte          `json:"signature"`
	Timestamp time.Time       `json:"timestamp"`
	Delivered bool            `json:"delivered"`
}

// Sign sets the envelope signature using the sender's key.
func (e *Envelope) Sign(key ed25519.PrivateKey) {
	e.Signature = ed25519.Sign(key, signer.EnvelopeDigest(e.MessageID, string(e.Type), e.From, e.To, e.Payload))
}

// VerifySignature checks the envelope signature against the sender's key.
func (e *Envelope) VerifySignature(key ed25519.PublicKey) bool {
	if len(key) != ed25519.PublicKeySize || len(e.Signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(key, signer.EnvelopeDigest(e.MessageID, string(e.Type), e.From, e.To, e.Payload), e.Signature)
}

// Payload variants, one schema per message type. Payloads are decoded only
// after the type tag has been checked; there is no open-ended field bag.

// CredentialTransferPayload presents a credential issued by the sending
// network for verification against its current signature state.
type CredentialTransferPayload struct {
	CredentialID       id.CredentialID `json:"credential_id"`
	IdentityHash       string          `json:"identity_hash"`
	EvolutionCounter   uint64          `json:"evolution_counter"`
	EvolutionKey       string          `json:"evolution_key"`
	FingerprintText    string          `json:"fingerprint_text"`
	FingerprintImage   string          `json:"fingerprint_image"`
	FingerprintAudio   string          `json:"fingerprint_audio"`
	FingerprintObject  string          `json:"fingerprint_object"`
	RequiredCapability string          `json:"required_capability,omitempty"`
	RequiredTier       int             `json:"required_tier,omitempty"`
}

// NegotiationPayload opens or advances a negotiation between networks.
type NegotiationPayload struct {
	NegotiationID id.NegotiationID `json:"negotiation_id,omitempty"`
	Topic         string           `json:"topic"`
	Proposal      string           `json:"proposal"`
	Accept        bool             `json:"accept"`
	Close         bool             `json:"close"`
}

// PolicyTeachingPayload asks the receiving network to evaluate an action
// context against a set of its laws and report the outcome.
type PolicyTeachingPayload struct {
	Action  string         `json:"action"`
	LawIDs  []int          `json:"law_ids"`
	Context map[string]any `json:"context"`
}

// EscalationPayload escalates a negotiation to out-of-band resolution.
type EscalationPayload struct {
	NegotiationID id.NegotiationID `json:"negotiation_id"`
	Reason        string           `json:"reason"`
}

// RevocationPayload notifies that a credential was revoked on the sending
// network.
type RevocationPayload struct {
	CredentialID id.CredentialID `json:"credential_id"`
	RevokedBy    string          `json:"revoked_by"`
	Reason       string          `json:"reason"`
	RevokedAt    time.Time       `json:"revoked_at"`
}

// DecodePayload decodes the envelope payload into the variant matching its
// type tag. An unknown type is an error here and everywhere downstream.
func DecodePayload(e Envelope) (any, error) {
	decode := func(v any) (any, error) {
		if err := json.Unmarshal(e.Payload, v); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest,
				fmt.Sprintf("malformed %s payload", e.Type))
		}
		return v, nil
	}
	switch e.Type {
	case TypeCredentialTransfer:
		return decode(&CredentialTransferPayload{})
	case TypeNegotiation:
		return decode(&NegotiationPayload{})
	case TypePolicyTeaching:
		return decode(&PolicyTeachingPayload{})
	case TypeEscalation:
		return decode(&EscalationPayload{})
	case TypeRevocation:
		return decode(&RevocationPayload{})
	default:
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown message type %q", e.Type)
	}
}
