// Package domain defines the typed identifiers shared across subsystems.
//
// Each identifier is a distinct uuid-backed type so the compiler rejects
// cross-aggregate mixups (passing a SubjectID where a CredentialID is
// expected). Parse helpers enforce the invariant that identifiers are valid,
// non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "fides/pkg/domain-errors"
)

// CredentialID identifies an issued credential.
type CredentialID uuid.UUID

// SubjectID identifies the identity (human or AI) a credential is bound to.
type SubjectID uuid.UUID

// IssuerID identifies the node that signed a credential.
type IssuerID uuid.UUID

// InstitutionID identifies the institution a credential grants access within.
type InstitutionID uuid.UUID

// RevocationID identifies a revocation record.
type RevocationID uuid.UUID

// NodeID identifies a network identity (institutional or peer).
type NodeID uuid.UUID

// MessageID identifies a federation wire message.
type MessageID uuid.UUID

// NegotiationID identifies a federation negotiation.
type NegotiationID uuid.UUID

// AuditID identifies an audit entry.
type AuditID uuid.UUID

func (id CredentialID) String() string  { return uuid.UUID(id).String() }
func (id SubjectID) String() string     { return uuid.UUID(id).String() }
func (id IssuerID) String() string      { return uuid.UUID(id).String() }
func (id InstitutionID) String() string { return uuid.UUID(id).String() }
func (id RevocationID) String() string  { return uuid.UUID(id).String() }
func (id NodeID) String() string        { return uuid.UUID(id).String() }
func (id MessageID) String() string     { return uuid.UUID(id).String() }
func (id NegotiationID) String() string { return uuid.UUID(id).String() }
func (id AuditID) String() string       { return uuid.UUID(id).String() }

func (id CredentialID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id SubjectID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id IssuerID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id InstitutionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RevocationID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id NodeID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id MessageID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id NegotiationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AuditID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

// MarshalText/UnmarshalText keep the IDs as canonical UUID strings in JSON
// and database payloads rather than raw byte arrays.

func (id CredentialID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id SubjectID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id IssuerID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id InstitutionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id RevocationID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id NodeID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id MessageID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id NegotiationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id AuditID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }

func unmarshalUUID(text []byte) (uuid.UUID, error) {
	return uuid.ParseBytes(text)
}

func (id *CredentialID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text)
	*id = CredentialID(u)
	return err
}

func (id *SubjectID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text)
	*id = SubjectID(u)
	return err
}

func (id *IssuerID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text)
	*id = IssuerID(u)
	return err
}

func (id *InstitutionID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text)
	*id = InstitutionID(u)
	return err
}

func (id *RevocationID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text)
	*id = RevocationID(u)
	return err
}

func (id *NodeID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text)
	*id = NodeID(u)
	return err
}

func (id *MessageID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text)
	*id = MessageID(u)
	return err
}

func (id *NegotiationID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text)
	*id = NegotiationID(u)
	return err
}

func (id *AuditID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID(text)
	*id = AuditID(u)
	return err
}

// NewCredentialID allocates a fresh credential identifier.
func NewCredentialID() CredentialID { return CredentialID(uuid.New()) }

// NewSubjectID allocates a fresh subject identifier.
func NewSubjectID() SubjectID { return SubjectID(uuid.New()) }

// NewIssuerID allocates a fresh issuer identifier.
func NewIssuerID() IssuerID { return IssuerID(uuid.New()) }

// NewInstitutionID allocates a fresh institution identifier.
func NewInstitutionID() InstitutionID { return InstitutionID(uuid.New()) }

// NewRevocationID allocates a fresh revocation identifier.
func NewRevocationID() RevocationID { return RevocationID(uuid.New()) }

// NewNodeID allocates a fresh network identity.
func NewNodeID() NodeID { return NodeID(uuid.New()) }

// NewMessageID allocates a fresh federation message identifier.
func NewMessageID() MessageID { return MessageID(uuid.New()) }

// NewNegotiationID allocates a fresh negotiation identifier.
func NewNegotiationID() NegotiationID { return NegotiationID(uuid.New()) }

// NewAuditID allocates a fresh audit entry identifier.
func NewAuditID() AuditID { return AuditID(uuid.New()) }

func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be the nil UUID")
	}
	return parsed, nil
}

// ParseCredentialID parses and validates a credential identifier.
func ParseCredentialID(raw string) (CredentialID, error) {
	parsed, err := parseUUID(raw, "credential id")
	return CredentialID(parsed), err
}

// ParseSubjectID parses and validates a subject identifier.
func ParseSubjectID(raw string) (SubjectID, error) {
	parsed, err := parseUUID(raw, "subject id")
	return SubjectID(parsed), err
}

// ParseIssuerID parses and validates an issuer identifier.
func ParseIssuerID(raw string) (IssuerID, error) {
	parsed, err := parseUUID(raw, "issuer id")
	return IssuerID(parsed), err
}

// ParseRevocationID parses and validates a revocation identifier.
func ParseRevocationID(raw string) (RevocationID, error) {
	parsed, err := parseUUID(raw, "revocation id")
	return RevocationID(parsed), err
}

// ParseNodeID parses and validates a network node identifier.
func ParseNodeID(raw string) (NodeID, error) {
	parsed, err := parseUUID(raw, "node id")
	return NodeID(parsed), err
}

// ParseMessageID parses and validates a federation message identifier.
func ParseMessageID(raw string) (MessageID, error) {
	parsed, err := parseUUID(raw, "message id")
	return MessageID(parsed), err
}
