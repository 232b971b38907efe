// Package audit provides the append-only audit trail shared by the law
// engine, the credential manager, and the federation layer.
package audit

import (
	"time"

	id "fides/pkg/domain"
)

// EventCategory classifies audit entries by their primary purpose. This
// enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers entries with legal/regulatory significance.
	// These require tamper-proof storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers entries relevant to security monitoring and
	// forensics. These are fanned out to the security event stream.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers entries useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Result is the recorded outcome of the audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultDenied  Result = "denied"
)

// Entry is the immutable record of one checked action. The enforcement
// engine creates one on every law check regardless of outcome; lifecycle
// operations create them for issuance, verification, revocation, and
// transition. Entries are never mutated after emission.
type Entry struct {
	ID            id.AuditID
	ActorID       string
	Action        Action
	SubjectID     string
	ResourceID    string
	Result        Result
	LawsChecked   []int
	LawViolations []int
	Timestamp     time.Time
	Metadata      map[string]string
}

// Action names the audited operation.
type Action string

const (
	ActionLawCheck           Action = "law_check"
	ActionCredentialIssued   Action = "credential_issued"
	ActionIssuanceDenied     Action = "issuance_denied"
	ActionAccessVerified     Action = "access_verified"
	ActionAccessDenied       Action = "access_denied"
	ActionCredentialRevoked  Action = "credential_revoked"
	ActionRevocationDenied   Action = "revocation_denied"
	ActionTransitionApproved Action = "transition_approved"
	ActionTransitionDenied   Action = "transition_denied"
	ActionFederationMessage  Action = "federation_message"
	ActionPeerConnected      Action = "peer_connected"
	ActionPeerDisconnected   Action = "peer_disconnected"
	ActionNegotiationOpened  Action = "negotiation_opened"
	ActionNegotiationClosed  Action = "negotiation_closed"
)

// actionCategories maps each audited action to its category.
// Compliance: regulatory significance, long retention required.
// Security: forensics and alerting, fanned out to the event stream.
// Operations: routine activity, can be sampled.
var actionCategories = map[Action]EventCategory{
	ActionCredentialIssued:   CategoryCompliance,
	ActionCredentialRevoked:  CategoryCompliance,
	ActionTransitionApproved: CategoryCompliance,

	ActionIssuanceDenied:   CategorySecurity,
	ActionAccessDenied:     CategorySecurity,
	ActionRevocationDenied: CategorySecurity,
	ActionTransitionDenied: CategorySecurity,

	ActionLawCheck:           CategoryOperations,
	ActionAccessVerified:     CategoryOperations,
	ActionFederationMessage:  CategoryOperations,
	ActionPeerConnected:      CategoryOperations,
	ActionPeerDisconnected:   CategoryOperations,
	ActionNegotiationOpened:  CategoryOperations,
	ActionNegotiationClosed:  CategoryOperations,
}

// Category returns the EventCategory for this action. Unknown actions
// default to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}
