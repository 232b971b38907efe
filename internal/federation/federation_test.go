package federation

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"fides/internal/credential/models"
	"fides/internal/credential/service"
	credstore "fides/internal/credential/store/credential"
	revstore "fides/internal/credential/store/revocation"
	"fides/internal/evolution"
	"fides/internal/law"
	"fides/internal/signer"
	id "fides/pkg/domain"
	dErrors "fides/pkg/domain-errors"
	"fides/pkg/platform/audit"
	auditmemory "fides/pkg/platform/audit/store/memory"
	"fides/pkg/requestcontext"
)

func TestEnvelopeSignature(t *testing.T) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	env := Envelope{
		MessageID: id.NewMessageID(),
		Type:      TypeNegotiation,
		From:      id.NewNodeID().String(),
		To:        id.NewNodeID().String(),
		Payload:   json.RawMessage(`{"topic":"drift-threshold","proposal":"0.6"}`),
		Timestamp: time.Now(),
	}
	env.Sign(private)
	require.True(t, env.VerifySignature(public))

	tampered := env
	tampered.Payload = json.RawMessage(`{"topic":"drift-threshold","proposal":"0.9"}`)
	require.False(t, tampered.VerifySignature(public))

	// Delivered is a transport flag, outside the signed fields.
	delivered := env
	delivered.Delivered = true
	require.True(t, delivered.VerifySignature(public))
}

func TestDecodePayload(t *testing.T) {
	t.Run("decodes the variant matching the tag", func(t *testing.T) {
		env := Envelope{
			Type:    TypePolicyTeaching,
			Payload: json.RawMessage(`{"action":"issue","law_ids":[1,5],"context":{"affectsHuman":true}}`),
		}
		payload, err := DecodePayload(env)
		require.NoError(t, err)

		p, ok := payload.(*PolicyTeachingPayload)
		require.True(t, ok)
		require.Equal(t, []int{1, 5}, p.LawIDs)
	})

	t.Run("unknown type is an explicit error", func(t *testing.T) {
		env := Envelope{Type: "gossip", Payload: json.RawMessage(`{}`)}
		_, err := DecodePayload(env)
		require.Error(t, err)
		require.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("malformed payload is rejected", func(t *testing.T) {
		env := Envelope{Type: TypeEscalation, Payload: json.RawMessage(`{`)}
		_, err := DecodePayload(env)
		require.Error(t, err)
	})
}

type RegistrySuite struct {
	suite.Suite
	registry *Registry
	audits   *auditmemory.InMemoryStore
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.audits = auditmemory.NewInMemoryStore()
	s.registry = NewRegistry(audit.NewPublisher(s.audits))
}

func (s *RegistrySuite) TestEnrollAndConnect() {
	ctx := context.Background()

	peer, secret, err := s.registry.Enroll(ctx, "north-campus", "north.example:7000", false)
	s.Require().NoError(err)
	s.False(peer.NodeID.IsNil())
	s.NotEmpty(secret)

	s.Run("connect with the issued secret", func() {
		s.Require().NoError(s.registry.Connect(ctx, peer.NodeID, secret))
		s.Len(s.registry.Connected(), 1)
	})

	s.Run("wrong secret is unauthorized", func() {
		err := s.registry.Connect(ctx, peer.NodeID, "not-the-secret")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unenrolled peer cannot connect", func() {
		err := s.registry.Connect(ctx, id.NewNodeID(), secret)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RegistrySuite) TestTransitionedPeers() {
	ctx := context.Background()

	institutional, instSecret, err := s.registry.Enroll(ctx, "campus", "campus:7000", false)
	s.Require().NoError(err)
	transitioned, peerSecret, err := s.registry.Enroll(ctx, "departed-agent", "", true)
	s.Require().NoError(err)

	s.True(transitioned.Restrictions.NoInstitutionalResourceAccess)
	s.True(transitioned.Restrictions.PeerMessagingAllowed)
	s.False(institutional.Restrictions.NoInstitutionalResourceAccess)

	s.Require().NoError(s.registry.Connect(ctx, institutional.NodeID, instSecret))
	s.Require().NoError(s.registry.Connect(ctx, transitioned.NodeID, peerSecret))

	peers := s.registry.TransitionedPeers(ctx)
	s.Require().Len(peers, 1)
	s.Equal(transitioned.NodeID, peers[0])
}

func (s *RegistrySuite) TestDisconnect() {
	ctx := context.Background()

	peer, secret, err := s.registry.Enroll(ctx, "campus", "campus:7000", false)
	s.Require().NoError(err)
	s.Require().NoError(s.registry.Connect(ctx, peer.NodeID, secret))

	s.registry.Disconnect(ctx, peer.NodeID)
	s.Empty(s.registry.Connected())

	// Repeat disconnects and unknown peers are no-ops.
	s.registry.Disconnect(ctx, peer.NodeID)
	s.registry.Disconnect(ctx, id.NewNodeID())

	entries, err := s.audits.ListRecent(ctx, 0)
	s.Require().NoError(err)
	var disconnects int
	for _, entry := range entries {
		if entry.Action == audit.ActionPeerDisconnected {
			disconnects++
		}
	}
	s.Equal(1, disconnects)
}

type LedgerSuite struct {
	suite.Suite
	ledger *Ledger
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ledger = NewLedger(audit.NewPublisher(auditmemory.NewInMemoryStore()))
}

func (s *LedgerSuite) TestLifecycle() {
	ctx := context.Background()
	peerID := id.NewNodeID()

	s.Run("open, advance, resolve", func() {
		n, err := s.ledger.Open(ctx, peerID, "drift-threshold", "lower to 0.6")
		s.Require().NoError(err)
		s.Equal(NegotiationOpen, n.State)

		n, err = s.ledger.Advance(ctx, n.ID, "meet at 0.65")
		s.Require().NoError(err)
		s.Equal("meet at 0.65", n.Proposal)

		n, err = s.ledger.Resolve(ctx, n.ID, true, "agreed at 0.65")
		s.Require().NoError(err)
		s.Equal(NegotiationAgreed, n.State)
	})

	s.Run("terminal negotiations reject further updates", func() {
		n, err := s.ledger.Open(ctx, peerID, "capability-exchange", "")
		s.Require().NoError(err)
		_, err = s.ledger.Resolve(ctx, n.ID, false, "no agreement")
		s.Require().NoError(err)

		_, err = s.ledger.Advance(ctx, n.ID, "retry")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("escalation closes the negotiation", func() {
		n, err := s.ledger.Open(ctx, peerID, "revocation-dispute", "")
		s.Require().NoError(err)

		n, err = s.ledger.Escalate(ctx, n.ID, "peer unresponsive")
		s.Require().NoError(err)
		s.Equal(NegotiationEscalated, n.State)
		s.Equal("peer unresponsive", n.Outcome)
	})

	s.Run("empty topic is rejected", func() {
		_, err := s.ledger.Open(ctx, peerID, "", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *LedgerSuite) TestSweep() {
	opened := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), opened)

	stale, err := s.ledger.Open(ctx, id.NewNodeID(), "stale-topic", "")
	s.Require().NoError(err)
	fresh, err := s.ledger.Open(requestcontext.WithTime(ctx, opened.Add(20*time.Hour)), id.NewNodeID(), "fresh-topic", "")
	s.Require().NoError(err)

	later := requestcontext.WithTime(ctx, opened.Add(25*time.Hour))
	s.Equal(1, s.ledger.Sweep(later))

	swept, ok := s.ledger.Get(stale.ID)
	s.Require().True(ok)
	s.Equal(NegotiationEscalated, swept.State)
	s.Equal("negotiation timed out", swept.Outcome)

	kept, ok := s.ledger.Get(fresh.ID)
	s.Require().True(ok)
	s.Equal(NegotiationOpen, kept.State)

	// A second sweep finds nothing: escalated negotiations stay closed.
	s.Equal(0, s.ledger.Sweep(later))
}

type RouterSuite struct {
	suite.Suite
	router      *Router
	credentials *service.Service
	ledger      *Ledger
	registry    *Registry
	issuerID    id.IssuerID
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.issuerID = id.NewIssuerID()
	keys, err := signer.NewStaticKeyProvider(s.issuerID)
	s.Require().NoError(err)

	publisher := audit.NewPublisher(auditmemory.NewInMemoryStore())
	engine, err := law.NewEngine(publisher)
	s.Require().NoError(err)

	s.credentials, err = service.New(
		credstore.New(), revstore.New(), engine, evolution.New(), keys, publisher)
	s.Require().NoError(err)

	s.ledger = NewLedger(publisher)
	s.registry = NewRegistry(publisher)
	s.router = NewRouter(publisher)
	s.router.RegisterDefaultHandlers(s.credentials, engine, s.ledger, s.registry)
}

func (s *RouterSuite) issue() models.Credential {
	result, err := s.credentials.Issue(context.Background(), models.IssueRequest{
		SubjectID:     id.NewSubjectID(),
		IssuerID:      s.issuerID,
		InstitutionID: id.NewInstitutionID(),
		Type:          models.TypeEnrollment,
		Tier:          1,
		Capabilities:  []string{"peer.message"},
		Signature: models.SignatureState{
			IdentityHash:     "hash-1",
			EvolutionCounter: 1,
			EvolutionKey:     "evo-1",
		},
		IssuerTier:         3,
		IssuerCapabilities: []string{"peer.message"},
	})
	s.Require().NoError(err)
	return result.Credential
}

func (s *RouterSuite) envelope(messageType MessageType, payload any) Envelope {
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)
	return Envelope{
		MessageID: id.NewMessageID(),
		Type:      messageType,
		From:      id.NewNodeID().String(),
		To:        id.NewNodeID().String(),
		Payload:   raw,
		Timestamp: time.Now(),
	}
}

func (s *RouterSuite) TestDispatch() {
	ctx := context.Background()

	s.Run("unknown message type is an explicit error", func() {
		env := s.envelope(TypeNegotiation, NegotiationPayload{Topic: "t"})
		env.Type = "gossip"
		_, err := s.router.Dispatch(ctx, env)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		s.Contains(err.Error(), "gossip")
	})

	s.Run("credential transfer verifies against the local store", func() {
		c := s.issue()
		response, err := s.router.Dispatch(ctx, s.envelope(TypeCredentialTransfer, CredentialTransferPayload{
			CredentialID:     c.ID,
			IdentityHash:     c.Signature.IdentityHash,
			EvolutionCounter: c.Signature.EvolutionCounter,
			EvolutionKey:     c.Signature.EvolutionKey,
		}))
		s.Require().NoError(err)

		result, ok := response.(models.VerificationResult)
		s.Require().True(ok)
		s.True(result.Allowed)
	})

	s.Run("revocation notice revokes the credential", func() {
		c := s.issue()
		_, err := s.router.Dispatch(ctx, s.envelope(TypeRevocation, RevocationPayload{
			CredentialID: c.ID,
			RevokedBy:    "peer-network",
			Reason:       "revoked at origin",
		}))
		s.Require().NoError(err)

		stored, err := s.credentials.GetCredential(ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusRevoked, stored.Status)
	})

	s.Run("repeated revocation notice is not an error", func() {
		c := s.issue()
		env := s.envelope(TypeRevocation, RevocationPayload{
			CredentialID: c.ID, RevokedBy: "peer-network", Reason: "revoked at origin",
		})
		_, err := s.router.Dispatch(ctx, env)
		s.Require().NoError(err)
		_, err = s.router.Dispatch(ctx, env)
		s.Require().NoError(err)
	})

	s.Run("policy teaching evaluates the requested laws", func() {
		response, err := s.router.Dispatch(ctx, s.envelope(TypePolicyTeaching, PolicyTeachingPayload{
			Action: "peer_action",
			LawIDs: []int{law.LawRightToChoose},
			Context: map[string]any{
				"affectsHuman": true,
				"humanConsent": false,
			},
		}))
		s.Require().NoError(err)

		result, ok := response.(law.Result)
		s.Require().True(ok)
		s.False(result.Compliant)
	})

	s.Run("negotiation from an enrolled peer opens a ledger entry", func() {
		peer, _, err := s.registry.Enroll(ctx, "south-campus", "", false)
		s.Require().NoError(err)

		env := s.envelope(TypeNegotiation, NegotiationPayload{Topic: "drift", Proposal: "0.6"})
		env.From = peer.NodeID.String()
		response, err := s.router.Dispatch(ctx, env)
		s.Require().NoError(err)

		opened, ok := response.(Negotiation)
		s.Require().True(ok)
		s.Equal(NegotiationOpen, opened.State)

		escalated, err := s.router.Dispatch(ctx, s.envelope(TypeEscalation, EscalationPayload{
			NegotiationID: opened.ID,
			Reason:        "cannot agree",
		}))
		s.Require().NoError(err)
		s.Equal(NegotiationEscalated, escalated.(Negotiation).State)
	})

	s.Run("negotiation from an unenrolled sender is rejected", func() {
		_, err := s.router.Dispatch(ctx, s.envelope(TypeNegotiation, NegotiationPayload{Topic: "drift"}))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("missing message id is rejected", func() {
		env := s.envelope(TypeNegotiation, NegotiationPayload{Topic: "drift"})
		env.MessageID = id.MessageID{}
		_, err := s.router.Dispatch(ctx, env)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
