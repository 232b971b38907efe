package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"fides/internal/credential/models"
	"fides/internal/credential/service"
	credstore "fides/internal/credential/store/credential"
	revstore "fides/internal/credential/store/revocation"
	"fides/internal/evolution"
	"fides/internal/federation"
	"fides/internal/law"
	"fides/internal/signer"
	id "fides/pkg/domain"
	"fides/pkg/platform/audit"
	auditmemory "fides/pkg/platform/audit/store/memory"
	"fides/pkg/testutil"
)

const testAdminToken = "test-admin-token"

type HandlersSuite struct {
	suite.Suite
	server   http.Handler
	issuerID id.IssuerID
	registry *federation.Registry
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	s.issuerID = id.NewIssuerID()
	keys, err := signer.NewStaticKeyProvider(s.issuerID)
	s.Require().NoError(err)

	publisher := audit.NewPublisher(auditmemory.NewInMemoryStore())
	engine, err := law.NewEngine(publisher)
	s.Require().NoError(err)

	credentials, err := service.New(
		credstore.New(), revstore.New(), engine, evolution.New(), keys, publisher)
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.registry = federation.NewRegistry(publisher)
	ledger := federation.NewLedger(publisher)
	router := federation.NewRouter(publisher)
	router.RegisterDefaultHandlers(credentials, engine, ledger, s.registry)

	s.server = NewRouter(Deps{
		Credentials: NewCredentialHandler(credentials, logger),
		Laws:        NewLawHandler(engine, logger),
		Federation:  NewFederationHandler(router, s.registry, publisher, logger),
		AdminToken:  testAdminToken,
		Logger:      logger,
	})
}

func (s *HandlersSuite) do(method, path string, body any, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	for _, opt := range opts {
		opt(req)
	}
	return testutil.DoRequest(s.server, req)
}

func (s *HandlersSuite) issueBody() models.IssueRequest {
	return models.IssueRequest{
		SubjectID:     id.NewSubjectID(),
		IssuerID:      s.issuerID,
		InstitutionID: id.NewInstitutionID(),
		Type:          models.TypeEnrollment,
		Tier:          1,
		Capabilities:  []string{"course.read"},
		Signature: models.SignatureState{
			IdentityHash:     "hash-1",
			EvolutionCounter: 1,
			EvolutionKey:     "evo-1",
		},
		IssuerTier:         3,
		IssuerCapabilities: []string{"course.read"},
	}
}

func (s *HandlersSuite) issue() models.Credential {
	rec := s.do(http.MethodPost, "/credentials", s.issueBody())
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var result models.IssueResult
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&result))
	return result.Credential
}

func (s *HandlersSuite) TestCredentialLifecycle() {
	c := s.issue()

	rec := s.do(http.MethodPost, "/credentials/verify", models.VerifyRequest{
		CredentialID: c.ID,
		Signature: models.SignatureState{
			IdentityHash:     c.Signature.IdentityHash,
			EvolutionCounter: c.Signature.EvolutionCounter,
			EvolutionKey:     c.Signature.EvolutionKey,
		},
	})
	s.Require().Equal(http.StatusOK, rec.Code)

	var verification models.VerificationResult
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&verification))
	s.True(verification.Allowed)

	rec = s.do(http.MethodPost, fmt.Sprintf("/credentials/%s/revoke", c.ID), models.RevokeRequest{
		RevokedBy:       "registrar",
		Reason:          "graduation",
		AllowTransition: true,
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var revoked models.RevokeResult
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&revoked))
	s.True(revoked.Revocation.PreserveSignature)

	// The transition request names only the revocation and node type; the
	// allowed revocation itself carries the peer consent.
	rec = s.do(http.MethodPost, "/transitions", models.TransitionRequest{
		RevocationID:      revoked.Revocation.ID,
		RequestedNodeType: "peer",
	})
	s.Require().Equal(http.StatusOK, rec.Code)

	var transition models.TransitionResult
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&transition))
	s.True(transition.Approved)
	s.Equal(models.SignatureActive, transition.SignatureStatus)
	s.True(transition.Restrictions.NoKnowledgeRepositoryAccess)

	// Revoking again conflicts.
	rec = s.do(http.MethodPost, fmt.Sprintf("/credentials/%s/revoke", c.ID), models.RevokeRequest{
		RevokedBy: "registrar", Reason: "again",
	})
	s.Equal(http.StatusConflict, rec.Code)
	testutil.AssertErrorCode(s.T(), rec, "conflict")
}

func (s *HandlersSuite) TestIssueLawViolation() {
	body := s.issueBody()
	body.AffectsHuman = true
	body.HumanConsent = false

	rec := s.do(http.MethodPost, "/credentials", body)
	s.Require().Equal(http.StatusForbidden, rec.Code)

	var resp struct {
		Error      string          `json:"error"`
		Violations []law.Violation `json:"violations"`
		AuditID    string          `json:"audit_id"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal("forbidden", resp.Error)
	s.Require().Len(resp.Violations, 1)
	s.Equal(law.LawRightToChoose, resp.Violations[0].LawID)
	s.NotEmpty(resp.AuditID)
}

func (s *HandlersSuite) TestLawEndpoints() {
	rec := s.do(http.MethodGet, "/laws", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var laws []lawDescription
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&laws))
	s.Len(laws, 11)

	rec = s.do(http.MethodPost, "/laws/check", checkRequest{
		Action:  "custom_action",
		ActorID: "operator-1",
		LawIDs:  []int{law.LawDataConsent, 99},
		Context: map[string]any{"involvesData": true},
	})
	s.Require().Equal(http.StatusOK, rec.Code)

	var result law.Result
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&result))
	s.False(result.Compliant)
	s.Equal([]int{99}, result.Skipped)
}

func (s *HandlersSuite) TestFederationMessage() {
	rec := s.do(http.MethodPost, "/federation/messages", federation.Envelope{
		MessageID: id.NewMessageID(),
		Type:      "gossip",
		Payload:   json.RawMessage(`{}`),
	})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "gossip")
}

func (s *HandlersSuite) TestPeerEnrollment() {
	withToken := func(r *http.Request) { r.Header.Set("X-Admin-Token", testAdminToken) }

	s.Run("enrollment requires the admin token", func() {
		rec := s.do(http.MethodPost, "/federation/peers", enrollRequest{Name: "peer"})
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("enroll then connect", func() {
		rec := s.do(http.MethodPost, "/federation/peers", enrollRequest{
			Name:         "north-campus",
			Address:      "north.example:7000",
			Transitioned: false,
		}, withToken)
		s.Require().Equal(http.StatusCreated, rec.Code)

		var enrolled enrollResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&enrolled))
		s.NotEmpty(enrolled.Secret)

		connectPath := fmt.Sprintf("/federation/peers/%s/connect", enrolled.Peer.NodeID)
		rec = s.do(http.MethodPost, connectPath, connectRequest{Secret: enrolled.Secret})
		s.Require().Equal(http.StatusNoContent, rec.Code)

		rec = s.do(http.MethodPost, connectPath, connectRequest{Secret: "wrong"})
		s.Equal(http.StatusUnauthorized, rec.Code)

		rec = s.do(http.MethodDelete, connectPath, nil)
		s.Equal(http.StatusNoContent, rec.Code)
	})
}

func (s *HandlersSuite) TestHealthAndAudit() {
	rec := s.do(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, rec.Code)

	s.issue()
	rec = s.do(http.MethodGet, "/audit/recent?limit=10", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var entries []audit.Entry
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&entries))
	s.NotEmpty(entries)

	rec = s.do(http.MethodGet, "/audit/recent?limit=essay", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}
