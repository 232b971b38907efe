// Package service implements the credential manager: issuance, access
// verification, revocation, and network transition, each gated by the law
// enforcement engine.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks CredentialStore,RevocationStore,RevocationList,Distributor,PeerDirectory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"fides/internal/credential/models"
	"fides/internal/evolution"
	"fides/internal/law"
	"fides/internal/signer"
	id "fides/pkg/domain"
	"fides/pkg/platform/audit"
)

// CredentialStore is the durable keyed storage for credentials. Execute must
// run the read-validate-mutate sequence atomically per credential; that is
// the serialization point for concurrent verification and revocation of the
// same credential.
type CredentialStore interface {
	Create(ctx context.Context, credential *models.Credential) error
	FindByID(ctx context.Context, credentialID id.CredentialID) (models.Credential, error)
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]models.Credential, error)
	Execute(ctx context.Context, credentialID id.CredentialID,
		validate func(*models.Credential) error,
		mutate func(*models.Credential)) (models.Credential, error)
}

// RevocationStore is the durable keyed storage for revocation records.
type RevocationStore interface {
	Create(ctx context.Context, revocation *models.Revocation) error
	FindByID(ctx context.Context, revocationID id.RevocationID) (models.Revocation, error)
	FindByCredential(ctx context.Context, credentialID id.CredentialID) (models.Revocation, error)
	Execute(ctx context.Context, revocationID id.RevocationID,
		validate func(*models.Revocation) error,
		mutate func(*models.Revocation)) (models.Revocation, error)
}

// RevocationList is the shared fast-path revocation check (Redis in
// production). Optional: a nil list degrades to store-only checks.
type RevocationList interface {
	MarkRevoked(ctx context.Context, credentialID id.CredentialID, expiresAt *time.Time) error
	IsRevoked(ctx context.Context, credentialID id.CredentialID) (bool, error)
}

// Distributor fans a revocation out to federation peers (Kafka in
// production) and reports which peers it reached. Optional.
type Distributor interface {
	Distribute(ctx context.Context, revocation models.Revocation) ([]id.NodeID, error)
}

// PeerDirectory lists the transitioned peer identities a newly transitioned
// holder may connect to. Optional.
type PeerDirectory interface {
	TransitionedPeers(ctx context.Context) []id.NodeID
}

// Service is the credential manager.
type Service struct {
	credentials CredentialStore
	revocations RevocationStore
	engine      *law.Engine
	verifier    *evolution.Verifier
	keys        signer.KeyProvider

	crl         RevocationList
	distributor Distributor
	peers       PeerDirectory

	publisher *audit.Publisher
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer

	defaultThreshold float64
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRevocationList attaches the shared revocation list.
func WithRevocationList(crl RevocationList) Option {
	return func(s *Service) { s.crl = crl }
}

// WithDistributor attaches the peer revocation distributor.
func WithDistributor(d Distributor) Option {
	return func(s *Service) { s.distributor = d }
}

// WithPeerDirectory attaches the transitioned-peer directory.
func WithPeerDirectory(p PeerDirectory) Option {
	return func(s *Service) { s.peers = p }
}

// WithDefaultReverificationThreshold overrides the drift threshold applied
// when an issue request does not carry one.
func WithDefaultReverificationThreshold(threshold float64) Option {
	return func(s *Service) {
		if threshold > 0 && threshold <= 1 {
			s.defaultThreshold = threshold
		}
	}
}

// DefaultReverificationThreshold is the drift level past which access is
// denied when the issuer does not configure one per credential.
const DefaultReverificationThreshold = 0.7

// New creates a credential manager. Stores, engine, verifier, key provider,
// and audit publisher are required.
func New(
	credentials CredentialStore,
	revocations RevocationStore,
	engine *law.Engine,
	verifier *evolution.Verifier,
	keys signer.KeyProvider,
	publisher *audit.Publisher,
	opts ...Option,
) (*Service, error) {
	if credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if revocations == nil {
		return nil, fmt.Errorf("revocation store is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("law engine is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("evolution verifier is required")
	}
	if keys == nil {
		return nil, fmt.Errorf("key provider is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("audit publisher is required")
	}

	s := &Service{
		credentials:      credentials,
		revocations:      revocations,
		engine:           engine,
		verifier:         verifier,
		keys:             keys,
		publisher:        publisher,
		logger:           slog.Default(),
		tracer:           otel.Tracer("fides/credential"),
		defaultThreshold: DefaultReverificationThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetCredential returns a credential by id.
func (s *Service) GetCredential(ctx context.Context, credentialID id.CredentialID) (models.Credential, error) {
	return s.credentials.FindByID(ctx, credentialID)
}

// GetRevocation returns a revocation record by id.
func (s *Service) GetRevocation(ctx context.Context, revocationID id.RevocationID) (models.Revocation, error) {
	return s.revocations.FindByID(ctx, revocationID)
}

// GetRevocationByCredential returns the revocation record for a credential,
// if one exists.
func (s *Service) GetRevocationByCredential(ctx context.Context, credentialID id.CredentialID) (models.Revocation, error) {
	return s.revocations.FindByCredential(ctx, credentialID)
}
