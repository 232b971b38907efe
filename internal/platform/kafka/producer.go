// Package kafka wires the node to the federation event backbone: revoked
// credentials fan out to peers on the revocation topic, and security-category
// audit entries stream to the security topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"fides/internal/credential/models"
	"fides/internal/platform/config"
	id "fides/pkg/domain"
	"fides/pkg/platform/audit"
)

// PeerLister supplies the peer node ids a revocation notice should reach.
type PeerLister interface {
	ConnectedNodeIDs() []id.NodeID
}

// Producer publishes revocation notices and security audit events. Nil is a
// valid receiver for both publish methods, so an unconfigured Kafka setup
// degrades to a no-op.
type Producer struct {
	client *kgo.Client
	cfg    config.KafkaConfig
	peers  PeerLister
	logger *slog.Logger
}

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

func WithPeerLister(peers PeerLister) ProducerOption {
	return func(p *Producer) { p.peers = peers }
}

func WithLogger(logger *slog.Logger) ProducerOption {
	return func(p *Producer) { p.logger = logger }
}

// NewProducer connects to the brokers and ensures the topics exist. Returns
// nil if no brokers are configured.
func NewProducer(ctx context.Context, cfg config.KafkaConfig, opts ...ProducerOption) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopics(ctx, client, cfg.RevocationTopic, cfg.SecurityTopic); err != nil {
		client.Close()
		return nil, err
	}

	p := &Producer{
		client: client,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ensureTopics creates the topics if missing. Existing topics are left
// untouched, whatever their partition count.
func ensureTopics(ctx context.Context, client *kgo.Client, topics ...string) error {
	adm := kadm.NewClient(client)
	existing, err := adm.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list kafka topics: %w", err)
	}
	for _, topic := range topics {
		if topic == "" || existing.Has(topic) {
			continue
		}
		if _, err := adm.CreateTopic(ctx, 3, 1, nil, topic); err != nil {
			return fmt.Errorf("create kafka topic %s: %w", topic, err)
		}
	}
	return nil
}

// revocationNotice is the wire form of a revocation fan-out message.
type revocationNotice struct {
	RevocationID string `json:"revocation_id"`
	CredentialID string `json:"credential_id"`
	RevokedBy    string `json:"revoked_by"`
	Reason       string `json:"reason"`
	RevokedAt    string `json:"revoked_at"`
}

// Distribute publishes the revocation to the revocation topic and reports
// the connected peers the notice targets. Implements the credential
// service's Distributor contract.
func (p *Producer) Distribute(ctx context.Context, revocation models.Revocation) ([]id.NodeID, error) {
	if p == nil {
		return nil, nil
	}

	value, err := json.Marshal(revocationNotice{
		RevocationID: revocation.ID.String(),
		CredentialID: revocation.CredentialID.String(),
		RevokedBy:    revocation.RevokedBy,
		Reason:       revocation.Reason,
		RevokedAt:    revocation.RevokedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("encode revocation notice: %w", err)
	}

	record := &kgo.Record{
		Topic: p.cfg.RevocationTopic,
		// Keyed by credential so all notices for one credential stay ordered.
		Key:   []byte(revocation.CredentialID.String()),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return nil, fmt.Errorf("produce revocation notice: %w", err)
	}

	if p.peers == nil {
		return nil, nil
	}
	return p.peers.ConnectedNodeIDs(), nil
}

// Publish streams a security audit entry to the security topic. Implements
// the audit publisher's Sink contract.
func (p *Producer) Publish(ctx context.Context, entry audit.Entry) error {
	if p == nil {
		return nil
	}

	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	record := &kgo.Record{
		Topic: p.cfg.SecurityTopic,
		Key:   []byte(entry.ActorID),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit entry: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying client.
func (p *Producer) Close() {
	if p == nil {
		return
	}
	p.client.Close()
}
