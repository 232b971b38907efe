package federation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fides/internal/credential/models"
	"fides/internal/federation/secrets"
	id "fides/pkg/domain"
	dErrors "fides/pkg/domain-errors"
	"fides/pkg/platform/audit"
	"fides/pkg/requestcontext"
)

// Peer is one enrolled network node. Transitioned peers carry the fixed
// peer restriction set; institutional nodes carry none.
type Peer struct {
	NodeID       id.NodeID           `json:"node_id"`
	Name         string              `json:"name"`
	Address      string              `json:"address"`
	Transitioned bool                `json:"transitioned"`
	Restrictions models.Restrictions `json:"restrictions"`
	EnrolledAt   time.Time           `json:"enrolled_at"`

	secretHash string
}

// Registry is the owned, lock-guarded peer connection table. Created at
// service start, injected into handlers, drained at shutdown. Connect,
// Disconnect, and iteration are all safe under concurrent use.
type Registry struct {
	publisher *audit.Publisher
	logger    *slog.Logger

	mu        sync.RWMutex
	peers     map[id.NodeID]Peer
	connected map[id.NodeID]time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

func NewRegistry(publisher *audit.Publisher, opts ...RegistryOption) *Registry {
	r := &Registry{
		publisher: publisher,
		logger:    slog.Default(),
		peers:     make(map[id.NodeID]Peer),
		connected: make(map[id.NodeID]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enroll registers a new peer and returns it along with the plaintext
// enrollment secret. The secret is shown exactly once; only its hash is
// retained.
func (r *Registry) Enroll(ctx context.Context, name, address string, transitioned bool) (Peer, string, error) {
	if name == "" {
		return Peer{}, "", dErrors.New(dErrors.CodeInvalidInput, "peer name is required")
	}

	secret, err := secrets.Generate()
	if err != nil {
		return Peer{}, "", err
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return Peer{}, "", err
	}

	peer := Peer{
		NodeID:       id.NewNodeID(),
		Name:         name,
		Address:      address,
		Transitioned: transitioned,
		EnrolledAt:   requestcontext.Now(ctx),
		secretHash:   hash,
	}
	if transitioned {
		peer.Restrictions = models.PeerRestrictions()
	}

	r.mu.Lock()
	r.peers[peer.NodeID] = peer
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "peer enrolled",
		"node_id", peer.NodeID.String(), "name", name, "transitioned", transitioned)
	return peer, secret, nil
}

// Connect marks an enrolled peer as connected after checking its secret.
func (r *Registry) Connect(ctx context.Context, nodeID id.NodeID, secret string) error {
	r.mu.Lock()
	peer, ok := r.peers[nodeID]
	r.mu.Unlock()
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "peer is not enrolled")
	}
	if err := secrets.Verify(secret, peer.secretHash); err != nil {
		return err
	}

	r.mu.Lock()
	r.connected[nodeID] = requestcontext.Now(ctx)
	r.mu.Unlock()

	if r.publisher != nil {
		if _, err := r.publisher.Emit(ctx, audit.Entry{
			ActorID:    nodeID.String(),
			Action:     audit.ActionPeerConnected,
			ResourceID: nodeID.String(),
			Result:     audit.ResultSuccess,
			Metadata:   map[string]string{"peer_name": peer.Name},
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "record peer connect")
		}
	}
	return nil
}

// Disconnect removes a peer from the connected set. Disconnecting an
// unknown or already disconnected peer is a no-op.
func (r *Registry) Disconnect(ctx context.Context, nodeID id.NodeID) {
	r.mu.Lock()
	_, was := r.connected[nodeID]
	delete(r.connected, nodeID)
	r.mu.Unlock()
	if !was {
		return
	}

	if r.publisher != nil {
		if _, err := r.publisher.Emit(ctx, audit.Entry{
			ActorID:    nodeID.String(),
			Action:     audit.ActionPeerDisconnected,
			ResourceID: nodeID.String(),
			Result:     audit.ResultSuccess,
		}); err != nil {
			r.logger.WarnContext(ctx, "failed to record peer disconnect",
				"error", err, "node_id", nodeID.String())
		}
	}
}

// Connected returns a snapshot of the currently connected peers, so a
// broadcast can iterate without holding the registry lock.
func (r *Registry) Connected() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Peer, 0, len(r.connected))
	for nodeID := range r.connected {
		out = append(out, r.peers[nodeID])
	}
	return out
}

// ConnectedNodeIDs returns the node ids of the currently connected peers.
func (r *Registry) ConnectedNodeIDs() []id.NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]id.NodeID, 0, len(r.connected))
	for nodeID := range r.connected {
		out = append(out, nodeID)
	}
	return out
}

// Get returns an enrolled peer by node id.
func (r *Registry) Get(nodeID id.NodeID) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peer, ok := r.peers[nodeID]
	return peer, ok
}

// TransitionedPeers lists the connected transitioned peer identities. This
// is what a newly transitioned holder may message.
func (r *Registry) TransitionedPeers(_ context.Context) []id.NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]id.NodeID, 0, len(r.connected))
	for nodeID := range r.connected {
		if r.peers[nodeID].Transitioned {
			out = append(out, nodeID)
		}
	}
	return out
}

// Drain disconnects every peer. Called at shutdown.
func (r *Registry) Drain(ctx context.Context) {
	r.mu.Lock()
	nodeIDs := make([]id.NodeID, 0, len(r.connected))
	for nodeID := range r.connected {
		nodeIDs = append(nodeIDs, nodeID)
	}
	r.mu.Unlock()

	for _, nodeID := range nodeIDs {
		r.Disconnect(ctx, nodeID)
	}
}
