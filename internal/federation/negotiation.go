package federation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "fides/pkg/domain"
	dErrors "fides/pkg/domain-errors"
	"fides/pkg/platform/audit"
	"fides/pkg/requestcontext"
)

// NegotiationState is the lifecycle state of a cross-network negotiation.
// Open is the only non-terminal state.
type NegotiationState string

const (
	NegotiationOpen      NegotiationState = "open"
	NegotiationAgreed    NegotiationState = "agreed"
	NegotiationDisagreed NegotiationState = "disagreed"
	NegotiationEscalated NegotiationState = "escalated"
)

// Terminal reports whether the state admits no further transitions.
func (s NegotiationState) Terminal() bool { return s != NegotiationOpen }

// Negotiation is one multi-step exchange between this network and a peer.
type Negotiation struct {
	ID        id.NegotiationID `json:"id"`
	PeerID    id.NodeID        `json:"peer_id"`
	Topic     string           `json:"topic"`
	Proposal  string           `json:"proposal"`
	State     NegotiationState `json:"state"`
	Outcome   string           `json:"outcome,omitempty"`
	OpenedAt  time.Time        `json:"opened_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// DefaultNegotiationTimeout bounds how long a negotiation may sit open
// without progress before the sweeper escalates it.
const DefaultNegotiationTimeout = 24 * time.Hour

// Ledger tracks open negotiations. Negotiations are long-lived, so unlike
// verification they must support abandonment: the sweeper escalates any
// negotiation idle past the timeout rather than leaving it open forever.
type Ledger struct {
	publisher *audit.Publisher
	logger    *slog.Logger
	timeout   time.Duration

	mu           sync.RWMutex
	negotiations map[id.NegotiationID]*Negotiation
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

func WithLedgerLogger(logger *slog.Logger) LedgerOption {
	return func(l *Ledger) { l.logger = logger }
}

func WithNegotiationTimeout(timeout time.Duration) LedgerOption {
	return func(l *Ledger) { l.timeout = timeout }
}

func NewLedger(publisher *audit.Publisher, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		publisher:    publisher,
		logger:       slog.Default(),
		timeout:      DefaultNegotiationTimeout,
		negotiations: make(map[id.NegotiationID]*Negotiation),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open starts a negotiation with a peer.
func (l *Ledger) Open(ctx context.Context, peerID id.NodeID, topic, proposal string) (Negotiation, error) {
	if topic == "" {
		return Negotiation{}, dErrors.New(dErrors.CodeInvalidInput, "negotiation topic is required")
	}

	now := requestcontext.Now(ctx)
	n := &Negotiation{
		ID:        id.NewNegotiationID(),
		PeerID:    peerID,
		Topic:     topic,
		Proposal:  proposal,
		State:     NegotiationOpen,
		OpenedAt:  now,
		UpdatedAt: now,
	}

	l.mu.Lock()
	l.negotiations[n.ID] = n
	l.mu.Unlock()

	l.emit(ctx, audit.ActionNegotiationOpened, *n, audit.ResultSuccess)
	return *n, nil
}

// Advance records a new proposal on an open negotiation, resetting its
// idle clock.
func (l *Ledger) Advance(ctx context.Context, negotiationID id.NegotiationID, proposal string) (Negotiation, error) {
	return l.update(ctx, negotiationID, func(n *Negotiation) error {
		n.Proposal = proposal
		return nil
	})
}

// Resolve closes an open negotiation as agreed or disagreed.
func (l *Ledger) Resolve(ctx context.Context, negotiationID id.NegotiationID, agreed bool, outcome string) (Negotiation, error) {
	n, err := l.update(ctx, negotiationID, func(n *Negotiation) error {
		n.State = NegotiationDisagreed
		if agreed {
			n.State = NegotiationAgreed
		}
		n.Outcome = outcome
		return nil
	})
	if err != nil {
		return Negotiation{}, err
	}
	l.emit(ctx, audit.ActionNegotiationClosed, n, audit.ResultSuccess)
	return n, nil
}

// Escalate moves an open negotiation to out-of-band resolution.
func (l *Ledger) Escalate(ctx context.Context, negotiationID id.NegotiationID, reason string) (Negotiation, error) {
	n, err := l.update(ctx, negotiationID, func(n *Negotiation) error {
		n.State = NegotiationEscalated
		n.Outcome = reason
		return nil
	})
	if err != nil {
		return Negotiation{}, err
	}
	l.emit(ctx, audit.ActionNegotiationClosed, n, audit.ResultDenied)
	return n, nil
}

// Get returns a negotiation by id.
func (l *Ledger) Get(negotiationID id.NegotiationID) (Negotiation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, ok := l.negotiations[negotiationID]
	if !ok {
		return Negotiation{}, false
	}
	return *n, true
}

// Sweep escalates every negotiation idle past the timeout and returns how
// many were closed.
func (l *Ledger) Sweep(ctx context.Context) int {
	now := requestcontext.Now(ctx)

	l.mu.RLock()
	var stale []id.NegotiationID
	for negotiationID, n := range l.negotiations {
		if n.State == NegotiationOpen && now.Sub(n.UpdatedAt) > l.timeout {
			stale = append(stale, negotiationID)
		}
	}
	l.mu.RUnlock()

	for _, negotiationID := range stale {
		if _, err := l.Escalate(ctx, negotiationID, "negotiation timed out"); err != nil {
			l.logger.WarnContext(ctx, "failed to escalate stale negotiation",
				"error", err, "negotiation_id", negotiationID.String())
		}
	}
	if len(stale) > 0 {
		l.logger.InfoContext(ctx, "escalated stale negotiations", "count", len(stale))
	}
	return len(stale)
}

// RunSweeper escalates stale negotiations on the given interval until the
// context is cancelled.
func (l *Ledger) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(ctx)
		}
	}
}

func (l *Ledger) update(ctx context.Context, negotiationID id.NegotiationID, apply func(*Negotiation) error) (Negotiation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.negotiations[negotiationID]
	if !ok {
		return Negotiation{}, dErrors.New(dErrors.CodeNotFound, "negotiation not found")
	}
	if n.State.Terminal() {
		return Negotiation{}, dErrors.Newf(dErrors.CodeConflict, "negotiation is already %s", n.State)
	}
	if err := apply(n); err != nil {
		return Negotiation{}, err
	}
	n.UpdatedAt = requestcontext.Now(ctx)
	return *n, nil
}

func (l *Ledger) emit(ctx context.Context, action audit.Action, n Negotiation, result audit.Result) {
	if l.publisher == nil {
		return
	}
	if _, err := l.publisher.Emit(ctx, audit.Entry{
		ActorID:    n.PeerID.String(),
		Action:     action,
		ResourceID: n.ID.String(),
		Result:     result,
		Metadata: map[string]string{
			"topic": n.Topic,
			"state": string(n.State),
		},
	}); err != nil {
		l.logger.WarnContext(ctx, "failed to record negotiation event",
			"error", err, "negotiation_id", n.ID.String())
	}
}
