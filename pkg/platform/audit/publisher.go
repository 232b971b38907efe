package audit

import (
	"context"
	"log/slog"

	id "fides/pkg/domain"
	"fides/pkg/requestcontext"
)

// Store is the durable sink for audit entries. Append must be atomic per
// entry; entries are never updated or deleted.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByActor(ctx context.Context, actorID string) ([]Entry, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}

// Sink receives a best-effort copy of security-category entries, e.g. the
// Kafka event stream consumed by federation peers and SIEM tooling.
type Sink interface {
	Publish(ctx context.Context, entry Entry) error
}

// Publisher captures structured audit entries. Persistence to the Store is
// fail-closed: an Append failure fails the audited operation. Sink fan-out
// is best-effort and only logged.
type Publisher struct {
	store  Store
	sinks  []Sink
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithSink adds a best-effort fan-out sink for security-category entries.
func WithSink(sink Sink) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

// WithLogger sets the logger used to report sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a Publisher writing to the given store.
func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit assigns identity and time to the entry, persists it, and fans out
// security entries to the configured sinks. The assigned entry ID is
// returned so callers can surface it with operation results.
func (p *Publisher) Emit(ctx context.Context, entry Entry) (id.AuditID, error) {
	if entry.ID.IsNil() {
		entry.ID = id.NewAuditID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.ActorID == "" {
		entry.ActorID = requestcontext.ActorID(ctx)
	}
	if rid := requestcontext.RequestID(ctx); rid != "" {
		if entry.Metadata == nil {
			entry.Metadata = map[string]string{}
		}
		entry.Metadata["request_id"] = rid
	}
	if platform := requestcontext.ClientPlatform(ctx); platform != "" {
		if entry.Metadata == nil {
			entry.Metadata = map[string]string{}
		}
		entry.Metadata["client_platform"] = platform
	}

	if err := p.store.Append(ctx, entry); err != nil {
		return id.AuditID{}, err
	}

	if entry.Action.Category() == CategorySecurity {
		for _, sink := range p.sinks {
			if err := sink.Publish(ctx, entry); err != nil {
				p.logger.WarnContext(ctx, "audit sink publish failed",
					"error", err,
					"audit_id", entry.ID.String(),
					"action", string(entry.Action),
				)
			}
		}
	}

	return entry.ID, nil
}

// ListByActor returns all entries recorded for an actor.
func (p *Publisher) ListByActor(ctx context.Context, actorID string) ([]Entry, error) {
	return p.store.ListByActor(ctx, actorID)
}

// ListRecent returns the most recent entries across all actors.
func (p *Publisher) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	return p.store.ListRecent(ctx, limit)
}
