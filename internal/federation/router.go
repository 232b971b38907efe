package federation

import (
	"context"
	"log/slog"

	"fides/internal/credential/models"
	"fides/internal/credential/service"
	"fides/internal/law"
	id "fides/pkg/domain"
	dErrors "fides/pkg/domain-errors"
	"fides/pkg/platform/audit"
)

// Handler processes one decoded federation message and produces a response
// payload.
type Handler func(ctx context.Context, env Envelope, payload any) (any, error)

// Router dispatches inbound envelopes to handlers by exact message type
// match. It holds no state beyond the type-to-handler mapping; each handler
// is a narrow adapter over the credential service or the negotiation
// ledger. An unknown type is an explicit error response, never a silent
// drop.
type Router struct {
	handlers  map[MessageType]Handler
	publisher *audit.Publisher
	logger    *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = logger }
}

func NewRouter(publisher *audit.Publisher, opts ...RouterOption) *Router {
	r := &Router{
		handlers:  make(map[MessageType]Handler),
		publisher: publisher,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a handler to a message type, replacing any previous one.
func (r *Router) Register(messageType MessageType, handler Handler) {
	r.handlers[messageType] = handler
}

// Dispatch decodes the envelope payload and routes it to the registered
// handler. Every dispatched message is audited with its type and sender.
func (r *Router) Dispatch(ctx context.Context, env Envelope) (any, error) {
	if env.MessageID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "message id is required")
	}

	handler, ok := r.handlers[env.Type]
	if !ok {
		r.logger.WarnContext(ctx, "unroutable federation message",
			"message_id", env.MessageID.String(), "message_type", string(env.Type), "from", env.From)
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown message type %q", env.Type)
	}

	payload, err := DecodePayload(env)
	if err != nil {
		return nil, err
	}

	response, err := handler(ctx, env, payload)

	result := audit.ResultSuccess
	if err != nil {
		result = audit.ResultFailure
	}
	if r.publisher != nil {
		if _, auditErr := r.publisher.Emit(ctx, audit.Entry{
			ActorID:    env.From,
			Action:     audit.ActionFederationMessage,
			ResourceID: env.MessageID.String(),
			Result:     result,
			Metadata: map[string]string{
				"message_type": string(env.Type),
				"to":           env.To,
			},
		}); auditErr != nil {
			r.logger.WarnContext(ctx, "failed to record federation message",
				"error", auditErr, "message_id", env.MessageID.String())
		}
	}
	return response, err
}

// RegisterDefaultHandlers wires the five standard message types to the
// credential service, the law engine, and the negotiation ledger.
func (r *Router) RegisterDefaultHandlers(credentials *service.Service, engine *law.Engine, ledger *Ledger, peers *Registry) {
	r.Register(TypeCredentialTransfer, handleCredentialTransfer(credentials))
	r.Register(TypeNegotiation, handleNegotiation(ledger, peers))
	r.Register(TypePolicyTeaching, handlePolicyTeaching(engine))
	r.Register(TypeEscalation, handleEscalation(ledger))
	r.Register(TypeRevocation, handleRevocation(credentials))
}

func handleCredentialTransfer(credentials *service.Service) Handler {
	return func(ctx context.Context, _ Envelope, payload any) (any, error) {
		p := payload.(*CredentialTransferPayload)
		result, err := credentials.VerifyAccess(ctx, models.VerifyRequest{
			CredentialID: p.CredentialID,
			Signature: models.SignatureState{
				IdentityHash:     p.IdentityHash,
				EvolutionCounter: p.EvolutionCounter,
				EvolutionKey:     p.EvolutionKey,
				Fingerprints: models.ModalFingerprints{
					Text:   p.FingerprintText,
					Image:  p.FingerprintImage,
					Audio:  p.FingerprintAudio,
					Object: p.FingerprintObject,
				},
			},
			RequiredTier:       p.RequiredTier,
			RequiredCapability: p.RequiredCapability,
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

func handleNegotiation(ledger *Ledger, peers *Registry) Handler {
	return func(ctx context.Context, env Envelope, payload any) (any, error) {
		p := payload.(*NegotiationPayload)

		var (
			n   Negotiation
			err error
		)
		switch {
		case p.NegotiationID.IsNil():
			var peerID id.NodeID
			peerID, err = senderNode(env, peers)
			if err != nil {
				return nil, err
			}
			n, err = ledger.Open(ctx, peerID, p.Topic, p.Proposal)
		case p.Close:
			n, err = ledger.Resolve(ctx, p.NegotiationID, p.Accept, p.Proposal)
		default:
			n, err = ledger.Advance(ctx, p.NegotiationID, p.Proposal)
		}
		if err != nil {
			return nil, err
		}
		return n, nil
	}
}

func handlePolicyTeaching(engine *law.Engine) Handler {
	return func(ctx context.Context, env Envelope, payload any) (any, error) {
		p := payload.(*PolicyTeachingPayload)
		result, err := engine.Check(ctx, law.CheckRequest{
			Action:  audit.Action(p.Action),
			ActorID: env.From,
			LawIDs:  p.LawIDs,
			Context: law.Context(p.Context),
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

func handleEscalation(ledger *Ledger) Handler {
	return func(ctx context.Context, _ Envelope, payload any) (any, error) {
		p := payload.(*EscalationPayload)
		n, err := ledger.Escalate(ctx, p.NegotiationID, p.Reason)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
}

func handleRevocation(credentials *service.Service) Handler {
	return func(ctx context.Context, env Envelope, payload any) (any, error) {
		p := payload.(*RevocationPayload)
		result, err := credentials.Revoke(ctx, models.RevokeRequest{
			CredentialID: p.CredentialID,
			RevokedBy:    p.RevokedBy,
			Reason:       p.Reason,
		})
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				// The peer's notice raced a local revocation; the credential
				// is already terminal, which is what the notice asked for.
				existing, lookupErr := credentials.GetRevocationByCredential(ctx, p.CredentialID)
				if lookupErr != nil {
					return nil, lookupErr
				}
				return existing, nil
			}
			return nil, err
		}
		return result, nil
	}
}

func senderNode(env Envelope, peers *Registry) (id.NodeID, error) {
	nodeID, err := id.ParseNodeID(env.From)
	if err != nil {
		return nodeID, dErrors.Wrap(err, dErrors.CodeBadRequest, "envelope sender is not a node id")
	}
	if peers != nil {
		if _, ok := peers.Get(nodeID); !ok {
			return nodeID, dErrors.New(dErrors.CodeUnauthorized, "sender is not an enrolled peer")
		}
	}
	return nodeID, nil
}
