package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fides/internal/federation"
	"fides/internal/transport/http/shared"
	id "fides/pkg/domain"
	dErrors "fides/pkg/domain-errors"
	"fides/pkg/platform/audit"
	request "fides/pkg/platform/middleware/request"
)

// FederationHandler exposes the peer-facing surface: message dispatch, peer
// enrollment and connection, and the recent audit feed.
type FederationHandler struct {
	router    *federation.Router
	registry  *federation.Registry
	publisher *audit.Publisher
	logger    *slog.Logger
}

func NewFederationHandler(
	router *federation.Router,
	registry *federation.Registry,
	publisher *audit.Publisher,
	logger *slog.Logger) *FederationHandler {
	return &FederationHandler{
		router:    router,
		registry:  registry,
		publisher: publisher,
		logger:    logger,
	}
}

// Register registers the peer-facing routes.
func (h *FederationHandler) Register(r chi.Router) {
	r.Post("/federation/messages", h.handleMessage)
	r.Post("/federation/peers/{nodeID}/connect", h.handleConnect)
	r.Delete("/federation/peers/{nodeID}/connect", h.handleDisconnect)
	r.Get("/audit/recent", h.handleRecentAudit)
}

// RegisterAdmin registers the operator-only routes.
func (h *FederationHandler) RegisterAdmin(r chi.Router) {
	r.Post("/federation/peers", h.handleEnroll)
}

func (h *FederationHandler) handleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var env federation.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid envelope"))
		return
	}

	response, err := h.router.Dispatch(ctx, env)
	if err != nil {
		h.logger.WarnContext(ctx, "federation dispatch failed",
			"request_id", request.GetRequestID(ctx),
			"message_type", string(env.Type),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, response)
}

type enrollRequest struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	Transitioned bool   `json:"transitioned"`
}

type enrollResponse struct {
	Peer   federation.Peer `json:"peer"`
	Secret string          `json:"secret"`
}

func (h *FederationHandler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	peer, secret, err := h.registry.Enroll(ctx, req.Name, req.Address, req.Transitioned)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	// The secret appears in this response and nowhere else.
	shared.WriteJSON(w, http.StatusCreated, enrollResponse{Peer: peer, Secret: secret})
}

type connectRequest struct {
	Secret string `json:"secret"`
}

func (h *FederationHandler) handleConnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	nodeID, err := id.ParseNodeID(chi.URLParam(r, "nodeID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid node id"))
		return
	}

	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.registry.Connect(ctx, nodeID, req.Secret); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FederationHandler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	nodeID, err := id.ParseNodeID(chi.URLParam(r, "nodeID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid node id"))
		return
	}

	h.registry.Disconnect(r.Context(), nodeID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *FederationHandler) handleRecentAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be within [1,1000]"))
			return
		}
		limit = parsed
	}

	entries, err := h.publisher.ListRecent(r.Context(), limit)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list audit entries"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, entries)
}
