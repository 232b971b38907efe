package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fides/internal/credential/models"
	"fides/internal/credential/service"
	"fides/internal/transport/http/shared"
	id "fides/pkg/domain"
	dErrors "fides/pkg/domain-errors"
	request "fides/pkg/platform/middleware/request"
)

// CredentialHandler exposes the credential lifecycle over HTTP. It is a
// thin layer; all law checks and state transitions live in the service.
type CredentialHandler struct {
	credentials *service.Service
	logger      *slog.Logger
}

func NewCredentialHandler(credentials *service.Service, logger *slog.Logger) *CredentialHandler {
	return &CredentialHandler{credentials: credentials, logger: logger}
}

// Register registers the credential routes.
func (h *CredentialHandler) Register(r chi.Router) {
	r.Post("/credentials", h.handleIssue)
	r.Post("/credentials/verify", h.handleVerify)
	r.Get("/credentials/{credentialID}", h.handleGet)
	r.Post("/credentials/{credentialID}/revoke", h.handleRevoke)
	r.Post("/transitions", h.handleTransition)
}

func (h *CredentialHandler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.credentials.Issue(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "issuance rejected",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, result)
}

func (h *CredentialHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.credentials.VerifyAccess(ctx, req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	// A denial is a successful verification with Allowed=false, not an
	// HTTP error.
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *CredentialHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid credential id"))
		return
	}

	credential, err := h.credentials.GetCredential(r.Context(), credentialID)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "credential not found"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, credential)
}

func (h *CredentialHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid credential id"))
		return
	}

	var req models.RevokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req.CredentialID = credentialID

	result, err := h.credentials.Revoke(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "revocation rejected",
			"request_id", request.GetRequestID(ctx),
			"credential_id", credentialID.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *CredentialHandler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.credentials.ProcessNetworkTransition(ctx, req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}
