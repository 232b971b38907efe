package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fides/internal/law"
	"fides/internal/transport/http/shared"
	dErrors "fides/pkg/domain-errors"
	"fides/pkg/platform/audit"
)

// LawHandler exposes the enforcement engine: the registry listing and the
// check endpoint.
type LawHandler struct {
	engine *law.Engine
	logger *slog.Logger
}

func NewLawHandler(engine *law.Engine, logger *slog.Logger) *LawHandler {
	return &LawHandler{engine: engine, logger: logger}
}

// Register registers the law routes.
func (h *LawHandler) Register(r chi.Router) {
	r.Get("/laws", h.handleList)
	r.Post("/laws/check", h.handleCheck)
}

type lawDescription struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *LawHandler) handleList(w http.ResponseWriter, _ *http.Request) {
	laws := law.All()
	out := make([]lawDescription, 0, len(laws))
	for _, l := range laws {
		out = append(out, lawDescription{ID: l.ID, Name: l.Name, Description: l.Description})
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

type checkRequest struct {
	Action     string         `json:"action"`
	ActorID    string         `json:"actor_id"`
	SubjectID  string         `json:"subject_id,omitempty"`
	ResourceID string         `json:"resource_id,omitempty"`
	LawIDs     []int          `json:"law_ids"`
	Context    map[string]any `json:"context"`
}

func (h *LawHandler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.engine.Check(ctx, law.CheckRequest{
		Action:     audit.Action(req.Action),
		ActorID:    req.ActorID,
		SubjectID:  req.SubjectID,
		ResourceID: req.ResourceID,
		LawIDs:     req.LawIDs,
		Context:    law.Context(req.Context),
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	// Non-compliance is a valid check outcome, reported with 200.
	shared.WriteJSON(w, http.StatusOK, result)
}
