// Package shared holds the JSON helpers every HTTP handler uses, so error
// envelopes stay consistent across the surface.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	"fides/internal/credential/service"
	dErrors "fides/pkg/domain-errors"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	Violations any    `json:"violations,omitempty"`
	AuditID    string `json:"audit_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError translates a domain error into the JSON error envelope. Law
// violations map to 403 and carry the full violation list.
func WriteError(w http.ResponseWriter, err error) {
	var lawErr *service.LawViolationError
	if errors.As(err, &lawErr) {
		WriteJSON(w, http.StatusForbidden, ErrorResponse{
			Error:      string(dErrors.CodeForbidden),
			Message:    lawErr.Error(),
			Violations: lawErr.Violations,
			AuditID:    lawErr.AuditID.String(),
		})
		return
	}

	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.Message = err.Error()
	}
	WriteJSON(w, statusOf(code), resp)
}

func statusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
