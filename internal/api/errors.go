package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/edgard/holidaybot/internal/errs"
)

const internalErrorDetail = "Internal server error"

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps an error onto its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrNotReady), errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with {"detail": ...}. Server errors get a generic
// detail; their text is only logged.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	detail := internalErrorDetail
	if status < http.StatusInternalServerError {
		detail = errs.Message(err, http.StatusText(status))
	} else {
		h.log.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Detail: detail})
}
