package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edgard/holidaybot/internal/errs"
)

type handler struct {
	deps RouterDeps
	log  *slog.Logger
}

type holidaysResponse struct {
	Day      string   `json:"day"`
	Holidays []string `json:"holidays"`
}

type dateImageResponse struct {
	Day     string `json:"day"`
	Holiday string `json:"holiday"`
	Query   string `json:"query"`
}

type queryResponse struct {
	Query string `json:"query"`
}

// GET /{date}/holidays
func (h *handler) dateHolidays(w http.ResponseWriter, r *http.Request) {
	date, ok := h.parseDate(w, r)
	if !ok {
		return
	}

	hol, err := h.deps.Holidays.ForDate(r.Context(), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	holidays := hol.Holidays
	if holidays == nil {
		holidays = []string{}
	}
	writeJSON(w, http.StatusOK, holidaysResponse{Day: hol.Day, Holidays: holidays})
}

// GET /{date}/image
func (h *handler) dateImage(w http.ResponseWriter, r *http.Request) {
	date, ok := h.parseDate(w, r)
	if !ok {
		return
	}

	hol, name, err := h.deps.Picker.PickHoliday(r.Context(), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	q, err := h.deps.Queries.Submit(r.Context(), name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dateImageResponse{Day: hol.Day, Holiday: name, Query: q.UUID})
}

// GET /image?query=
func (h *handler) submitQuery(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("query"))
	if text == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Query parameter is required"})
		return
	}

	q, err := h.deps.Queries.Submit(r.Context(), text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Query: q.UUID})
}

// GET /queries/{id}
func (h *handler) queryStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.deps.Queries.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// GET /queries/{id}/image
func (h *handler) queryImage(w http.ResponseWriter, r *http.Request) {
	data, err := h.deps.Queries.FetchArtifact(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.WarnContext(r.Context(), "Failed to write image", "error", err)
	}
}

// GET /healthz
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Health.Ping(ctx); err != nil {
			h.log.ErrorContext(r.Context(), "Health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseDate reads the {date} path segment as YYYY-MM-DD and writes a 400
// when it is malformed.
func (h *handler) parseDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := chi.URLParam(r, "date")
	for _, layout := range []string{time.DateOnly, "2006-1-2"} {
		if date, err := time.Parse(layout, raw); err == nil {
			return date, true
		}
	}
	h.writeError(w, r, errs.NewValidationError("Invalid date, expected YYYY-MM-DD", nil))
	return time.Time{}, false
}
