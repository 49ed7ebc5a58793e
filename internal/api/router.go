// Package api exposes holiday lookups and image queries over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/edgard/holidaybot/internal/config"
	"github.com/edgard/holidaybot/internal/database"
	"github.com/edgard/holidaybot/internal/holiday"
	"github.com/edgard/holidaybot/internal/logger"
	"github.com/edgard/holidaybot/internal/query"
)

// HolidayLookup returns the holidays for a date.
type HolidayLookup interface {
	ForDate(ctx context.Context, date time.Time) (*holiday.Holidays, error)
}

// HolidayPicker chooses one holiday of a date.
type HolidayPicker interface {
	PickHoliday(ctx context.Context, date time.Time) (*holiday.Holidays, string, error)
}

// Queries is the image query pipeline.
type Queries interface {
	Submit(ctx context.Context, text string) (*database.ImageQuery, error)
	Status(ctx context.Context, id string) (*query.Status, error)
	FetchArtifact(ctx context.Context, id string) ([]byte, error)
}

// Pinger reports data store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps bundles what NewRouter needs. Metrics may be nil.
type RouterDeps struct {
	Logger   *slog.Logger
	Holidays HolidayLookup
	Picker   HolidayPicker
	Queries  Queries
	Health   Pinger
	Metrics  http.Handler
}

// NewRouter builds the chi router with request ids, panic recovery and
// request logging.
func NewRouter(deps RouterDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &handler{deps: deps, log: deps.Logger.With("component", "http_api")}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(logger.HTTPMiddleware(h.log))

	r.Get("/healthz", h.health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Get("/image", h.submitQuery)
	r.Route("/queries/{id}", func(r chi.Router) {
		r.Get("/", h.queryStatus)
		r.Get("/image", h.queryImage)
	})
	r.Route("/{date}", func(r chi.Router) {
		r.Get("/holidays", h.dateHolidays)
		r.Get("/image", h.dateImage)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Detail: "Method not allowed"})
	})

	return r
}

// NewServer wraps handler in an http.Server configured from cfg.
func NewServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}
