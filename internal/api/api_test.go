package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/edgard/holidaybot/internal/database"
	"github.com/edgard/holidaybot/internal/errs"
	"github.com/edgard/holidaybot/internal/holiday"
	"github.com/edgard/holidaybot/internal/logger"
	"github.com/edgard/holidaybot/internal/query"
)

type fakeHolidays struct {
	dates []time.Time
}

func (f *fakeHolidays) ForDate(_ context.Context, date time.Time) (*holiday.Holidays, error) {
	f.dates = append(f.dates, date)
	switch {
	case date.Year() < 2010:
		return nil, errs.NewValidationError("Dates before 2010 are not supported", nil)
	case date.Month() == time.June && date.Day() == 1:
		return nil, errs.NewProviderError("calendar unavailable", errors.New("dial tcp: secret-host refused"))
	case date.Month() == time.July && date.Day() == 2:
		return &holiday.Holidays{Day: "2 июля"}, nil
	}
	return &holiday.Holidays{Day: "1 января", Holidays: []string{"Новый год"}}, nil
}

func (f *fakeHolidays) PickHoliday(ctx context.Context, date time.Time) (*holiday.Holidays, string, error) {
	h, err := f.ForDate(ctx, date)
	if err != nil {
		return nil, "", err
	}
	if len(h.Holidays) == 0 {
		return h, "", errs.NewNotFoundError("No holidays found for this date", nil)
	}
	return h, h.Holidays[0], nil
}

type fakeQueries struct {
	submitted []string
}

const readyID = "11111111-1111-1111-1111-111111111111"
const pendingID = "22222222-2222-2222-2222-222222222222"

func (f *fakeQueries) Submit(_ context.Context, text string) (*database.ImageQuery, error) {
	f.submitted = append(f.submitted, text)
	return &database.ImageQuery{UUID: readyID, Query: text}, nil
}

func (f *fakeQueries) Status(_ context.Context, id string) (*query.Status, error) {
	switch id {
	case readyID:
		return &query.Status{ID: id, Query: "Новый год", Ready: true}, nil
	case pendingID:
		return &query.Status{ID: id, Query: "x", Error: true}, nil
	}
	return nil, errs.NewNotFoundError("This query was not found", nil)
}

func (f *fakeQueries) FetchArtifact(_ context.Context, id string) ([]byte, error) {
	switch id {
	case readyID:
		return []byte("\x89PNG"), nil
	case pendingID:
		return nil, errs.NewNotReadyError("This query has not yet been processed", nil)
	}
	return nil, errs.NewNotFoundError("This query was not found", nil)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestRouter(ping error) (http.Handler, *fakeHolidays, *fakeQueries) {
	hol := &fakeHolidays{}
	q := &fakeQueries{}
	r := NewRouter(RouterDeps{
		Logger:   logger.Discard(),
		Holidays: hol,
		Picker:   hol,
		Queries:  q,
		Health:   fakePinger{err: ping},
		Metrics:  http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
	})
	return r, hol, q
}

func do(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestRoutes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantDetail string
	}{
		{name: "holidays", path: "/2025-01-01/holidays", wantStatus: http.StatusOK},
		{name: "holidays unpadded date", path: "/2025-1-1/holidays", wantStatus: http.StatusOK},
		{name: "holidays before 2010", path: "/2009-12-31/holidays", wantStatus: http.StatusBadRequest, wantDetail: "Dates before 2010 are not supported"},
		{name: "holidays bad date", path: "/yesterday/holidays", wantStatus: http.StatusBadRequest, wantDetail: "Invalid date, expected YYYY-MM-DD"},
		{name: "holidays provider failure", path: "/2025-06-01/holidays", wantStatus: http.StatusInternalServerError, wantDetail: internalErrorDetail},
		{name: "date image", path: "/2025-01-01/image", wantStatus: http.StatusOK},
		{name: "date image no holidays", path: "/2025-07-02/image", wantStatus: http.StatusNotFound, wantDetail: "No holidays found for this date"},
		{name: "date image before 2010", path: "/2000-01-01/image", wantStatus: http.StatusBadRequest},
		{name: "submit query", path: "/image?query=New+Year", wantStatus: http.StatusOK},
		{name: "submit missing query", path: "/image", wantStatus: http.StatusBadRequest},
		{name: "status ready", path: "/queries/" + readyID, wantStatus: http.StatusOK},
		{name: "status unknown", path: "/queries/33333333-3333-3333-3333-333333333333", wantStatus: http.StatusNotFound, wantDetail: "This query was not found"},
		{name: "image not ready", path: "/queries/" + pendingID + "/image", wantStatus: http.StatusBadRequest, wantDetail: "This query has not yet been processed"},
		{name: "image unknown", path: "/queries/nope/image", wantStatus: http.StatusNotFound},
		{name: "healthz", path: "/healthz", wantStatus: http.StatusOK},
		{name: "metrics", path: "/metrics", wantStatus: http.StatusOK},
		{name: "unknown route", path: "/a/b/c", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router, _, _ := newTestRouter(nil)
			rec := do(t, router, tt.path)
			if rec.Code != tt.wantStatus {
				t.Fatalf("GET %s status = %d, want %d (body %s)", tt.path, rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantDetail != "" {
				if got := decode(t, rec)["detail"]; got != tt.wantDetail {
					t.Fatalf("detail = %v, want %q", got, tt.wantDetail)
				}
			}
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(nil)
	rec := do(t, router, "/2025-06-01/holidays")
	if strings.Contains(rec.Body.String(), "secret-host") || strings.Contains(rec.Body.String(), "calendar") {
		t.Fatalf("body leaks internal error: %s", rec.Body.String())
	}
}

func TestHolidaysBody(t *testing.T) {
	t.Parallel()

	router, hol, _ := newTestRouter(nil)
	rec := do(t, router, "/2025-01-01/holidays")

	var body holidaysResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Day != "1 января" || len(body.Holidays) != 1 || body.Holidays[0] != "Новый год" {
		t.Fatalf("body = %+v", body)
	}
	want := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	if len(hol.dates) != 1 || !hol.dates[0].Equal(want) {
		t.Fatalf("looked up %v, want %v", hol.dates, want)
	}
}

func TestDateImageSubmitsPickedHoliday(t *testing.T) {
	t.Parallel()

	router, _, q := newTestRouter(nil)
	body := decode(t, do(t, router, "/2025-01-01/image"))

	if body["day"] != "1 января" || body["holiday"] != "Новый год" || body["query"] != readyID {
		t.Fatalf("body = %v", body)
	}
	if len(q.submitted) != 1 || q.submitted[0] != "Новый год" {
		t.Fatalf("submitted = %v", q.submitted)
	}
}

func TestSubmitQueryBody(t *testing.T) {
	t.Parallel()

	router, _, q := newTestRouter(nil)
	body := decode(t, do(t, router, "/image?query=New+Year"))
	if body["query"] != readyID {
		t.Fatalf("body = %v", body)
	}
	if len(q.submitted) != 1 || q.submitted[0] != "New Year" {
		t.Fatalf("submitted = %v", q.submitted)
	}
}

func TestQueryStatusBody(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(nil)
	body := decode(t, do(t, router, "/queries/"+pendingID))
	if body["id"] != pendingID || body["ready"] != false || body["error"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestQueryImage(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(nil)
	rec := do(t, router, "/queries/"+readyID+"/image")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if rec.Body.String() != "\x89PNG" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHealthzUnavailable(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(errors.New("db down"))
	if rec := do(t, router, "/healthz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{errs.NewNotFoundError("x", nil), http.StatusNotFound},
		{errs.NewNotReadyError("x", nil), http.StatusBadRequest},
		{errs.NewValidationError("x", nil), http.StatusBadRequest},
		{errs.NewEmptyCacheError("x", nil), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
