package imagesource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgard/holidaybot/internal/errs"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestInspect(t *testing.T) {
	t.Parallel()

	img, err := Inspect(pngBytes(t, 4, 3))
	if err != nil {
		t.Fatalf("Inspect(png) error = %v", err)
	}
	if img.Ext != ".png" {
		t.Errorf("Ext = %q, want .png", img.Ext)
	}

	full := pngBytes(t, 200, 200)
	for _, data := range [][]byte{nil, []byte("<html>not an image</html>"), full[:len(full)/2]} {
		if _, err := Inspect(data); !errors.Is(err, errs.ErrProvider) {
			t.Errorf("Inspect(%q) error = %v, want provider error", data, err)
		}
	}
}

func TestSearchImages(t *testing.T) {
	t.Parallel()

	good := pngBytes(t, 8, 8)
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			if r.URL.Query().Get("searchType") != "image" || r.URL.Query().Get("q") != "Новый год" {
				http.Error(w, "bad query", http.StatusBadRequest)
				return
			}
			if r.URL.Query().Get("start") != "1" {
				_ = json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
				return
			}
			items := []map[string]string{
				{"link": srv.URL + "/img/1"},
				{"link": srv.URL + "/broken"},
				{"link": srv.URL + "/missing"},
				{"link": srv.URL + "/img/2"},
				{"link": srv.URL + "/img/3"},
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
		case "/broken":
			_, _ = w.Write([]byte("<html></html>"))
		case "/missing":
			http.NotFound(w, r)
		default:
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(good)
		}
	}))
	defer srv.Close()

	s := NewSearch(SearchConfig{Endpoint: srv.URL + "/search", APIKey: "k", EngineID: "cx", Timeout: 5 * time.Second}, nil)

	images, err := s.Images(context.Background(), "Новый год", 2)
	if err != nil {
		t.Fatalf("Images() error = %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("got %d images, want 2", len(images))
	}

	images, err = s.Images(context.Background(), "Новый год", 10)
	if err != nil {
		t.Fatalf("Images() error = %v", err)
	}
	if len(images) != 3 {
		t.Errorf("got %d images, want the 3 decodable ones", len(images))
	}
}

func TestSearchImagesRejectsOversizeAndTruncated(t *testing.T) {
	t.Parallel()

	small := pngBytes(t, 8, 8)
	large := pngBytes(t, 200, 200)
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			items := []map[string]string{}
			if r.URL.Query().Get("start") == "1" {
				items = []map[string]string{
					{"link": srv.URL + "/large"},
					{"link": srv.URL + "/truncated"},
					{"link": srv.URL + "/small"},
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
		case "/large":
			_, _ = w.Write(large)
		case "/truncated":
			_, _ = w.Write(small[:len(small)/2])
		default:
			_, _ = w.Write(small)
		}
	}))
	defer srv.Close()

	s := NewSearch(SearchConfig{Endpoint: srv.URL + "/search", Timeout: 5 * time.Second}, nil)
	s.maxBytes = int64(len(large)) - 1
	if int64(len(small)) > s.maxBytes {
		t.Fatalf("test images too close in size: small=%d large=%d", len(small), len(large))
	}

	images, err := s.Images(context.Background(), "x", 3)
	if err != nil {
		t.Fatalf("Images() error = %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("got %d images, want only the complete one under the limit", len(images))
	}
	if !bytes.Equal(images[0].Data, small) {
		t.Error("accepted image is not the small complete one")
	}
}

func TestSearchImagesAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"quota"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewSearch(SearchConfig{Endpoint: srv.URL, Timeout: time.Second}, nil)
	if _, err := s.Images(context.Background(), "x", 1); !errors.Is(err, errs.ErrProvider) {
		t.Fatalf("Images() error = %v, want provider error", err)
	}
}

type stubSource struct {
	calls atomic.Int32
}

func (s *stubSource) Images(ctx context.Context, query string, count int) ([]Image, error) {
	s.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return nil, fmt.Errorf("expected deadline on %q", query)
	}
	return make([]Image, count), nil
}

func TestThrottledAppliesTimeoutAndLimit(t *testing.T) {
	t.Parallel()

	stub := &stubSource{}
	th := NewThrottled(stub, 60, time.Second)

	if _, err := th.Images(context.Background(), "a", 1); err != nil {
		t.Fatalf("first call error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := th.Images(ctx, "b", 1); !errors.Is(err, errs.ErrProvider) {
		t.Fatalf("second call error = %v, want rate-limit provider error", err)
	}
	if n := stub.calls.Load(); n != 1 {
		t.Errorf("underlying calls = %d, want 1", n)
	}
}
