package logger

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	if got := truncateString("short", 50); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateString("Всемирный день поэзии", 10); got != "Всемирн..." {
		t.Errorf("got %q, want rune-safe truncation", got)
	}
	if got := truncateString("abcdef", 2); got != "..." {
		t.Errorf("got %q", got)
	}
}

func TestHTTPMiddlewareLogsStatus(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newLogger(&buf, "debug", true)

	h := HTTPMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/queries/x", nil))

	out := buf.String()
	for _, want := range []string{`"status":404`, `"level":"WARN"`, `"path":"/queries/x"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
