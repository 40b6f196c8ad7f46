package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
)

func TestRedactPathMasksSigningToken(t *testing.T) {
	cases := map[string]string{
		"/api/public/v1/agreements/sign/abc123":      "/api/public/v1/agreements/sign/{token}",
		"/api/public/v1/agreements/sign/abc123/":     "/api/public/v1/agreements/sign/{token}/",
		"/api/public/v1/agreements/sign/":            "/api/public/v1/agreements/sign/",
		"/api/v1/agreements/9b1deb4d-3b7d-4bad-9bdd": "/api/v1/agreements/9b1deb4d-3b7d-4bad-9bdd",
	}
	for in, want := range cases {
		if got := redactPath(in); got != want {
			t.Fatalf("redactPath(%q) = %q want %q", in, got, want)
		}
	}
}

func TestLoggingNeverWritesSigningToken(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})

	r := chi.NewRouter()
	r.Use(Logging(logg))
	r.Get("/api/public/v1/agreements/sign/{token}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/public/v1/agreements/sign/super-secret-token", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusTeapot {
		t.Fatalf("expected 418 got %d", resp.Code)
	}
	out := buf.String()
	if strings.Contains(out, "super-secret-token") {
		t.Fatalf("token leaked into logs: %s", out)
	}
	if !strings.Contains(out, `"route":"/api/public/v1/agreements/sign/{token}"`) {
		t.Fatalf("expected route pattern in logs: %s", out)
	}
}

func TestRequestIDKeepsSafeCallerValue(t *testing.T) {
	handler := RequestID(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "edge-1234.abc")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got := resp.Header().Get(requestIDHeader); got != "edge-1234.abc" {
		t.Fatalf("expected caller id echoed, got %q", got)
	}
}

func TestRequestIDReplacesUnsafeCallerValue(t *testing.T) {
	handler := RequestID(nil)(okHandler())

	for _, bad := range []string{"has space", "line\nbreak", strings.Repeat("a", maxRequestIDLen+1)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, bad)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		got := resp.Header().Get(requestIDHeader)
		if got == "" || got == bad {
			t.Fatalf("expected generated id for %q, got %q", bad, got)
		}
	}
}

func TestRecovererWritesInternalError(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "boom") {
		t.Fatalf("panic value leaked to client: %s", resp.Body.String())
	}
}

func TestRecovererRepanicsOnAbort(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler re-raised, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
