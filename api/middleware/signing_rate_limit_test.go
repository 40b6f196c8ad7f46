package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type fakeLimiter struct {
	counts map[string]int64
	err    error
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: make(map[string]int64)}
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func signingRouter(policy RateLimitPolicy, limiter windowLimiter) http.Handler {
	r := chi.NewRouter()
	r.With(SigningRateLimit(policy, limiter, nil, nil)).Get("/sign/{token}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func hit(h http.Handler, path, ip string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = ip + ":5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestSigningRateLimitBlocksPerToken(t *testing.T) {
	limiter := newFakeLimiter()
	h := signingRouter(NewRateLimitPolicy("signing", time.Minute, 100, 2), limiter)

	for i := 0; i < 2; i++ {
		if code := hit(h, "/sign/tok-a", "10.0.0.1"); code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i+1, code)
		}
	}
	if code := hit(h, "/sign/tok-a", "10.0.0.2"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for third hit on token, got %d", code)
	}
	if code := hit(h, "/sign/tok-b", "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("other tokens must not share the budget, got %d", code)
	}
	for scope := range limiter.counts {
		if strings.Contains(scope, "tok-a") {
			t.Fatalf("raw token leaked into limiter scope %q", scope)
		}
	}
}

func TestSigningRateLimitBlocksPerIP(t *testing.T) {
	h := signingRouter(NewRateLimitPolicy("signing", time.Minute, 1, 100), newFakeLimiter())

	if code := hit(h, "/sign/one", "10.0.0.9"); code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
	if code := hit(h, "/sign/two", "10.0.0.9"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", code)
	}
}

func TestSigningRateLimitSetsRetryAfter(t *testing.T) {
	h := signingRouter(NewRateLimitPolicy("signing", 30*time.Second, 0, 1), newFakeLimiter())
	hit(h, "/sign/x", "10.0.0.1")

	req := httptest.NewRequest(http.MethodGet, "/sign/x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("expected Retry-After 30 got %q", got)
	}
}

func TestSigningRateLimitSurfacesLimiterFailure(t *testing.T) {
	limiter := newFakeLimiter()
	limiter.err = errors.New("redis down")
	h := signingRouter(NewRateLimitPolicy("signing", time.Minute, 5, 5), limiter)

	if code := hit(h, "/sign/x", "10.0.0.1"); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", code)
	}
}

func TestSigningRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	limiter := newFakeLimiter()
	limiter.err = errors.New("should not be called")
	h := signingRouter(NewRateLimitPolicy("signing", 0, 5, 5), limiter)

	if code := hit(h, "/sign/x", "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("unexpected ip %q", got)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.4:1234"
	if got := ClientIP(req); got != "192.0.2.4" {
		t.Fatalf("unexpected ip %q", got)
	}
}
