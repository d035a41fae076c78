package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type countingLimiter struct {
	counts map[string]int64
}

func (c *countingLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	c.counts[scope]++
	return c.counts[scope] <= limit, c.counts[scope], nil
}

func TestRateLimitBlocksAfterLimitPerSession(t *testing.T) {
	store := &countingLimiter{counts: map[string]int64{}}
	policy := NewRateLimitPolicy("reserve", time.Minute, 2)
	handler := Session(nil)(RateLimit(policy, store, nil)(okHandler()))

	send := func(session string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", nil)
		req.Header.Set(SessionHeader, session)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp.Code
	}

	if send("sess-a") != http.StatusOK || send("sess-a") != http.StatusOK {
		t.Fatal("expected first two requests to pass")
	}
	if code := send("sess-a"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", code)
	}
	if code := send("sess-b"); code != http.StatusOK {
		t.Fatalf("expected other session unaffected, got %d", code)
	}
	if _, ok := store.counts["reserve:session:sess-a"]; !ok {
		t.Fatalf("unexpected scope keys %v", store.counts)
	}
}

func TestRateLimitFallsBackToIP(t *testing.T) {
	store := &countingLimiter{counts: map[string]int64{}}
	handler := RateLimit(NewRateLimitPolicy("checkout", time.Minute, 1), store, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if store.counts["checkout:ip:203.0.113.9"] != 1 {
		t.Fatalf("expected ip scope, got %v", store.counts)
	}
}

func TestRateLimitDisabledPolicy(t *testing.T) {
	handler := RateLimit(NewRateLimitPolicy("off", time.Minute, 0), &countingLimiter{counts: map[string]int64{}}, nil)(okHandler())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRateLimitSetsRetryAfter(t *testing.T) {
	store := &countingLimiter{counts: map[string]int64{}}
	handler := RateLimit(NewRateLimitPolicy("checkout", 90*time.Second, 1), store, nil)(okHandler())

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != want {
			t.Fatalf("request %d: expected %d got %d", i, want, resp.Code)
		}
		if want == http.StatusTooManyRequests && resp.Header().Get("Retry-After") != "90" {
			t.Fatalf("expected Retry-After 90, got %q", resp.Header().Get("Retry-After"))
		}
	}
}
