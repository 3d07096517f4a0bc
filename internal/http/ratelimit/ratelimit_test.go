package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/jw6ventures/tuition/internal/auth"
)

func TestMiddlewareLimitsPerKey(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(rate.Limit(1), 2, time.Hour, func(r *http.Request) string { return r.Header.Get("X-Key") })
	defer l.Stop()
	l.now = func() time.Time { return clock }

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	do := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.Header.Set("X-Key", key)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := do("a"); rr.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected burst to pass, got %d", i, rr.Code)
		}
	}
	rr := do("a")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After 1, got %q", got)
	}
	if rr := do("b"); rr.Code != http.StatusNoContent {
		t.Fatalf("expected separate bucket for another key, got %d", rr.Code)
	}

	clock = clock.Add(time.Second)
	if rr := do("a"); rr.Code != http.StatusNoContent {
		t.Fatalf("expected token to refill, got %d", rr.Code)
	}
}

func TestPruneDropsIdleBuckets(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(rate.Limit(1), 1, time.Hour, func(*http.Request) string { return "k" })
	defer l.Stop()
	l.now = func() time.Time { return clock }

	l.reserve("old")
	clock = clock.Add(time.Minute)
	l.reserve("new")
	l.prune(clock.Add(-time.Second))

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.buckets["old"]; ok {
		t.Fatalf("expected idle bucket to be pruned")
	}
	if _, ok := l.buckets["new"]; !ok {
		t.Fatalf("expected recent bucket to remain")
	}
}

func TestEvictsOldestWhenFull(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(rate.Limit(1), 1, time.Hour, nil)
	defer l.Stop()
	l.now = func() time.Time { return clock }
	l.maxEntries = 2

	l.reserve("a")
	clock = clock.Add(time.Second)
	l.reserve("b")
	clock = clock.Add(time.Second)
	l.reserve("c")

	if _, ok := l.buckets["a"]; ok || len(l.buckets) != 2 {
		t.Fatalf("expected oldest bucket evicted, have %d buckets", len(l.buckets))
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		xff     string
		realIP  string
		want    string
	}{
		{name: "direct", remote: "203.0.113.5:1234", want: "203.0.113.5"},
		{name: "forwarded without proxy list", remote: "10.0.0.1:1", xff: "198.51.100.7, 10.0.0.1", want: "198.51.100.7"},
		{name: "trusted proxy", trusted: []string{"10.0.0.0/8"}, remote: "10.1.2.3:1", xff: "198.51.100.7", want: "198.51.100.7"},
		{name: "untrusted peer ignores header", trusted: []string{"10.0.0.1"}, remote: "203.0.113.5:1", xff: "198.51.100.7", want: "203.0.113.5"},
		{name: "real ip fallback", trusted: []string{"10.0.0.1"}, remote: "10.0.0.1:1", realIP: "198.51.100.9", want: "198.51.100.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := ClientIP(tt.trusted)(req); got != tt.want {
				t.Fatalf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubjectOrIP(t *testing.T) {
	key := SubjectOrIP(nil)
	req := httptest.NewRequest(http.MethodPost, "/chat/messages", nil)
	req.RemoteAddr = "203.0.113.5:1"
	if got := key(req); got != "ip:203.0.113.5" {
		t.Fatalf("unexpected anonymous key %q", got)
	}
	session := auth.Session{State: auth.StateAuthenticated, Identity: &auth.Identity{Subject: "sub-1"}}
	req = req.WithContext(auth.WithSession(req.Context(), session))
	if got := key(req); got != "user:sub-1" {
		t.Fatalf("unexpected signed-in key %q", got)
	}
}
