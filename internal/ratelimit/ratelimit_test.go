package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/time/rate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fixedClock(l *Limiter, t time.Time) *time.Time {
	now := t
	l.now = func() time.Time { return now }
	return &now
}

func TestAllowPerKey(t *testing.T) {
	l := New(rate.Every(time.Minute), 2, time.Hour)
	now := fixedClock(l, time.Unix(1000, 0))

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("expected burst of two to pass")
	}
	if l.Allow("a") {
		t.Fatalf("third request should be limited")
	}
	if !l.Allow("b") {
		t.Fatalf("other keys have their own bucket")
	}

	*now = now.Add(time.Minute)
	if !l.Allow("a") {
		t.Fatalf("token should refill after a minute")
	}
}

func TestSweepDropsIdleKeys(t *testing.T) {
	l := New(rate.Every(time.Second), 1, time.Minute)
	now := fixedClock(l, time.Unix(1000, 0))

	l.Allow("old")
	*now = now.Add(2 * time.Minute)
	l.Allow("fresh")

	if removed := l.Sweep(); removed != 1 {
		t.Fatalf("Sweep removed %d keys, want 1", removed)
	}
	if l.Len() != 1 {
		t.Fatalf("Len = %d, want 1", l.Len())
	}
}

func TestMiddlewareReturns429WithRetryAfter(t *testing.T) {
	l := New(rate.Every(30*time.Second), 1, time.Hour)
	fixedClock(l, time.Unix(1000, 0))
	h := l.Middleware(ClientIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/contact", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := post(); rec.Code != http.StatusNoContent {
		t.Fatalf("first POST = %d", rec.Code)
	}
	rec := post()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "30" {
		t.Fatalf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}

	get := httptest.NewRequest(http.MethodGet, "/contact", nil)
	get.RemoteAddr = "203.0.113.9:5555"
	getRec := httptest.NewRecorder()
	h.ServeHTTP(getRec, get)
	if getRec.Code != http.StatusNoContent {
		t.Fatalf("GET should not be limited, got %d", getRec.Code)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	l := New(rate.Every(time.Second), 1, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
}
