package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestFixedWindowLimiterRedis(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit", 2, time.Second)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	t.Cleanup(func() { _ = limiter.Close() })
	ctx := context.Background()
	if ok, _ := limiter.Allow(ctx, "ip-1"); !ok {
		t.Fatalf("first request should pass")
	}
	if ok, _ := limiter.Allow(ctx, "ip-1"); !ok {
		t.Fatalf("second request should pass")
	}
	ok, retry := limiter.Allow(ctx, "ip-1")
	if ok {
		t.Fatalf("third request should be blocked")
	}
	if retry <= 0 || retry > time.Second {
		t.Fatalf("retry hint out of range: %v", retry)
	}
	if ok, _ := limiter.Allow(ctx, "ip-2"); !ok {
		t.Fatalf("other keys keep their own quota")
	}
}

func TestFixedWindowLimiterRedisFailClosed(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit", 1, time.Second)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	redis.Close()
	if ok, _ := limiter.Allow(context.Background(), "ip-1"); ok {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterRequiresRedisAddr(t *testing.T) {
	limiter, err := NewRedisFixedWindowLimiter("", "", "test:ratelimit", 1, time.Second)
	if err == nil || limiter != nil {
		t.Fatalf("expected constructor error for empty redis addr")
	}
}

func TestLocalLimiter(t *testing.T) {
	limiter, err := NewLocalLimiter(2, time.Minute)
	if err != nil {
		t.Fatalf("new local limiter: %v", err)
	}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, _ := limiter.Allow(ctx, "a"); !ok {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	ok, retry := limiter.Allow(ctx, "a")
	if ok || retry <= 0 {
		t.Fatalf("expected block with retry hint, got ok=%v retry=%v", ok, retry)
	}
	now = now.Add(31 * time.Second)
	if ok, _ := limiter.Allow(ctx, "a"); !ok {
		t.Fatalf("a token should have refilled")
	}
}

func TestMiddlewareReturns429(t *testing.T) {
	limiter, _ := NewLocalLimiter(1, time.Minute)
	h := Middleware(limiter, func(*http.Request) string { return "k" }, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
}

func TestMiddlewareNilLimiterPassesThrough(t *testing.T) {
	called := false
	h := Middleware(nil, nil, http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatalf("handler not called")
	}
}
