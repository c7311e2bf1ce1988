package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cafeteria-hr/service_layer/internal/logging"
)

func TestRateLimiterRejectsOverLimit(t *testing.T) {
	rl := NewRateLimiter(1, 1, logging.NewDefault("test"))
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}

	// A different client has its own bucket.
	other := httptest.NewRequest(http.MethodGet, "/users", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("other client: expected 200, got %d", rec.Code)
	}
}

func TestCleanupResetsOversizedMap(t *testing.T) {
	rl := NewRateLimiter(10, 20, logging.NewDefault("test"))
	for i := 0; i < 10001; i++ {
		rl.getLimiter(fmt.Sprintf("key-%d", i))
	}
	rl.Cleanup()

	rl.mu.RLock()
	n := len(rl.limiters)
	rl.mu.RUnlock()
	if n != 0 {
		t.Errorf("expected the limiter map reset, got %d entries", n)
	}
}

func TestStopCleanupIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(10, 20, logging.NewDefault("test"))
	rl.StartCleanup(time.Millisecond)

	rl.StopCleanup()
	rl.StopCleanup()

	select {
	case <-rl.stop:
	case <-time.After(time.Second):
		t.Fatal("stop channel should be closed")
	}
}
