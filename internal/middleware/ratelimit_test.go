package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, cfg RateLimiterConfig) *RateLimiter {
	t.Helper()
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	rl := NewRateLimiter(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	t.Cleanup(rl.Stop)
	return rl
}

func requestFrom(remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/user/getUsers/ranking", nil)
	req.RemoteAddr = remoteAddr
	return req
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_AllowsRequestsWithinBurst(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{GeneralRate: 2, GeneralBurst: 5, WriteRate: 1, WriteBurst: 1})
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("10.0.0.1:5000"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfter(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{GeneralRate: 0.5, GeneralBurst: 1, WriteRate: 1, WriteBurst: 1})
	handler := rl.GeneralMiddleware()(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("10.0.0.1:5000"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("10.0.0.1:5001"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retryAfter != 2 {
		t.Errorf("Retry-After = %q, want 2", w.Header().Get("Retry-After"))
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("body = %+v, err = %v", body, err)
	}
}

func TestRateLimitMiddleware_ClientsAreIndependent(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{GeneralRate: 0.1, GeneralBurst: 1, WriteRate: 1, WriteBurst: 1})
	handler := rl.GeneralMiddleware()(okHandler())

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom(addr))
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", addr, w.Code)
		}
	}
	if rl.GeneralLimiterCount() != 3 {
		t.Errorf("GeneralLimiterCount = %d, want 3", rl.GeneralLimiterCount())
	}
}

func TestRateLimitMiddleware_WriteLimitIsSeparate(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{GeneralRate: 10, GeneralBurst: 10, WriteRate: 0.1, WriteBurst: 1})
	general := rl.GeneralMiddleware()(okHandler())
	write := rl.WriteMiddleware()(okHandler())

	write.ServeHTTP(httptest.NewRecorder(), requestFrom("10.0.0.1:1"))
	w := httptest.NewRecorder()
	write.ServeHTTP(w, requestFrom("10.0.0.1:1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second write: status = %d, want 429", w.Code)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestFrom("10.0.0.1:1"))
	if w.Code != http.StatusOK {
		t.Errorf("read after write limit: status = %d, want 200", w.Code)
	}
	if rl.WriteLimiterCount() != 1 {
		t.Errorf("WriteLimiterCount = %d, want 1", rl.WriteLimiterCount())
	}
}

func TestRateLimiter_CleanupRemovesIdleEntries(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{GeneralRate: 1, GeneralBurst: 1, WriteRate: 1, WriteBurst: 1, CleanupInterval: time.Hour})
	rl.general.get("10.0.0.1")
	rl.general.limiters["10.0.0.1"].lastAccess = time.Now().Add(-3 * time.Hour)
	rl.general.get("10.0.0.2")

	rl.cleanup()

	if rl.GeneralLimiterCount() != 1 {
		t.Errorf("GeneralLimiterCount = %d, want 1", rl.GeneralLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := newTestLimiter(t, DefaultRateLimiterConfig(120, 30))
	rl.Stop()
	rl.Stop()
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig(120, 30)
	if cfg.GeneralRate != 2 || cfg.GeneralBurst != 120 || cfg.WriteBurst != 30 {
		t.Errorf("cfg = %+v", cfg)
	}
}
