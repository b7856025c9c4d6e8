package security

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(max int) (*RateLimiter, *stepClock) {
	clock := &stepClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(max, time.Minute)
	rl.now = clock.Now
	return rl, clock
}

// TestRateLimiter tests rate limiting per client
func TestRateLimiter(t *testing.T) {
	t.Run("blocks excessive requests from same IP", func(t *testing.T) {
		rl, _ := newTestLimiter(5)
		for i := 0; i < 5; i++ {
			assert.True(t, rl.Allow("192.168.1.100"), "Request %d should be allowed", i+1)
		}
		assert.False(t, rl.Allow("192.168.1.100"))
	})

	t.Run("different IPs have separate limits", func(t *testing.T) {
		rl, _ := newTestLimiter(1)
		assert.True(t, rl.Allow("192.168.1.101"))
		assert.False(t, rl.Allow("192.168.1.101"))
		assert.True(t, rl.Allow("192.168.1.102"))
	})

	t.Run("bucket refills after the window", func(t *testing.T) {
		rl, clock := newTestLimiter(1)
		assert.True(t, rl.Allow("10.0.0.1"))
		assert.False(t, rl.Allow("10.0.0.1"))

		clock.Advance(time.Minute)
		assert.True(t, rl.Allow("10.0.0.1"))
	})

	t.Run("zero limit disables limiting", func(t *testing.T) {
		rl, _ := newTestLimiter(0)
		for i := 0; i < 1000; i++ {
			assert.True(t, rl.Allow("10.0.0.2"))
		}
	})

	t.Run("idle buckets are evicted", func(t *testing.T) {
		rl, clock := newTestLimiter(3)
		rl.Allow("10.0.0.3")
		rl.Allow("10.0.0.4")
		assert.Equal(t, 2, rl.ActiveClients())

		clock.Advance(5 * time.Minute)
		rl.Allow("10.0.0.4")
		clock.Advance(6 * time.Minute)
		rl.cleanupOldBuckets()
		assert.Equal(t, 1, rl.ActiveClients())
	})
}

func testRouter(rl *RateLimiter) *mux.Router {
	cfg := &config.Config{Logging: config.LoggingConfig{Level: "error", Format: "json"}}
	m := NewSecurityMiddleware(logger.NewLogger(cfg), rl)

	router := mux.NewRouter()
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	router.HandleFunc("/api/v1/runs/{runId}", ok)
	router.HandleFunc("/health", ok)
	for _, mw := range m.Middlewares() {
		router.Use(mw)
	}
	return router
}

func TestSecurityMiddleware_Headers(t *testing.T) {
	router := testRouter(nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/runs/run-1", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "deny", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestSecurityMiddleware_RateLimit(t *testing.T) {
	rl, _ := newTestLimiter(2)
	router := testRouter(rl)

	request := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, request("/api/v1/runs/run-1").Code)
	assert.Equal(t, http.StatusOK, request("/api/v1/runs/run-1").Code)

	limited := request("/api/v1/runs/run-1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, request("/health").Code, "probes are never limited")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.1:1234", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.2 "}, "10.0.0.1:1234", "198.51.100.2"},
		{"remote addr", nil, "192.0.2.10:5678", "192.0.2.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
