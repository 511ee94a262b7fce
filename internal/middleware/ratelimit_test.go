package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"matchpulse/internal/config"

	"github.com/gin-gonic/gin"
)

func rateLimitRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	cfg := &config.Config{
		Security: config.SecurityConfig{
			RateLimiting: config.RateLimitingConfig{Enabled: false},
		},
	}
	router := rateLimitRouter(cfg)

	for i := 0; i < 100; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/test", nil)
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i, w.Code)
		}
	}
}

func TestRateLimitMiddleware_BasicLimiting(t *testing.T) {
	cfg := &config.Config{
		Security: config.SecurityConfig{
			RateLimiting: config.RateLimitingConfig{
				Enabled:           true,
				RequestsPerMinute: 10,
				Burst:             3,
			},
		},
	}
	router := rateLimitRouter(cfg)

	allowed, limited := 0, 0
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "203.0.113.5:12345"
		router.ServeHTTP(w, req)
		switch w.Code {
		case http.StatusOK:
			allowed++
		case http.StatusTooManyRequests:
			limited++
		default:
			t.Fatalf("request %d: unexpected status %d", i, w.Code)
		}
	}

	// Burst of 3 tokens; everything past the burst is dropped.
	if allowed < 3 {
		t.Errorf("expected at least the burst allowed, got %d", allowed)
	}
	if limited == 0 {
		t.Error("expected some requests limited, got none")
	}
}

func TestTokenBucket_Refill(t *testing.T) {
	b := newBucket(60, 1)
	if !b.allow() {
		t.Fatal("first request should pass")
	}
	if b.allow() {
		t.Fatal("bucket should be empty")
	}
	// One token per second; pretend two seconds passed.
	b.mu.Lock()
	b.lastRefill = b.lastRefill.Add(-2 * time.Second)
	b.mu.Unlock()
	if !b.allow() {
		t.Fatal("bucket should have refilled")
	}
}
