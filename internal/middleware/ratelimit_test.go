package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptwn/booking-backend/internal/config"
)

type fakeBucket struct {
	allowed    bool
	remaining  int64
	retryAfter time.Duration
	err        error
	keys       []string
}

func (b *fakeBucket) Take(_ context.Context, key string) (bool, int64, time.Duration, error) {
	b.keys = append(b.keys, key)
	return b.allowed, b.remaining, b.retryAfter, b.err
}

var testRateConfig = config.RateLimitConfig{Enabled: true, Capacity: 30, Prefix: "rl"}

func rateLimitedRouter(bucket Bucket, cfg config.RateLimitConfig, userID *uuid.UUID) *gin.Engine {
	router := setupTestRouter()
	router.POST("/time-slots/:id/hold", func(c *gin.Context) {
		if userID != nil {
			c.Set(UserContextKey, UserContext{UserID: *userID})
		}
		c.Next()
	}, RateLimit(bucket, cfg, testLogger()), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"message": "held"})
	})
	return router
}

func TestRateLimit_Allows(t *testing.T) {
	bucket := &fakeBucket{allowed: true, remaining: 29}
	userID := uuid.New()
	router := rateLimitedRouter(bucket, testRateConfig, &userID)

	w := doRequest(router, "POST", "/time-slots/abc/hold", "")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "30", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "29", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, []string{"rl:user:" + userID.String() + ":POST /time-slots/:id/hold"}, bucket.keys)
}

func TestRateLimit_Blocks(t *testing.T) {
	bucket := &fakeBucket{allowed: false, retryAfter: 1500 * time.Millisecond}
	router := rateLimitedRouter(bucket, testRateConfig, nil)

	w := doRequest(router, "POST", "/time-slots/abc/hold", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
	assert.Contains(t, bucket.keys[0], "rl:ip:")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	bucket := &fakeBucket{err: errors.New("dial tcp: connection refused")}
	router := rateLimitedRouter(bucket, testRateConfig, nil)

	w := doRequest(router, "POST", "/time-slots/abc/hold", "")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimit_Disabled(t *testing.T) {
	t.Run("Nil Bucket", func(t *testing.T) {
		w := doRequest(rateLimitedRouter(nil, testRateConfig, nil), "POST", "/time-slots/abc/hold", "")
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("Config Off", func(t *testing.T) {
		bucket := &fakeBucket{allowed: false}
		cfg := testRateConfig
		cfg.Enabled = false
		w := doRequest(rateLimitedRouter(bucket, cfg, nil), "POST", "/time-slots/abc/hold", "")
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Empty(t, bucket.keys)
	})
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	router := setupTestRouter()
	router.Use(RequestLogger(testLogger()))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
