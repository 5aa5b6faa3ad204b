package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/uptwn/booking-backend/internal/config"
	"github.com/uptwn/booking-backend/internal/utils"
)

// tokenBucketScript refills by whole intervals and takes one token per call.
// Returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])
	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local intervals = math.floor(math.max(0, now_ms - last_refill) / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + intervals * refill_tokens)
			last_refill = last_refill + intervals * interval_ms
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)
	return { allowed, tokens, retry_after_ms }
`)

// Bucket takes one token for key
type Bucket interface {
	Take(ctx context.Context, key string) (allowed bool, remaining int64, retryAfter time.Duration, err error)
}

// RedisBucket is a token bucket kept in Redis hashes
type RedisBucket struct {
	rdb *redis.Client
	cfg config.RateLimitConfig
}

// NewRedisBucket creates a RedisBucket
func NewRedisBucket(rdb *redis.Client, cfg config.RateLimitConfig) *RedisBucket {
	return &RedisBucket{rdb: rdb, cfg: cfg}
}

// Take runs the bucket script for key
func (b *RedisBucket) Take(ctx context.Context, key string) (bool, int64, time.Duration, error) {
	args := []interface{}{
		time.Now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL / time.Second),
	}

	vals, err := tokenBucketScript.Run(ctx, b.rdb, []string{key}, args...).Int64Slice()
	if err != nil {
		return false, 0, 0, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	if len(vals) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected rate limit script result: %v", vals)
	}
	return vals[0] == 1, vals[1], time.Duration(vals[2]) * time.Millisecond, nil
}

// RateLimit limits each caller per route. A nil bucket disables limiting,
// and a bucket error lets the request through.
func RateLimit(bucket Bucket, cfg config.RateLimitConfig, logger *logrus.Logger) gin.HandlerFunc {
	if !cfg.Enabled || bucket == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := rateKey(cfg.Prefix, c)

		allowed, remaining, retryAfter, err := bucket.Take(c.Request.Context(), key)
		if err != nil {
			logger.WithError(err).WithField("key", key).Warn("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			secs := int(math.Ceil(retryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too_many_requests",
				"message":     "Rate limit exceeded",
				"code":        "RATE_LIMITED",
				"retry_after": secs,
			})
			return
		}

		c.Next()
	}
}

// rateKey is prefix:caller:route where caller is the user id, or the client
// IP for anonymous requests
func rateKey(prefix string, c *gin.Context) string {
	caller := "ip:" + utils.GetRealIP(c)
	if userCtx, ok := GetUserContext(c); ok {
		caller = "user:" + userCtx.UserID.String()
	}
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return strings.Join([]string{prefix, caller, c.Request.Method + " " + route}, ":")
}
