package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/whistleblower-api/internal/service"
	appErrors "github.com/noah-isme/whistleblower-api/pkg/errors"
	"github.com/noah-isme/whistleblower-api/pkg/response"
)

// RateCounter increments fixed-window counters.
type RateCounter interface {
	Enabled() bool
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimitRule names a limited route group.
type RateLimitRule struct {
	Scope  string
	Limit  int64
	Window time.Duration
}

// RateLimit rejects clients that exceed rule.Limit requests per window. The
// client address is hashed before it becomes part of a key. Counter errors
// let the request through.
func RateLimit(counter RateCounter, rule RateLimitRule, metrics *service.MetricsService, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rule.Window <= 0 {
		rule.Window = time.Minute
	}
	return func(c *gin.Context) {
		if counter == nil || !counter.Enabled() || rule.Limit <= 0 {
			c.Next()
			return
		}

		key := rateLimitKey(rule.Scope, c.ClientIP())
		count, ttl, err := counter.Incr(c.Request.Context(), key, rule.Window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("scope", rule.Scope), zap.Error(err))
			c.Next()
			return
		}

		remaining := rule.Limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(rule.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > rule.Limit {
			if ttl <= 0 {
				ttl = rule.Window
			}
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			metrics.RateLimited(rule.Scope)
			response.Error(c, appErrors.ErrRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}

func rateLimitKey(scope, clientIP string) string {
	sum := sha256.Sum256([]byte(scope + "|" + clientIP))
	return "ratelimit:" + scope + ":" + hex.EncodeToString(sum[:12])
}
