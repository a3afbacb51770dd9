package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/storefront/pkg/config"
	"github.com/wyfcoding/storefront/pkg/logger"
	"github.com/wyfcoding/storefront/pkg/ratelimit"
	"github.com/wyfcoding/storefront/pkg/response"
)

// RateLimitMiddleware 按客户端 IP 限流，限流器出错时放行
func RateLimitMiddleware(limiter ratelimit.RateLimiter, cfg config.RateLimitConfig) gin.HandlerFunc {
	limit := ratelimit.Limit{
		Rate:   cfg.Rate,
		Period: cfg.Period,
		Burst:  cfg.Burst,
	}
	if limit.Burst < 1 {
		limit.Burst = limit.Rate
	}

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s", c.ClientIP())
		res, err := limiter.Allow(c.Request.Context(), key, limit)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(res.ResetAfter/time.Second), 10))

		if !res.Allowed {
			retry := res.RetryAfter
			if retry < time.Second {
				retry = time.Second
			}
			c.Header("Retry-After", strconv.FormatInt(int64(retry/time.Second), 10))
			response.ErrorWithStatus(c, http.StatusTooManyRequests, "Too Many Requests", res.RetryAfter.String())
			return
		}

		c.Next()
	}
}
