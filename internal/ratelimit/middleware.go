package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// IPRateLimitMiddleware enforces the general per-IP budget. Limiter
// failures never block the request.
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowIP(c.Request.Context(), ip)
		if err != nil {
			slog.Error("rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		setLimitHeaders(c, result)

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitBlock("ip")
			}
			rejectLimited(c, result, fmt.Sprintf("rate limit of %d requests per minute exceeded", result.Limit))
			return
		}
		c.Next()
	}
}

// AuditRateLimitMiddleware enforces the tighter per-hour budget on the
// sensitivity-audit endpoint.
func (rl *RateLimiter) AuditRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowAudit(c.Request.Context(), ip)
		if err != nil {
			slog.Error("audit rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		setLimitHeaders(c, result)

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitBlock("audit")
			}
			rejectLimited(c, result, fmt.Sprintf("audit limit of %d requests per hour exceeded", result.Limit))
			return
		}
		c.Next()
	}
}

func setLimitHeaders(c *gin.Context, result *Result) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func rejectLimited(c *gin.Context, result *Result, message string) {
	retry := int(result.RetryAfter.Seconds())
	c.Header("Retry-After", strconv.Itoa(retry))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":       "rate limit exceeded",
		"message":     message,
		"retry_after": retry,
		"reset_at":    result.ResetAt.Unix(),
	})
	c.Abort()
}
