package ratelimit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HandleStatus returns the budgets applying to the requesting IP.
func (rl *RateLimiter) HandleStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ip": c.ClientIP(),
			"limits": gin.H{
				"ip_per_minute":  rl.config.IPPerMinute,
				"audit_per_hour": rl.config.AuditPerHour,
			},
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// HandleAdminStats returns limiter internals. Mounted behind the admin
// JWT middleware.
func (rl *RateLimiter) HandleAdminStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"limiter_stats": rl.GetStats(),
			"timestamp":     time.Now().Format(time.RFC3339),
		})
	}
}

// HandleAdminInvalidateIP resets every budget for one IP.
func (rl *RateLimiter) HandleAdminInvalidateIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.Param("ip")
		if ip == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "IP address is required"})
			return
		}

		if err := rl.InvalidateIP(c.Request.Context(), ip); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "failed to invalidate IP rate limits",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":   "IP rate limits invalidated",
			"ip":        ip,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}
