package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// slowRequestThreshold triggers a performance warning. Audit requests run
// full PageRank reruns per incident edge, so the bar is generous.
const slowRequestThreshold = 10 * time.Second

// Middleware records request metrics and logs every request.
func Middleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		metrics.ObserveRequest(path, strconv.Itoa(status), duration)
		logger.RequestLogger(c.Request.Method, path, c.ClientIP(), status, duration)

		if duration > slowRequestThreshold {
			logger.PerformanceLogger("slow_request", duration.Seconds(), "seconds")
		}
	}
}
