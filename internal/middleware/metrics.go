package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/warungtech/restopos/internal/metrics"
)

// PrometheusMiddleware records request counts and latencies. Live update
// streams are counted but excluded from the duration histogram: their
// duration is the connection lifetime, not handler latency.
func PrometheusMiddleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		statusCode := strconv.Itoa(c.Writer.Status())
		metrics.IncrementAPIRequests(c.Request.Method, path, statusCode)

		if isStreamPath(path) {
			return
		}
		metrics.RecordAPIRequestDuration(c.Request.Method, path, time.Since(start).Seconds())
	})
}

func isStreamPath(path string) bool {
	return strings.HasSuffix(path, "/live")
}
