package middleware

import (
	"strconv"
	"time"

	"ledgercore/internal/pkg/telemetry"

	"github.com/gin-gonic/gin"
)

// Prometheus records per-request latency and counts against the
// telemetry collectors, labeled by method/route template/status.
func Prometheus() gin.HandlerFunc {
	return func(c *gin.Context) {
		telemetry.HTTPRequestsInFlight.Inc()
		defer telemetry.HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		method := c.Request.Method
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
		telemetry.HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	}
}
