package handlers

import (
	"ledgercore/internal/pkg/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics serves the Prometheus scrape endpoint, refreshing the
// uptime gauge first the way the teacher's PrometheusMetrics handler
// refreshed its system gauges before delegating to promhttp.Handler.
func Metrics(c *gin.Context) {
	telemetry.UpdateUptime()
	promhttp.Handler().ServeHTTP(c.Writer, c.Request)
}
