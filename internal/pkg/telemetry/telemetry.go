// Package telemetry is the Prometheus metrics surface the HTTP
// middleware and outbox processor record against, replacing the
// teacher's in-memory src/metrics package with promauto-registered
// collectors so scrapes observe real process state instead of a
// request log kept in a slice.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPDuration is the request-latency histogram, labeled the way
	// perf-test's PromQL queries expect (method, endpoint, status).
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_request_total",
		Help: "Total HTTP requests processed.",
	}, []string{"method", "endpoint", "status"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "HTTP requests currently being served.",
	})

	UptimeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "process_uptime_seconds",
		Help: "Seconds since the process started.",
	})

	TransfersInitiatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfers_initiated_total",
		Help: "Transfers initiated, labeled by outcome.",
	}, []string{"outcome"})

	TransfersReversedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transfers_reversed_total",
		Help: "Transfers successfully reversed.",
	})

	OutboxDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_dispatched_total",
		Help: "Outbox events dispatched, labeled by outcome.",
	}, []string{"outcome"})

	OutboxDeadLetteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_dead_lettered_total",
		Help: "Outbox events that exhausted their retry budget.",
	})

	ReconciliationMismatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_verdict_total",
		Help: "Reconciliation runs, labeled by verdict.",
	}, []string{"verdict"})
)

var startTime = time.Now()

// UpdateUptime refreshes the process-uptime gauge; called once per
// /metrics scrape the way the teacher's updateSystemMetricsForPrometheus
// refreshed its system gauges before serving promhttp.Handler.
func UpdateUptime() {
	UptimeGauge.Set(time.Since(startTime).Seconds())
}
