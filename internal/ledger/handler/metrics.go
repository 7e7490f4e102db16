package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ledgerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	ledgerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	ledgerBlocksAppendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_blocks_appended_total",
		Help: "Total blocks appended to the ledger.",
	})

	ledgerAppendRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_append_rejected_total",
		Help: "Total append attempts rejected, by reason.",
	}, []string{"reason"})

	ledgerHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_height",
		Help: "Number of blocks in the ledger, genesis included.",
	})

	ledgerVerifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_verify_total",
		Help: "Total integrity checks by result.",
	}, []string{"result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		ledgerRequestsTotal.WithLabelValues(method, path, status).Inc()
		ledgerRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordLedgerAppend records a successful block append.
func RecordLedgerAppend() {
	ledgerBlocksAppendedTotal.Inc()
}

// RecordAppendRejected records a rejected append.
func RecordAppendRejected(reason string) {
	ledgerAppendRejectedTotal.WithLabelValues(reason).Inc()
}

// SetLedgerHeight sets the ledger height gauge.
func SetLedgerHeight(n int) {
	ledgerHeight.Set(float64(n))
}

// RecordVerify records an integrity check result.
func RecordVerify(valid bool) {
	if valid {
		ledgerVerifyTotal.WithLabelValues("valid").Inc()
	} else {
		ledgerVerifyTotal.WithLabelValues("invalid").Inc()
	}
}
