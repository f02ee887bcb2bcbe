package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPActiveConnections prometheus.Gauge
	RefreshRequestsTotal  *prometheus.CounterVec
	PushClientsConnected  prometheus.Gauge

	httpMetricsOnce sync.Once
)

// initializeHTTPMetrics registers the dashboard server metrics once
func initializeHTTPMetrics() {
	httpMetricsOnce.Do(func() {
		HTTPRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		)

		HTTPRequestDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "status"},
		)

		HTTPActiveConnections = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_active_connections",
				Help: "Number of active HTTP connections",
			},
		)

		RefreshRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erdashboard_refresh_requests_total",
				Help: "Total number of on-demand refresh requests",
			},
			[]string{"result"}, // "success", "rate_limited"
		)

		PushClientsConnected = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "erdashboard_push_clients",
				Help: "Number of connected WebSocket push clients",
			},
		)

		mm := GetInstance()
		mm.registry.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			HTTPActiveConnections,
			RefreshRequestsTotal,
			PushClientsConnected,
		)
	})
}

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if !businessMetricsEnabled() {
		return
	}

	initializeHTTPMetrics()

	status := strconv.Itoa(statusCode)

	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// RecordRefreshRequest records the result of an on-demand refresh
func RecordRefreshRequest(result string) {
	if !businessMetricsEnabled() {
		return
	}

	initializeHTTPMetrics()

	RefreshRequestsTotal.WithLabelValues(result).Inc()
}

// SetPushClients publishes the number of connected push clients
func SetPushClients(n int) {
	if !businessMetricsEnabled() {
		return
	}

	initializeHTTPMetrics()

	PushClientsConnected.Set(float64(n))
}

// IncActiveConnections increments active connections
func IncActiveConnections() {
	if !businessMetricsEnabled() {
		return
	}

	initializeHTTPMetrics()

	HTTPActiveConnections.Inc()
}

// DecActiveConnections decrements active connections
func DecActiveConnections() {
	if !businessMetricsEnabled() {
		return
	}

	initializeHTTPMetrics()

	HTTPActiveConnections.Dec()
}
