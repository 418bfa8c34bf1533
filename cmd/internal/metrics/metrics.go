// Package metrics defines the service's Prometheus metrics.
//
// All metrics register with the default registry and are served from the
// /metrics endpoint. Naming follows Prometheus conventions: authd_ prefix,
// _total for counters, _seconds for duration histograms.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts handled requests by route, method and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authd_http_requests_total",
			Help: "Total HTTP requests by route, method and status class.",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPRequestDurationSeconds is a histogram of request latency by route.
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authd_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds by route.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"route"},
	)

	// LoginsTotal counts login attempts by outcome.
	// Outcomes: success, invalid_credentials, locked, error.
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authd_logins_total",
			Help: "Total login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// AdminOpsTotal counts administrative operations by action and outcome.
	AdminOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authd_admin_ops_total",
			Help: "Total credential administration operations by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	// ThrottleBlocksTotal counts login attempts refused by the lockout limiter.
	ThrottleBlocksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "authd_throttle_blocks_total",
			Help: "Total login attempts blocked by the failed-login limiter.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		LoginsTotal,
		AdminOpsTotal,
		ThrottleBlocksTotal,
	)
}

// RecordHTTPRequest records one handled request.
func RecordHTTPRequest(route, method, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordLogin records one login attempt outcome.
func RecordLogin(outcome string) {
	LoginsTotal.WithLabelValues(outcome).Inc()
}

// RecordAdminOp records one administration operation outcome.
func RecordAdminOp(action, outcome string) {
	AdminOpsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordThrottleBlock records one limiter refusal.
func RecordThrottleBlock() {
	ThrottleBlocksTotal.Inc()
}
