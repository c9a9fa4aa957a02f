// Package telemetry provides application-level observability for the household service.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<HLD_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format (Content-Type: text/plain; version=0.0.4) and is intended to be scraped by
// a Prometheus server every 15–60 seconds.  It is NOT served by the Gin router and
// is therefore absent from the API surface.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Active-context switch counters and membership load latency
//   - Refresh propagation and cache invalidation counters
//   - Preference pruner sweep counters
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/groups/:id)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as group ids.
//
// # Usage
//
// Import the package for side effects so metrics are registered before the HTTP server
// starts listening:
//
//	import _ "github.com/hearthhub/hearthhub/internal/telemetry"
//
// Or import it directly and use an exported var:
//
//	telemetry.ContextSwitchesTotal.WithLabelValues("success").Inc()
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template (e.g. /api/v1/groups/:id/members),
// NOT the raw URL, to prevent unbounded cardinality.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - Requests by route:                 sum by (path) (rate(http_requests_total[5m]))
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and exponential-ish
// buckets from 5 ms to 30 s.  Use histogram_quantile to compute latency percentiles.
//
// Example PromQL queries:
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
//   - Average latency:                   rate(http_request_duration_seconds_sum[5m]) / rate(http_request_duration_seconds_count[5m])
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Active-context metrics — recorded by the context API handlers.
//
// ContextSwitchesTotal is a CounterVec with label {outcome} ("success", "noop",
// or "invalid_target").  A rising invalid_target rate usually means a client is
// holding a stale membership list and should refetch.
//
// Example PromQL queries:
//   - Switch rate:           rate(context_switches_total{outcome="success"}[1h])
//   - Invalid target ratio:  sum(rate(context_switches_total{outcome="invalid_target"}[1h])) / sum(rate(context_switches_total[1h]))
//
// MembershipLoadDuration is a Histogram using the default Prometheus buckets.
// Each observation is one full membership list load during a context refetch.
//
// Example PromQL queries:
//   - p95 load time:  histogram_quantile(0.95, rate(membership_load_duration_seconds_bucket[1h]))
var (
	ContextSwitchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "context_switches_total",
			Help: "Total number of active-context switch requests, by outcome.",
		},
		[]string{"outcome"},
	)

	MembershipLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "membership_load_duration_seconds",
			Help:    "Duration of a single membership list load during context refetch.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Refresh propagation metrics.
//
// RefreshPropagationsTotal is a plain Counter incremented once per refresh
// counter bump (context change or forced refresh) that reached dependent
// consumers.
//
// CacheInvalidationsTotal is a CounterVec with labels {invalidator, result}
// ("ok" or "error") incremented once per invalidator per propagated switch.
//
// Example PromQL queries:
//   - Propagation rate:          rate(refresh_propagations_total[1h])
//   - Invalidation error rate:   rate(cache_invalidations_total{result="error"}[1h])
var (
	RefreshPropagationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refresh_propagations_total",
			Help: "Total number of refresh counter bumps propagated to dependent consumers.",
		},
	)

	CacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Total number of group cache invalidations, by invalidator and result.",
		},
		[]string{"invalidator", "result"},
	)
)

// PreferencePrunerDeletedTotal is a plain Counter (no labels) incremented once per
// stale preference key removed by the preference pruner background job. A sudden
// spike usually follows a bulk group deletion.
//
// Example PromQL queries:
//   - Prune rate:  rate(preference_pruner_deleted_total[24h])
var PreferencePrunerDeletedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "preference_pruner_deleted_total",
		Help: "Total number of stale preferred-group keys removed by the pruner job.",
	},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
//
// Example PromQL queries:
//   - Pool utilisation (%): db_open_connections / <HLD_DATABASE_MAX_CONNECTIONS> * 100
//   - Alert on near-exhaustion: db_open_connections > 20  (for max_connections=25)
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
