package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "explorer_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "explorer_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// AssetDeletions counts image asset deletion attempts by storage backend and outcome.
	AssetDeletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "explorer_asset_deletions_total",
		Help: "Total number of image asset deletion attempts",
	}, []string{"backend", "outcome"})

	// UploadedFiles counts accepted image uploads by storage backend.
	UploadedFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "explorer_uploaded_files_total",
		Help: "Total number of image files stored",
	}, []string{"backend"})

	// AuthAttempts counts register and login attempts by result.
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "explorer_auth_attempts_total",
		Help: "Total number of authentication attempts",
	}, []string{"action", "result"})

	// RateLimitRejections counts requests refused by the per-route limiter.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "explorer_rate_limit_rejections_total",
		Help: "Total number of requests rejected by rate limiting",
	}, []string{"resource"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
