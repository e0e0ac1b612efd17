// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Aggregation metrics
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	PoolsAggregated  *prometheus.GaugeVec
	PoolsSkipped     *prometheus.CounterVec
	PoolsDisappeared *prometheus.GaugeVec
	SnapshotsFolded  *prometheus.CounterVec

	// Upstream metrics
	RPCCallLatency   *prometheus.HistogramVec
	AccountCacheHits *prometheus.CounterVec
	PriceFetchErrors *prometheus.CounterVec
	PublishErrors    *prometheus.CounterVec

	// Storage metrics
	StoreErrors *prometheus.CounterVec

	// API metrics
	APIRequests      *prometheus.CounterVec
	WebsocketClients prometheus.Gauge

	// Health metrics
	LastSuccessfulRun *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "amm_stats"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "runs_total",
			Help:      "Total number of aggregation runs by network and status",
		}, []string{"network", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "run_duration_seconds",
			Help:      "Aggregation run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}, []string{"network"}),
		PoolsAggregated: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "pools_aggregated",
			Help:      "Number of pools aggregated in the last run",
		}, []string{"network"}),
		PoolsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "pools_skipped_total",
			Help:      "Total number of pools skipped by reason",
		}, []string{"network", "reason"}),
		PoolsDisappeared: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "pools_disappeared",
			Help:      "Pools with recorded history that are no longer live",
		}, []string{"network"}),
		SnapshotsFolded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "snapshots_folded_total",
			Help:      "Total number of snapshots folded into pool intervals",
		}, []string{"network"}),

		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "rpc_call_duration_seconds",
			Help:      "Chain RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		AccountCacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "account_cache_lookups_total",
			Help:      "Account cache lookups by result",
		}, []string{"network", "result"}),
		PriceFetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "price_fetch_errors_total",
			Help:      "Total number of failed price chunk requests",
		}, []string{"network"}),
		PublishErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "publish_errors_total",
			Help:      "Total number of failed result notifications",
		}, []string{"network"}),

		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Total number of storage errors by store and operation",
		}, []string{"store", "operation"}),

		APIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status code",
		}, []string{"route", "code"}),
		WebsocketClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "websocket_clients",
			Help:      "Number of connected websocket clients",
		}),

		LastSuccessfulRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful aggregation run",
		}, []string{"network"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordRun records a finished aggregation run.
func RecordRun(network, status string, durationSeconds float64, finishedUnix int64) {
	DefaultMetrics.RunsTotal.WithLabelValues(network, status).Inc()
	DefaultMetrics.RunDuration.WithLabelValues(network).Observe(durationSeconds)
	if status == "success" {
		DefaultMetrics.LastSuccessfulRun.WithLabelValues(network).Set(float64(finishedUnix))
	}
}

// RecordPools records pool counts for the last run.
func RecordPools(network string, aggregated, disappeared int) {
	DefaultMetrics.PoolsAggregated.WithLabelValues(network).Set(float64(aggregated))
	DefaultMetrics.PoolsDisappeared.WithLabelValues(network).Set(float64(disappeared))
}

// RecordPoolSkipped counts a pool left out of aggregation.
func RecordPoolSkipped(network, reason string) {
	DefaultMetrics.PoolsSkipped.WithLabelValues(network, reason).Inc()
}

// RecordSnapshotsFolded counts snapshots folded into pool intervals.
func RecordSnapshotsFolded(network string, n int) {
	DefaultMetrics.SnapshotsFolded.WithLabelValues(network).Add(float64(n))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordAccountCache counts an account cache lookup.
func RecordAccountCache(network string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.AccountCacheHits.WithLabelValues(network, result).Inc()
}

// RecordPriceFetchError counts a failed price chunk.
func RecordPriceFetchError(network string) {
	DefaultMetrics.PriceFetchErrors.WithLabelValues(network).Inc()
}

// RecordPublishError counts a failed notification.
func RecordPublishError(network string) {
	DefaultMetrics.PublishErrors.WithLabelValues(network).Inc()
}

// RecordStoreError counts a storage failure.
func RecordStoreError(store, operation string) {
	DefaultMetrics.StoreErrors.WithLabelValues(store, operation).Inc()
}

// RecordAPIRequest counts an API request.
func RecordAPIRequest(route string, code int) {
	DefaultMetrics.APIRequests.WithLabelValues(route, statusLabel(code)).Inc()
}

// SetWebsocketClients sets the connected websocket client gauge.
func SetWebsocketClients(n int) {
	DefaultMetrics.WebsocketClients.Set(float64(n))
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	}
	return "2xx"
}
