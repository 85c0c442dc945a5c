package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instrumentation for the service. Every
// instance registers on its own registry so tests can construct metrics
// without collector name collisions.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	scoreRunsTotal   *prometheus.CounterVec
	clusterRunsTotal *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	lastRunConverged prometheus.Gauge
	graphNodes       prometheus.Gauge
	graphEdges       prometheus.Gauge

	rateLimitBlocks  *prometheus.CounterVec
	rateLimitErrors  prometheus.Counter
	adapterCalls     *prometheus.CounterVec
	storeQueryErrors prometheus.Counter
}

// NewMetrics creates and registers the service collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trustgraph_http_requests_total",
			Help: "HTTP requests by path and status code.",
		}, []string{"path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustgraph_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trustgraph_cache_hits_total",
			Help: "Response cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trustgraph_cache_misses_total",
			Help: "Response cache misses.",
		}),
		scoreRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trustgraph_score_runs_total",
			Help: "Reputation scoring runs by convergence outcome.",
		}, []string{"converged"}),
		clusterRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trustgraph_cluster_runs_total",
			Help: "Cluster detection runs by method.",
		}, []string{"method"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustgraph_run_duration_seconds",
			Help:    "Engine run duration by kind.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		}, []string{"kind"}),
		lastRunConverged: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trustgraph_last_score_run_converged",
			Help: "1 when the most recent scoring run converged, else 0.",
		}),
		graphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trustgraph_last_snapshot_nodes",
			Help: "Node count of the most recently scored snapshot.",
		}),
		graphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trustgraph_last_snapshot_edges",
			Help: "Edge count of the most recently scored snapshot.",
		}),
		rateLimitBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trustgraph_ratelimit_blocks_total",
			Help: "Requests rejected by the rate limiter, by scope.",
		}, []string{"scope"}),
		rateLimitErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trustgraph_ratelimit_redis_errors_total",
			Help: "Redis failures that triggered the in-memory fallback.",
		}),
		adapterCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trustgraph_adapter_calls_total",
			Help: "Graph-source adapter calls by source and outcome.",
		}, []string{"source", "outcome"}),
		storeQueryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trustgraph_store_errors_total",
			Help: "Run-history store failures.",
		}),
	}

	reg.MustRegister(
		m.requestsTotal, m.requestDuration,
		m.cacheHits, m.cacheMisses,
		m.scoreRunsTotal, m.clusterRunsTotal, m.runDuration,
		m.lastRunConverged, m.graphNodes, m.graphEdges,
		m.rateLimitBlocks, m.rateLimitErrors,
		m.adapterCalls, m.storeQueryErrors,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(path, status string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(path, status).Inc()
	m.requestDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// IncrementCacheHit counts a response-cache hit.
func (m *Metrics) IncrementCacheHit() { m.cacheHits.Inc() }

// IncrementCacheMiss counts a response-cache miss.
func (m *Metrics) IncrementCacheMiss() { m.cacheMisses.Inc() }

// ObserveScoreRun records one reputation scoring run.
func (m *Metrics) ObserveScoreRun(nodes, edges int, converged bool, duration time.Duration) {
	label := "false"
	gauge := 0.0
	if converged {
		label = "true"
		gauge = 1
	}
	m.scoreRunsTotal.WithLabelValues(label).Inc()
	m.runDuration.WithLabelValues("score").Observe(duration.Seconds())
	m.lastRunConverged.Set(gauge)
	m.graphNodes.Set(float64(nodes))
	m.graphEdges.Set(float64(edges))
}

// ObserveClusterRun records one cluster detection run.
func (m *Metrics) ObserveClusterRun(method string, duration time.Duration) {
	m.clusterRunsTotal.WithLabelValues(method).Inc()
	m.runDuration.WithLabelValues("cluster").Observe(duration.Seconds())
}

// ObserveAuditRun records one sensitivity audit.
func (m *Metrics) ObserveAuditRun(duration time.Duration) {
	m.runDuration.WithLabelValues("audit").Observe(duration.Seconds())
}

// IncrementRateLimitBlock counts a rejected request for a scope ("ip",
// "audit", "admin").
func (m *Metrics) IncrementRateLimitBlock(scope string) {
	m.rateLimitBlocks.WithLabelValues(scope).Inc()
}

// IncrementRateLimitRedisError counts a Redis failure during a limit check.
func (m *Metrics) IncrementRateLimitRedisError() { m.rateLimitErrors.Inc() }

// RecordAdapterCall counts a snapshot-source call.
func (m *Metrics) RecordAdapterCall(source string, success bool) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.adapterCalls.WithLabelValues(source, outcome).Inc()
}

// IncrementStoreError counts a run-history store failure.
func (m *Metrics) IncrementStoreError() { m.storeQueryErrors.Inc() }
