package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the matcher exports. A private registry
// keeps tests free of global-registration panics.
var Registry = prometheus.NewRegistry()

// Metrics is the global metrics registry.
var Metrics = struct {
	MatchResults    *prometheus.CounterVec
	MatchLatency    *prometheus.HistogramVec
	IndexRebuilds   *prometheus.CounterVec
	IndexBuildTime  *prometheus.HistogramVec
	IndexPairs      *prometheus.GaugeVec
	IndexUnindexed  *prometheus.GaugeVec
	StaleServes     *prometheus.CounterVec
	StoreReads      *prometheus.CounterVec
	PoolInUse       prometheus.Gauge
	PoolWait        prometheus.Histogram
	PoolExhausted   prometheus.Counter
	AliasIssues     prometheus.Gauge
	FanoutClients   prometheus.Gauge
	InvalidationsRx *prometheus.CounterVec
}{
	MatchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matcher_results_total",
		Help: "Match results by sport and terminal status",
	}, []string{"sport", "status"}),
	MatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matcher_match_seconds",
		Help:    "Latency of a single match including index lookup",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{"sport"}),
	IndexRebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matcher_index_rebuilds_total",
		Help: "Index rebuild attempts by sport and outcome",
	}, []string{"sport", "outcome"}),
	IndexBuildTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matcher_index_build_seconds",
		Help:    "Store read plus index build duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"sport"}),
	IndexPairs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "matcher_index_pairs",
		Help: "Contract pairs in the current index generation",
	}, []string{"sport"}),
	IndexUnindexed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "matcher_index_unindexed",
		Help: "Contracts that could not be normalized into a pair",
	}, []string{"sport"}),
	StaleServes: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matcher_index_stale_serves_total",
		Help: "Times a last-good index was served past its TTL",
	}, []string{"sport"}),
	StoreReads: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matcher_store_reads_total",
		Help: "Bulk market store reads by sport and outcome",
	}, []string{"sport", "outcome"}),
	PoolInUse: prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "matcher_pool_in_use",
		Help: "Store connections currently leased",
	}),
	PoolWait: prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "matcher_pool_wait_seconds",
		Help:    "Time spent waiting for a store connection lease",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}),
	PoolExhausted: prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matcher_pool_exhausted_total",
		Help: "Lease attempts that timed out on a saturated pool",
	}),
	AliasIssues: prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "matcher_alias_issues",
		Help: "Ambiguous aliases found in the loaded alias table",
	}),
	FanoutClients: prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "matcher_fanout_clients",
		Help: "Connected fanout WebSocket clients",
	}),
	InvalidationsRx: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matcher_invalidations_total",
		Help: "Index invalidations by source",
	}, []string{"source"}),
}

func init() {
	Registry.MustRegister(
		Metrics.MatchResults,
		Metrics.MatchLatency,
		Metrics.IndexRebuilds,
		Metrics.IndexBuildTime,
		Metrics.IndexPairs,
		Metrics.IndexUnindexed,
		Metrics.StaleServes,
		Metrics.StoreReads,
		Metrics.PoolInUse,
		Metrics.PoolWait,
		Metrics.PoolExhausted,
		Metrics.AliasIssues,
		Metrics.FanoutClients,
		Metrics.InvalidationsRx,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
