package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SnapshotCreations counts snapshot creation outcomes.
	SnapshotCreations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topolens_snapshot_creations_total",
		Help: "Snapshot creation attempts by terminal outcome.",
	}, []string{"outcome"})

	// VerificationQueries counts verification queries by type and terminal status.
	VerificationQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topolens_verification_queries_total",
		Help: "Verification queries by query type and terminal status.",
	}, []string{"query_type", "status"})

	// VerificationSeconds observes verification wall-clock duration.
	VerificationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "topolens_verification_duration_seconds",
		Help:    "Wall-clock verification query duration.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// EngineCallsInFlight gauges concurrent verification calls against the engine.
	EngineCallsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "topolens_engine_calls_in_flight",
		Help: "Verification engine calls currently in flight.",
	})

	// TopologyAggregations counts aggregation calls by outcome.
	TopologyAggregations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topolens_topology_aggregations_total",
		Help: "Topology aggregation calls by outcome.",
	}, []string{"outcome"})
)

// Register registers the Prometheus handler in the provided mux.
func Register(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
