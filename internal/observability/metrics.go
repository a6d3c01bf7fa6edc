package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the pipeline's Prometheus metrics.
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.ClassificationCounter.WithLabelValues("gateway", "gateway").Inc()
//	timer := prometheus.NewTimer(metrics.GatewayDuration.WithLabelValues("anthropic"))
//	defer timer.ObserveDuration()
type Metrics struct {
	// ClassificationCounter counts classify() calls.
	// Labels: tier (trivial|filler|cache|gateway), source (default|cache|gateway|fallback)
	ClassificationCounter *prometheus.CounterVec

	// GatewayDuration measures classification endpoint latency in seconds.
	// Labels: provider (anthropic|openai)
	GatewayDuration *prometheus.HistogramVec

	// GatewayErrorCounter counts gateway failures by kind.
	// Labels: provider, kind (unavailable|malformed)
	GatewayErrorCounter *prometheus.CounterVec

	// CacheCounter counts intent cache lookups.
	// Labels: result (hit|miss|bypass)
	CacheCounter *prometheus.CounterVec

	// BranchErrorCounter counts orchestrator branch failures.
	// Labels: branch (relationship|patterns|open_loops)
	BranchErrorCounter *prometheus.CounterVec

	// DroppedMessageCounter counts messages dropped by the per-user
	// in-flight cap.
	DroppedMessageCounter prometheus.Counter

	// MilestoneCounter counts fired milestones.
	// Labels: milestone
	MilestoneCounter *prometheus.CounterVec

	// RuptureCounter counts detected ruptures and repairs.
	// Labels: kind (rupture|repair)
	RuptureCounter *prometheus.CounterVec

	// InFlightUpdates is a gauge of background updates currently running.
	InFlightUpdates prometheus.Gauge

	// StoreWriteCounter counts persistence writes.
	// Labels: store (relationship|momentum|milestone|pattern|open_loop), status (success|error)
	StoreWriteCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the default registry.
// Call once at startup.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers all metrics with the given registerer. Tests pass
// a fresh registry to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ClassificationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attune_classifications_total",
				Help: "Total classify() calls by dispatch tier and result source",
			},
			[]string{"tier", "source"},
		),
		GatewayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "attune_gateway_duration_seconds",
				Help:    "Classification endpoint latency in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
		),
		GatewayErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attune_gateway_errors_total",
				Help: "Gateway failures by provider and error kind",
			},
			[]string{"provider", "kind"},
		),
		CacheCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attune_intent_cache_lookups_total",
				Help: "Intent cache lookups by result",
			},
			[]string{"result"},
		),
		BranchErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attune_branch_errors_total",
				Help: "Orchestrator branch failures by branch name",
			},
			[]string{"branch"},
		),
		DroppedMessageCounter: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "attune_dropped_messages_total",
				Help: "Messages dropped by the per-user in-flight cap",
			},
		),
		MilestoneCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attune_milestones_total",
				Help: "Fired relationship milestones",
			},
			[]string{"milestone"},
		),
		RuptureCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attune_ruptures_total",
				Help: "Detected rupture and repair events",
			},
			[]string{"kind"},
		),
		InFlightUpdates: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "attune_inflight_updates",
				Help: "Background updates currently running",
			},
		),
		StoreWriteCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attune_store_writes_total",
				Help: "Persistence writes by store and status",
			},
			[]string{"store", "status"},
		),
	}
}

// NewNopMetrics returns metrics registered against a throwaway registry.
// For tests and callers that do not scrape.
func NewNopMetrics() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}
