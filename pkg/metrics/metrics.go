// Package metrics holds the prometheus collectors shared by the pipeline stages.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	AmbiguousTraversals      prometheus.Counter
	DepthTruncations         prometheus.Counter
	PathwaysInserted         *prometheus.CounterVec
	MergesApplied            prometheus.Counter
	StructuralInconsistency  prometheus.Counter
	RemoteRetries            *prometheus.CounterVec
	ContractionPassEdges     prometheus.Gauge
	IntersectionsProcessed   prometheus.Counter
	SplitTransitionsInserted prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AmbiguousTraversals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roadgraph",
			Name:      "ambiguous_traversals_total",
			Help:      "Traversal branches dropped because a sub-way lookup returned more than one pathway.",
		}),
		DepthTruncations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roadgraph",
			Name:      "depth_truncations_total",
			Help:      "Traversal branches cut by the recursion depth limit.",
		}),
		PathwaysInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roadgraph",
			Name:      "pathways_inserted_total",
			Help:      "Directed path rows written during discovery.",
		}, []string{"direction"}),
		MergesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roadgraph",
			Name:      "merges_applied_total",
			Help:      "Degree-2 contractions applied.",
		}),
		StructuralInconsistency: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roadgraph",
			Name:      "structural_inconsistencies_total",
			Help:      "Contractions aborted because the incident edges did not match the proposal.",
		}),
		RemoteRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roadgraph",
			Name:      "remote_retries_total",
			Help:      "Retried calls to remote services and stores.",
		}, []string{"call"}),
		ContractionPassEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roadgraph",
			Name:      "contraction_pass_edges",
			Help:      "Edges left after the latest contraction pass.",
		}),
		IntersectionsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roadgraph",
			Name:      "intersections_processed_total",
			Help:      "Intersections traced and marked as addressed.",
		}),
		SplitTransitionsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roadgraph",
			Name:      "split_transitions_inserted_total",
			Help:      "Turn transition edges created by the intersection split.",
		}),
	}

	reg.MustRegister(
		m.AmbiguousTraversals,
		m.DepthTruncations,
		m.PathwaysInserted,
		m.MergesApplied,
		m.StructuralInconsistency,
		m.RemoteRetries,
		m.ContractionPassEdges,
		m.IntersectionsProcessed,
		m.SplitTransitionsInserted,
	)
	return m
}

// RetryHook returns a callback that counts retries of call.
func (m *Metrics) RetryHook(call string) func(int, error) {
	return func(int, error) {
		m.RemoteRetries.WithLabelValues(call).Inc()
	}
}
