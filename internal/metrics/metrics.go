package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LayoutSteps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsgraph_layout_steps_total",
		Help: "Total number of simulation steps executed.",
	})

	StepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fsgraph_layout_step_duration_ms",
		Help:    "Wall time of a single simulation step in milliseconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
	})

	KineticEnergy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fsgraph_layout_kinetic_energy",
		Help: "Total kinetic energy of the simulation after the last step.",
	})

	NodesSimulated = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fsgraph_layout_nodes",
		Help: "Number of nodes currently in the simulation arena.",
	})

	NodesRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsgraph_layout_nodes_recovered_total",
		Help: "Total number of nodes reset from a non-finite position.",
	})

	FramesBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsgraph_frames_built_total",
		Help: "Total number of vertex buffers built.",
	})

	VerticesTruncated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsgraph_vertices_truncated_total",
		Help: "Total number of visible nodes dropped due to the device vertex limit.",
	})

	SnapshotsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsgraph_snapshots_applied_total",
		Help: "Total number of snapshot updates applied, labelled by kind (full, diff).",
	}, []string{"kind"})

	SnapshotsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsgraph_snapshots_rejected_total",
		Help: "Total number of snapshot updates rejected at ingestion.",
	})

	PickQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsgraph_pick_queries_total",
		Help: "Total number of picking queries, labelled by outcome (hit, miss).",
	}, []string{"outcome"})
)
