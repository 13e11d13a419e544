package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level instruments. promauto registers them on the default registry.

var (
	// 1. Load Duration (Histogram)
	// Measures how long reading one node or edge file takes.
	LoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pubnet_load_duration_seconds",
			Help:    "Duration of loading a single node or edge file",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"kind", "ext"},
	)

	// 2. Saved Collections (Counter)
	// Counts node and edge collections written to disk.
	SavedCollections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubnet_saved_collections_total",
			Help: "Total number of node and edge collections written",
		},
		[]string{"kind", "ext"},
	)

	// 3. Slice Duration (Histogram)
	// Measures whole-graph slicing.
	SliceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pubnet_slice_duration_seconds",
			Help:    "Duration of slicing a graph by root ids",
			Buckets: prometheus.DefBuckets,
		},
	)

	// 4. Shortest Path Queries (Counter)
	// Labeled by what happened to the derived graph: "build", "extend" or "reuse".
	ShortestPathQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubnet_shortest_path_queries_total",
			Help: "Shortest path queries by derived graph transition",
		},
		[]string{"transition"},
	)

	// 5. Derived Edges (Counter)
	// Weighted edges added to derived co-occurrence graphs.
	DerivedEdges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pubnet_derived_edges_added_total",
			Help: "Weighted edges added to derived co-occurrence graphs",
		},
	)
)
