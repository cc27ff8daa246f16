// Package metrics exposes Prometheus collectors for indexing and chunking.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	FilesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gocpd",
			Name:      "files_processed_total",
			Help:      "Files handled by the indexer, by outcome.",
		},
		[]string{"outcome"},
	)

	BlocksCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gocpd",
			Name:      "blocks_created_total",
			Help:      "Blocks fingerprinted and stored.",
		},
	)

	ChunkDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gocpd",
			Name:      "chunk_duration_seconds",
			Help:      "Time spent producing statements and blocks for one file.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)

	IndexRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gocpd",
			Name:      "index_runs_total",
			Help:      "Completed IndexProject calls, by result.",
		},
		[]string{"result"},
	)
)

// Outcome labels for FilesProcessed
const (
	OutcomeIndexed = "indexed"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Register registers the gocpd metrics into reg, or the default registry
// when reg is nil
func Register(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(FilesProcessed, BlocksCreated, ChunkDuration, IndexRuns)
}
