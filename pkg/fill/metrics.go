package fill

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the fill pipeline.
type Metrics struct {
	RowsProcessed   prometheus.Counter
	Fills           *prometheus.CounterVec
	SyncConflicts   *prometheus.CounterVec
	NonFiniteValues *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	rowsProcessed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "histfill_rows_processed_total",
		Help: "Total rows read from input shards",
	})

	fills := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "histfill_fills_total",
		Help: "Total bin fills per histogram",
	}, []string{"histogram"})

	syncConflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "histfill_sync_conflicts_total",
		Help: "Rows skipped per histogram because multi-valued expressions disagreed on cardinality",
	}, []string{"histogram"})

	nonFinite := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "histfill_nonfinite_values_total",
		Help: "Sub-indices skipped per histogram because a coordinate was NaN or infinite",
	}, []string{"histogram"})

	reg.MustRegister(rowsProcessed, fills, syncConflicts, nonFinite)

	return &Metrics{
		RowsProcessed:   rowsProcessed,
		Fills:           fills,
		SyncConflicts:   syncConflicts,
		NonFiniteValues: nonFinite,
	}
}

// Stats is the end-of-run skip accounting surfaced alongside the
// histograms, so per-row data loss is observable rather than silent.
type Stats struct {
	Rows            uint64 `json:"rows"`
	Fills           uint64 `json:"fills"`
	SyncConflicts   uint64 `json:"sync_conflicts"`
	NonFiniteValues uint64 `json:"nonfinite_values"`
}

// Add accumulates another worker's stats.
func (s *Stats) Add(other Stats) {
	s.Rows += other.Rows
	s.Fills += other.Fills
	s.SyncConflicts += other.SyncConflicts
	s.NonFiniteValues += other.NonFiniteValues
}
