package fill

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/athuldev13/Loki/pkg/dataset"
	"github.com/athuldev13/Loki/pkg/expr"
	"github.com/athuldev13/Loki/pkg/histogram"
)

// Session is one worker's processing unit: it owns its histograms, its
// expression cache and its cardinality synchronizer. Sessions share no
// mutable state with each other; the fill phase is an embarrassingly
// parallel map whose per-worker outputs are merged afterwards.
type Session struct {
	logger  log.Logger
	metrics *Metrics
	cache   *expr.Cache
	specs   []*boundSpec
	stats   Stats
	bound   bool
}

// boundSpec carries one histogram with its evaluators resolved against the
// active shard.
type boundSpec struct {
	spec   Spec
	hist   *histogram.Histogram
	axes   []expr.Evaluator
	sel    expr.Evaluator
	weight expr.Evaluator
	group  *SyncGroup
	coords []float64
}

// NewSession validates the specs and creates their histograms. Bind must be
// called with the first shard's binder before processing rows.
func NewSession(specs []Spec, logger log.Logger, metrics *Metrics) (*Session, error) {
	cfg := Config{Histograms: specs}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		logger:  logger,
		metrics: metrics,
	}
	for _, sp := range specs {
		h, err := histogram.New(sp.Name, sp.Axes)
		if err != nil {
			return nil, err
		}
		s.specs = append(s.specs, &boundSpec{
			spec:   sp,
			hist:   h,
			coords: make([]float64, len(sp.Axes)),
		})
	}
	return s, nil
}

// Bind resolves every spec's expressions against a shard and rebuilds the
// sync groups. Called once per shard: the first call constructs the
// evaluator cache, later calls rebind it while preserving deduplication.
// Any binding failure is a fatal configuration/schema mismatch.
func (s *Session) Bind(binder expr.Binder) error {
	if s.cache == nil {
		s.cache = expr.NewCache(binder)
	} else if err := s.cache.Rebind(binder); err != nil {
		return err
	}

	sync := NewSynchronizer()
	for _, bs := range s.specs {
		bs.axes = bs.axes[:0]
		for _, ax := range bs.spec.Axes {
			ev, err := s.cache.Get(ax.Expr)
			if err != nil {
				return fmt.Errorf("histogram %q axis: %w", bs.spec.Name, err)
			}
			bs.axes = append(bs.axes, ev)
		}

		var err error
		if bs.sel, err = s.cache.Get(bs.spec.Selection); err != nil {
			return fmt.Errorf("histogram %q selection: %w", bs.spec.Name, err)
		}
		if bs.weight, err = s.cache.Get(bs.spec.Weight); err != nil {
			return fmt.Errorf("histogram %q weight: %w", bs.spec.Name, err)
		}

		all := make([]expr.Evaluator, 0, len(bs.axes)+2)
		all = append(all, bs.axes...)
		all = append(all, bs.sel, bs.weight)
		sync.Register(all)
	}
	sync.Sync()

	for _, bs := range s.specs {
		bs.group = sync.Group(bs.axes[0])
	}

	s.bound = true
	level.Debug(s.logger).Log("msg", "session bound", "expressions", s.cache.Len(), "histograms", len(s.specs))
	return nil
}

// ProcessRow fills every histogram from one row. Per-row data errors
// (cardinality conflicts, non-finite coordinates) skip the affected row or
// sub-index and increment a counter; they never abort processing.
func (s *Session) ProcessRow(row dataset.Row) {
	if !s.bound {
		panic("session not bound to a shard")
	}

	s.stats.Rows++
	if s.metrics != nil {
		s.metrics.RowsProcessed.Inc()
	}

	for _, bs := range s.specs {
		s.fillSpec(bs, row)
	}
}

func (s *Session) fillSpec(bs *boundSpec, row dataset.Row) {
	n, ok := bs.group.SharedCardinality(row)
	if !ok {
		s.stats.SyncConflicts++
		if s.metrics != nil {
			s.metrics.SyncConflicts.WithLabelValues(bs.spec.Name).Inc()
		}
		return
	}

	for i := 0; i < n; i++ {
		// Indexing modulo each evaluator's own cardinality broadcasts
		// scalar (cardinality-1) expressions across the group.
		if bs.sel != nil {
			if bs.sel.Value(row, i%bs.sel.Cardinality(row)) == 0 {
				continue
			}
		}

		weight := 1.0
		if bs.weight != nil {
			weight = bs.weight.Value(row, i%bs.weight.Cardinality(row))
		}

		for a, ev := range bs.axes {
			bs.coords[a] = ev.Value(row, i%ev.Cardinality(row))
		}

		if !bs.hist.Fill(bs.coords, weight) {
			s.stats.NonFiniteValues++
			if s.metrics != nil {
				s.metrics.NonFiniteValues.WithLabelValues(bs.spec.Name).Inc()
			}
			continue
		}

		s.stats.Fills++
		if s.metrics != nil {
			s.metrics.Fills.WithLabelValues(bs.spec.Name).Inc()
		}
	}
}

// Histograms returns the session's histograms in spec order. The caller
// must treat them as immutable once the session's partition is complete.
func (s *Session) Histograms() []*histogram.Histogram {
	out := make([]*histogram.Histogram, len(s.specs))
	for i, bs := range s.specs {
		out[i] = bs.hist
	}
	return out
}

// Stats returns the session's skip accounting.
func (s *Session) Stats() Stats {
	return s.stats
}
