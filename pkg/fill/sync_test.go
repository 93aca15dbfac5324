package fill

import (
	"testing"

	"github.com/athuldev13/Loki/pkg/dataset"
	"github.com/athuldev13/Loki/pkg/expr"
	"github.com/stretchr/testify/require"
)

// stubEval reads a named field off the row, like the stock field evaluator.
type stubEval struct {
	field string
}

func (e *stubEval) Cardinality(row dataset.Row) int      { return row.Cardinality(e.field) }
func (e *stubEval) Value(row dataset.Row, i int) float64 { return row.Value(e.field, i) }

func TestSynchronizerGroupsByCoOccurrence(t *testing.T) {
	a := &stubEval{field: "a"}
	b := &stubEval{field: "b"}
	c := &stubEval{field: "c"}
	d := &stubEval{field: "d"}

	s := NewSynchronizer()
	s.Register([]expr.Evaluator{a, b})
	s.Register([]expr.Evaluator{b, c}) // shares b -> same group as a
	s.Register([]expr.Evaluator{d})
	s.Sync()

	require.Same(t, s.Group(a), s.Group(c))
	require.Same(t, s.Group(a), s.Group(b))
	require.Equal(t, 3, s.Group(a).Size())
	require.NotSame(t, s.Group(a), s.Group(d))
	require.Equal(t, 1, s.Group(d).Size())
}

func TestSynchronizerIgnoresNilHandles(t *testing.T) {
	a := &stubEval{field: "a"}

	s := NewSynchronizer()
	s.Register([]expr.Evaluator{a, nil, nil})
	s.Sync()

	require.Equal(t, 1, s.Group(a).Size())
}

func TestSharedCardinalityBroadcast(t *testing.T) {
	scalar := &stubEval{field: "mu"}
	vector := &stubEval{field: "tau_pt"}

	s := NewSynchronizer()
	s.Register([]expr.Evaluator{scalar, vector})
	s.Sync()

	row := dataset.NewRow(map[string][]float64{
		"mu":     {20.0},
		"tau_pt": {50, 30, 10},
	})

	n, ok := s.Group(scalar).SharedCardinality(row)
	require.True(t, ok)
	require.Equal(t, 3, n)
}

func TestSharedCardinalityConflict(t *testing.T) {
	x := &stubEval{field: "x"}
	y := &stubEval{field: "y"}

	s := NewSynchronizer()
	s.Register([]expr.Evaluator{x, y})
	s.Sync()

	// Two independently multi-valued fields with unequal lengths cannot be
	// zipped; the row must be flagged, not truncated.
	row := dataset.NewRow(map[string][]float64{
		"x": {1, 2, 3},
		"y": {1, 2, 3, 4, 5},
	})

	_, ok := s.Group(x).SharedCardinality(row)
	require.False(t, ok)

	// Equal lengths are fine.
	row = dataset.NewRow(map[string][]float64{
		"x": {1, 2, 3},
		"y": {4, 5, 6},
	})
	n, ok := s.Group(x).SharedCardinality(row)
	require.True(t, ok)
	require.Equal(t, 3, n)
}

func TestSharedCardinalityAllEmpty(t *testing.T) {
	x := &stubEval{field: "x"}

	s := NewSynchronizer()
	s.Register([]expr.Evaluator{x})
	s.Sync()

	n, ok := s.Group(x).SharedCardinality(dataset.NewRow(nil))
	require.True(t, ok)
	require.Equal(t, 0, n)
}
