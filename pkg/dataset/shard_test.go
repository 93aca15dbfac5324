package dataset

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	Mu    float64   `parquet:"mu"`
	TauPt []float64 `parquet:"tau_pt"`
	Label string    `parquet:"label"`
}

func writeTestShard(t *testing.T, events []testEvent) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "events.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := parquet.NewGenericWriter[testEvent](f)
	_, err = w.Write(events)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	return path
}

func TestOpenShardSchema(t *testing.T) {
	path := writeTestShard(t, []testEvent{{Mu: 20, TauPt: []float64{50}}})

	s, err := OpenShard(path)
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.HasColumn("mu"))
	require.True(t, s.HasColumn("tau_pt"))
	require.False(t, s.HasColumn("label")) // string leaf is not bindable
	require.False(t, s.HasColumn("missing"))
	require.ElementsMatch(t, []string{"mu", "tau_pt", "label"}, s.Columns())
	require.Equal(t, path, s.Path())
	require.Equal(t, int64(1), s.NumRows())
}

func TestIteratorRaggedRows(t *testing.T) {
	path := writeTestShard(t, []testEvent{
		{Mu: 20, TauPt: []float64{50, 30, 10}},
		{Mu: 25, TauPt: nil},
		{Mu: 30, TauPt: []float64{80}},
	})

	s, err := OpenShard(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	it := s.Iterator()
	defer it.Close()

	r1, err := it.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, r1.Cardinality("mu"))
	require.Equal(t, 20.0, r1.Value("mu", 0))
	require.Equal(t, 3, r1.Cardinality("tau_pt"))
	require.Equal(t, 30.0, r1.Value("tau_pt", 1))

	r2, err := it.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, r2.Cardinality("tau_pt"))
	require.False(t, r2.Has("tau_pt"))
	require.True(t, r2.Has("mu"))

	r3, err := it.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, 80.0, r3.Value("tau_pt", 0))

	_, err = it.Next(ctx)
	require.Equal(t, io.EOF, err)
}

func TestIteratorContextCancel(t *testing.T) {
	path := writeTestShard(t, []testEvent{{Mu: 1}})

	s, err := OpenShard(path)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	it := s.Iterator()
	defer it.Close()

	_, err = it.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
