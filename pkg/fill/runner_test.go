package fill

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/parquet-go/parquet-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/athuldev13/Loki/pkg/histogram"
)

type testEvent struct {
	Mu      float64   `parquet:"mu"`
	TauPt   []float64 `parquet:"tau_pt"`
	TauPass []float64 `parquet:"tau_pass"`
	Weight  float64   `parquet:"event_weight"`
}

func writeShard(t *testing.T, dir, name string, events []testEvent) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)

	w := parquet.NewGenericWriter[testEvent](f)
	_, err = w.Write(events)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	return path
}

func testShards(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	s1 := writeShard(t, dir, "shard1.parquet", []testEvent{
		{Mu: 20, TauPt: []float64{10, 60}, TauPass: []float64{1, 1}, Weight: 1},
		{Mu: 25, TauPt: []float64{30}, TauPass: []float64{0}, Weight: 2},
	})
	s2 := writeShard(t, dir, "shard2.parquet", []testEvent{
		{Mu: 30, TauPt: []float64{70, 80, 90}, TauPass: []float64{1, 0, 1}, Weight: 0.5},
	})
	return []string{s1, s2}
}

func testSpecs() []Spec {
	return []Spec{
		{
			Name:      "tau_pt",
			Axes:      []histogram.Axis{{Expr: "tau_pt", Edges: []float64{0, 50, 100}}},
			Selection: "tau_pass",
			Weight:    "event_weight",
		},
		{
			Name: "mu",
			Axes: []histogram.Axis{{Expr: "mu", Edges: []float64{0, 50}}},
		},
	}
}

func runWith(t *testing.T, workers int, shards []string) *Result {
	t.Helper()
	r, err := NewRunner(
		RunnerConfig{Specs: testSpecs(), Workers: workers},
		NewMetrics(prometheus.NewRegistry()),
		log.NewNopLogger(),
	)
	require.NoError(t, err)

	res, err := r.Run(context.Background(), shards)
	require.NoError(t, err)
	return res
}

func TestRunnerSingleWorker(t *testing.T) {
	res := runWith(t, 1, testShards(t))

	require.Len(t, res.Histograms, 2)
	require.Equal(t, uint64(3), res.Stats.Rows)

	tauPt := res.Histograms[0]
	require.Equal(t, "tau_pt", tauPt.Name)
	// Passing candidates: pt 10 (w=1) in bin 1; pt 60, 70, 90 in bin 2
	// (w=1, 0.5, 0.5).
	require.Equal(t, 1.0, tauPt.BinContent(1))
	require.Equal(t, 2.0, tauPt.BinContent(2))
	require.Equal(t, 1.0+0.25+0.25, tauPt.BinSumw2(2))

	// mu is scalar: one fill per row regardless of candidate counts.
	mu := res.Histograms[1]
	require.Equal(t, 3.0, mu.BinContent(1))
}

func TestRunnerMergeMatchesSingleWorker(t *testing.T) {
	shards := testShards(t)

	single := runWith(t, 1, shards)
	parallel := runWith(t, 2, shards)

	require.Equal(t, single.Stats, parallel.Stats)
	require.Len(t, parallel.Histograms, len(single.Histograms))
	for i := range single.Histograms {
		require.Equal(t, single.Histograms[i].Name, parallel.Histograms[i].Name)
		require.Equal(t, single.Histograms[i].Counts, parallel.Histograms[i].Counts)
		require.Equal(t, single.Histograms[i].Sumw2, parallel.Histograms[i].Sumw2)
	}
}

func TestRunnerCapsWorkersAtShardCount(t *testing.T) {
	res := runWith(t, 16, testShards(t))
	require.Equal(t, uint64(3), res.Stats.Rows)
}

func TestRunnerFailsOnSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	shard := writeShard(t, dir, "s.parquet", []testEvent{{Mu: 1}})

	r, err := NewRunner(
		RunnerConfig{
			Specs: []Spec{{
				Name: "h",
				Axes: []histogram.Axis{{Expr: "no_such_column", Edges: []float64{0, 1}}},
			}},
			Workers: 1,
		},
		NewMetrics(prometheus.NewRegistry()),
		log.NewNopLogger(),
	)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), []string{shard})
	require.ErrorContains(t, err, "no_such_column")
}

func TestRunnerNoShards(t *testing.T) {
	r, err := NewRunner(
		RunnerConfig{Specs: testSpecs(), Workers: 1},
		NewMetrics(prometheus.NewRegistry()),
		log.NewNopLogger(),
	)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), nil)
	require.Error(t, err)
}

func TestRunnerConfigValidate(t *testing.T) {
	cfg := RunnerConfig{Specs: testSpecs(), Workers: 0}
	require.Error(t, cfg.Validate())

	cfg = RunnerConfig{Specs: nil, Workers: 1}
	require.Error(t, cfg.Validate())
}
