package fill

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/athuldev13/Loki/pkg/aggregate"
	"github.com/athuldev13/Loki/pkg/dataset"
	"github.com/athuldev13/Loki/pkg/expr"
	"github.com/athuldev13/Loki/pkg/histogram"
)

// RunnerConfig holds configuration for a multi-worker run.
type RunnerConfig struct {
	Specs   []Spec
	Workers int
}

// Validate checks if the runner configuration is valid.
func (c *RunnerConfig) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	cfg := Config{Histograms: c.Specs}
	return cfg.Validate()
}

// Result is the merged output of a run plus its combined skip accounting.
type Result struct {
	Histograms []*histogram.Histogram
	Stats      Stats
}

// Runner distributes input shards across workers. Each worker processes its
// shards single-threadedly with its own Session; completed per-worker
// histogram sets are merged afterwards. A failing worker fails the whole
// run and none of its partial histograms are merged.
type Runner struct {
	cfg     RunnerConfig
	logger  log.Logger
	metrics *Metrics
}

// NewRunner creates a runner.
func NewRunner(cfg RunnerConfig, metrics *Metrics, logger log.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Runner{cfg: cfg, logger: logger, metrics: metrics}, nil
}

// Run processes the shard paths and returns the merged histograms.
func (r *Runner) Run(ctx context.Context, shardPaths []string) (*Result, error) {
	if len(shardPaths) == 0 {
		return nil, fmt.Errorf("no input shards")
	}

	workers := r.cfg.Workers
	if workers > len(shardPaths) {
		workers = len(shardPaths)
	}

	// Round-robin shard assignment. Workers own whole shards so rebinds
	// stay private to one session.
	assignments := make([][]string, workers)
	for i, p := range shardPaths {
		assignments[i%workers] = append(assignments[i%workers], p)
	}

	sessions := make([]*Session, workers)
	for i := range sessions {
		sess, err := NewSession(r.cfg.Specs, log.With(r.logger, "worker", i), r.metrics)
		if err != nil {
			return nil, err
		}
		sessions[i] = sess
	}

	var wg sync.WaitGroup
	errChan := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := r.runWorker(ctx, sessions[idx], assignments[idx]); err != nil {
				errChan <- fmt.Errorf("worker %d: %w", idx, err)
			}
		}(i)
	}

	wg.Wait()
	close(errChan)

	// All-or-nothing per run: any worker failure discards every partial
	// histogram rather than merging an incomplete partition.
	for err := range errChan {
		return nil, err
	}

	sets := make([][]*histogram.Histogram, workers)
	stats := Stats{}
	for i, sess := range sessions {
		sets[i] = sess.Histograms()
		stats.Add(sess.Stats())
	}

	merged, err := aggregate.Merge(ctx, r.logger, sets...)
	if err != nil {
		return nil, err
	}

	level.Info(r.logger).Log(
		"msg", "run complete",
		"shards", len(shardPaths),
		"workers", workers,
		"rows", stats.Rows,
		"fills", stats.Fills,
		"sync_conflicts", stats.SyncConflicts,
		"nonfinite_values", stats.NonFiniteValues,
	)

	return &Result{Histograms: merged, Stats: stats}, nil
}

func (r *Runner) runWorker(ctx context.Context, sess *Session, shardPaths []string) error {
	for _, path := range shardPaths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.processShard(ctx, sess, path); err != nil {
			return fmt.Errorf("shard %s: %w", path, err)
		}
	}
	return nil
}

func (r *Runner) processShard(ctx context.Context, sess *Session, path string) error {
	shard, err := dataset.OpenShard(path)
	if err != nil {
		return err
	}
	defer shard.Close()

	// Shard transition: rebind every cached evaluator against the new
	// schema before any of its rows are read.
	if err := sess.Bind(expr.NewFieldBinder(shard)); err != nil {
		return err
	}
	level.Debug(r.logger).Log(
		"msg", "shard bound",
		"shard", shard.Path(),
		"rows", shard.NumRows(),
		"columns", len(shard.Columns()),
	)

	it := shard.Iterator()
	defer it.Close()

	for {
		row, err := it.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		sess.ProcessRow(row)
	}
}
