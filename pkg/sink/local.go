// Package sink persists merged histograms: a local run directory with a
// parquet artifact plus a JSON manifest, and an optional Kafka publisher.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/athuldev13/Loki/pkg/fill"
	"github.com/athuldev13/Loki/pkg/histogram"
)

// DataFileName is the histogram artifact inside a run directory.
const DataFileName = "histograms.parquet"

// MetaFileName is the run manifest inside a run directory.
const MetaFileName = "meta.json"

// axisRecord mirrors histogram.Axis in the persisted artifact.
type axisRecord struct {
	Expr  string    `parquet:"expr" json:"expr"`
	Edges []float64 `parquet:"edges" json:"edges"`
}

// histogramRecord is one persisted histogram: identity, per-axis bin edges
// and the fully populated count and sumw2 arrays.
type histogramRecord struct {
	Name   string       `parquet:"name" json:"name"`
	Axes   []axisRecord `parquet:"axes" json:"axes"`
	Counts []float64    `parquet:"counts" json:"counts"`
	Sumw2  []float64    `parquet:"sumw2" json:"sumw2"`
}

func toRecord(h *histogram.Histogram) histogramRecord {
	axes := make([]axisRecord, len(h.Axes))
	for i, ax := range h.Axes {
		axes[i] = axisRecord{Expr: ax.Expr, Edges: ax.Edges}
	}
	return histogramRecord{
		Name:   h.Name,
		Axes:   axes,
		Counts: h.Counts,
		Sumw2:  h.Sumw2,
	}
}

// RunMeta is the manifest written next to the histogram artifact. It carries
// the end-of-run skip statistics so data loss is visible in the output.
type RunMeta struct {
	RunID      string     `json:"run_id"`
	CreatedAt  time.Time  `json:"created_at"`
	Histograms []string   `json:"histograms"`
	Stats      fill.Stats `json:"stats"`
}

// LocalConfig holds configuration for the local sink.
type LocalConfig struct {
	Path string
}

// Local writes each run into its own uuid-named directory under Path.
type Local struct {
	cfg    LocalConfig
	logger log.Logger
}

// NewLocal creates a local sink, creating the base directory if needed.
func NewLocal(cfg LocalConfig, logger log.Logger) (*Local, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("output path cannot be empty")
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Local{cfg: cfg, logger: logger}, nil
}

// Write persists the merged histograms and the run manifest, returning the
// run directory. Identities are unique and arrays fully populated by the
// time the aggregator hands them off.
func (l *Local) Write(ctx context.Context, hists []*histogram.Histogram, stats fill.Stats) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	runID := uuid.New()
	dir := filepath.Join(l.cfg.Path, runID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, DataFileName))
	if err != nil {
		return "", fmt.Errorf("create data file: %w", err)
	}

	w := parquet.NewGenericWriter[histogramRecord](f)
	names := make([]string, 0, len(hists))
	for _, h := range hists {
		if _, err := w.Write([]histogramRecord{toRecord(h)}); err != nil {
			f.Close()
			return "", fmt.Errorf("write histogram %q: %w", h.Name, err)
		}
		names = append(names, h.Name)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return "", fmt.Errorf("close writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	meta := RunMeta{
		RunID:      runID.String(),
		CreatedAt:  time.Now().UTC(),
		Histograms: names,
		Stats:      stats,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, MetaFileName), data, 0o644); err != nil {
		return "", fmt.Errorf("write meta: %w", err)
	}

	level.Info(l.logger).Log("msg", "run persisted", "dir", dir, "histograms", len(hists))
	return dir, nil
}

// ReadLocal reads a run directory's histograms back. Used to verify a
// persisted run and by downstream tooling.
func ReadLocal(dir string) ([]*histogram.Histogram, error) {
	f, err := os.Open(filepath.Join(dir, DataFileName))
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, fi.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	r := parquet.NewGenericReader[histogramRecord](pf)
	defer r.Close()

	var out []*histogram.Histogram
	buf := make([]histogramRecord, 8)
	for {
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			h, convErr := fromRecord(buf[i])
			if convErr != nil {
				return nil, convErr
			}
			out = append(out, h)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read artifact: %w", err)
		}
	}
	return out, nil
}

func fromRecord(rec histogramRecord) (*histogram.Histogram, error) {
	axes := make([]histogram.Axis, len(rec.Axes))
	for i, ax := range rec.Axes {
		axes[i] = histogram.Axis{Expr: ax.Expr, Edges: ax.Edges}
	}
	h, err := histogram.New(rec.Name, axes)
	if err != nil {
		return nil, fmt.Errorf("artifact histogram %q: %w", rec.Name, err)
	}
	if len(rec.Counts) != len(h.Counts) || len(rec.Sumw2) != len(h.Sumw2) {
		return nil, fmt.Errorf("artifact histogram %q: bin array size mismatch", rec.Name)
	}
	copy(h.Counts, rec.Counts)
	copy(h.Sumw2, rec.Sumw2)
	return h, nil
}

// ReadMeta reads a run directory's manifest.
func ReadMeta(dir string) (*RunMeta, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaFileName))
	if err != nil {
		return nil, err
	}
	meta := &RunMeta{}
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, fmt.Errorf("parse meta: %w", err)
	}
	return meta, nil
}
