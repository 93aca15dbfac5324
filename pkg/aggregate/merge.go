// Package aggregate merges completed per-worker histogram sets into the
// final output set. Merge is bin-wise summation and therefore commutative
// and associative: any number of workers can be reduced in any order.
package aggregate

import (
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.opentelemetry.io/otel"

	"github.com/athuldev13/Loki/pkg/histogram"
)

var tracer = otel.Tracer("github.com/athuldev13/Loki/pkg/aggregate")

// Merge combines histogram sets by identity. Inputs must be completed,
// immutable per-worker histograms; they are cloned before summation so the
// caller's sets stay untouched. Two histograms under the same identity with
// different binning is a fatal configuration error. Output order is the
// first-seen order of identities, so the result is deterministic for a
// fixed input order.
func Merge(ctx context.Context, l log.Logger, sets ...[]*histogram.Histogram) ([]*histogram.Histogram, error) {
	_, span := tracer.Start(ctx, "aggregate.Merge")
	defer span.End()

	var (
		order  []string
		merged = make(map[string]*histogram.Histogram)
		inputs int
	)

	for _, set := range sets {
		for _, h := range set {
			inputs++
			cur, ok := merged[h.Name]
			if !ok {
				merged[h.Name] = h.Clone()
				order = append(order, h.Name)
				continue
			}
			if err := cur.Merge(h); err != nil {
				return nil, fmt.Errorf("merge histogram %q: %w", h.Name, err)
			}
		}
	}

	out := make([]*histogram.Histogram, 0, len(order))
	for _, name := range order {
		out = append(out, merged[name])
	}

	level.Info(l).Log(
		"msg", "merge complete",
		"input_histograms", inputs,
		"output_histograms", len(out),
		"worker_sets", len(sets),
	)

	return out, nil
}
