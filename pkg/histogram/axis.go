package histogram

import (
	"fmt"
	"math"
	"sort"
)

// Axis describes one histogram dimension: the expression that produces the
// coordinate and the bin edges that partition it. Edges must be strictly
// increasing and contain at least two entries (one bin).
type Axis struct {
	Expr  string    `json:"expr"`
	Edges []float64 `json:"edges"`
}

// Bins returns the number of regular bins, excluding underflow and overflow.
func (a Axis) Bins() int {
	return len(a.Edges) - 1
}

// Validate checks that the axis defines at least one bin with strictly
// increasing edges.
func (a Axis) Validate() error {
	if a.Expr == "" {
		return fmt.Errorf("axis expression cannot be empty")
	}
	if len(a.Edges) < 2 {
		return fmt.Errorf("axis %q needs at least 2 bin edges, got %d", a.Expr, len(a.Edges))
	}
	for i := 1; i < len(a.Edges); i++ {
		if a.Edges[i] <= a.Edges[i-1] {
			return fmt.Errorf("axis %q bin edges must be strictly increasing: edge[%d]=%v <= edge[%d]=%v",
				a.Expr, i, a.Edges[i], i-1, a.Edges[i-1])
		}
	}
	return nil
}

// FindBin locates the bin for a coordinate. Bin 0 is underflow (v below the
// first edge), bins 1..Bins() are regular with half-open intervals
// [edge[k], edge[k+1]), and bin Bins()+1 is overflow (v at or above the last
// edge). Non-finite coordinates belong to no bin and return ok=false.
func (a Axis) FindBin(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v < a.Edges[0] {
		return 0, true
	}
	if v >= a.Edges[len(a.Edges)-1] {
		return a.Bins() + 1, true
	}
	// First edge strictly greater than v; the bin below it contains v.
	k := sort.Search(len(a.Edges), func(i int) bool { return a.Edges[i] > v })
	return k, true
}

// equalEdges reports whether two axes bin identically.
func equalEdges(a, b Axis) bool {
	if len(a.Edges) != len(b.Edges) {
		return false
	}
	for i := range a.Edges {
		if a.Edges[i] != b.Edges[i] {
			return false
		}
	}
	return true
}
