package histogram

import (
	"fmt"
)

// Histogram is a dense N-axis histogram with underflow and overflow bins on
// every axis. Counts and Sumw2 are parallel arrays of length
// prod(axis.Bins()+2); Sumw2 accumulates squared weights for uncertainty
// estimation. A Histogram is mutated only by its owning worker during the
// fill phase and is immutable once handed to the merge step.
type Histogram struct {
	Name   string
	Axes   []Axis
	Counts []float64
	Sumw2  []float64

	strides []int
}

// New creates an empty histogram for the given axes. Axes are validated;
// at least one axis is required.
func New(name string, axes []Axis) (*Histogram, error) {
	if name == "" {
		return nil, fmt.Errorf("histogram name cannot be empty")
	}
	if len(axes) == 0 {
		return nil, fmt.Errorf("histogram %q needs at least one axis", name)
	}

	size := 1
	strides := make([]int, len(axes))
	for i, ax := range axes {
		if err := ax.Validate(); err != nil {
			return nil, fmt.Errorf("histogram %q: %w", name, err)
		}
		strides[i] = size
		size *= ax.Bins() + 2
	}

	return &Histogram{
		Name:    name,
		Axes:    append([]Axis(nil), axes...),
		Counts:  make([]float64, size),
		Sumw2:   make([]float64, size),
		strides: strides,
	}, nil
}

// Fill accumulates one weighted entry at the given coordinates, one per axis.
// Returns false without touching any bin if a coordinate is non-finite.
func (h *Histogram) Fill(coords []float64, weight float64) bool {
	if len(coords) != len(h.Axes) {
		panic(fmt.Sprintf("histogram %q: %d coordinates for %d axes", h.Name, len(coords), len(h.Axes)))
	}

	idx := 0
	for i, ax := range h.Axes {
		bin, ok := ax.FindBin(coords[i])
		if !ok {
			return false
		}
		idx += bin * h.strides[i]
	}

	h.Counts[idx] += weight
	h.Sumw2[idx] += weight * weight
	return true
}

// BinIndex maps per-axis bin numbers (0 = underflow, Bins()+1 = overflow)
// to the flat array offset.
func (h *Histogram) BinIndex(bins ...int) int {
	if len(bins) != len(h.Axes) {
		panic(fmt.Sprintf("histogram %q: %d bin numbers for %d axes", h.Name, len(bins), len(h.Axes)))
	}
	idx := 0
	for i, b := range bins {
		if b < 0 || b > h.Axes[i].Bins()+1 {
			panic(fmt.Sprintf("histogram %q: bin %d out of range on axis %d", h.Name, b, i))
		}
		idx += b * h.strides[i]
	}
	return idx
}

// BinContent returns the accumulated weight in one bin.
func (h *Histogram) BinContent(bins ...int) float64 {
	return h.Counts[h.BinIndex(bins...)]
}

// BinSumw2 returns the accumulated squared weight in one bin.
func (h *Histogram) BinSumw2(bins ...int) float64 {
	return h.Sumw2[h.BinIndex(bins...)]
}

// Sum returns the total accumulated weight including underflow and overflow.
func (h *Histogram) Sum() float64 {
	total := 0.0
	for _, c := range h.Counts {
		total += c
	}
	return total
}

// Compatible reports whether other can be merged into h: same name, same
// dimensionality and identical bin edges on every axis.
func (h *Histogram) Compatible(other *Histogram) error {
	if h.Name != other.Name {
		return fmt.Errorf("histogram name mismatch: %q vs %q", h.Name, other.Name)
	}
	if len(h.Axes) != len(other.Axes) {
		return fmt.Errorf("histogram %q: dimensionality mismatch: %d vs %d axes", h.Name, len(h.Axes), len(other.Axes))
	}
	for i := range h.Axes {
		if !equalEdges(h.Axes[i], other.Axes[i]) {
			return fmt.Errorf("histogram %q: bin edges differ on axis %d", h.Name, i)
		}
	}
	return nil
}

// Merge adds other's bins into h. Both histograms must be compatible;
// merging incompatible binnings is a configuration error.
func (h *Histogram) Merge(other *Histogram) error {
	if err := h.Compatible(other); err != nil {
		return err
	}
	for i := range h.Counts {
		h.Counts[i] += other.Counts[i]
		h.Sumw2[i] += other.Sumw2[i]
	}
	return nil
}

// Clone returns a deep copy. Used by the merge step so per-worker inputs
// stay untouched.
func (h *Histogram) Clone() *Histogram {
	return &Histogram{
		Name:    h.Name,
		Axes:    append([]Axis(nil), h.Axes...),
		Counts:  append([]float64(nil), h.Counts...),
		Sumw2:   append([]float64(nil), h.Sumw2...),
		strides: append([]int(nil), h.strides...),
	}
}
