// Package dataset reads row-oriented tabular data where a field may yield
// several sub-values per row (repeated parquet columns). Rows are handed to
// the fill engine, which indexes fields through expression evaluators.
package dataset

// Row is one record of the input dataset. Each field holds zero or more
// numeric sub-values; a scalar field holds exactly one.
type Row struct {
	values map[string][]float64
}

// NewRow builds a row from field values. The map is used as-is.
func NewRow(values map[string][]float64) Row {
	return Row{values: values}
}

// Has reports whether the row carries any value for the field.
func (r Row) Has(field string) bool {
	return len(r.values[field]) > 0
}

// Cardinality returns the number of sub-values the field yields for this row.
func (r Row) Cardinality(field string) int {
	return len(r.values[field])
}

// Value returns the i-th sub-value of the field. Callers index within
// [0, Cardinality(field)).
func (r Row) Value(field string, i int) float64 {
	return r.values[field][i]
}
