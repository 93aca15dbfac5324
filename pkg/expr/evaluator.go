// Package expr defines the evaluator contract the fill engine runs against
// and a session-scoped cache that deduplicates evaluators by expression
// string. The expression language itself is opaque: anything producing
// per-row sub-values behind the Evaluator interface can be plugged in.
package expr

import (
	"fmt"

	"github.com/athuldev13/Loki/pkg/dataset"
)

// Evaluator produces, per row, a sequence of numeric sub-values. Boolean
// expressions report nonzero for true. Calls are synchronous, in-memory
// computations; implementations must not retain rows.
type Evaluator interface {
	// Cardinality returns the number of sub-values the expression yields
	// for the row.
	Cardinality(row dataset.Row) int
	// Value returns the i-th sub-value. Callers index within
	// [0, Cardinality(row)).
	Value(row dataset.Row, i int) float64
}

// Binder constructs an Evaluator for an expression string, bound to the
// active dataset shard. Binding fails for malformed expressions or
// expressions referencing data absent from the shard; both are fatal
// configuration errors for the session.
type Binder interface {
	Bind(expression string) (Evaluator, error)
}

// Schema exposes the bindable columns of the active shard.
type Schema interface {
	HasColumn(name string) bool
}

// FieldBinder is the stock Binder: the expression is the dotted path of a
// numeric column, whose sub-values are read directly off the row.
type FieldBinder struct {
	schema Schema
}

// NewFieldBinder creates a binder validating field references against the
// shard schema.
func NewFieldBinder(schema Schema) *FieldBinder {
	return &FieldBinder{schema: schema}
}

// Bind validates the column reference and returns its evaluator.
func (b *FieldBinder) Bind(expression string) (Evaluator, error) {
	if b.schema != nil && !b.schema.HasColumn(expression) {
		return nil, fmt.Errorf("expression %q: no such numeric column in shard", expression)
	}
	return &fieldEvaluator{field: expression}, nil
}

type fieldEvaluator struct {
	field string
}

func (e *fieldEvaluator) Cardinality(row dataset.Row) int {
	return row.Cardinality(e.field)
}

func (e *fieldEvaluator) Value(row dataset.Row, i int) float64 {
	return row.Value(e.field, i)
}
