package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Shard is one open parquet input file. Workers process whole shards so
// evaluator rebinding never crosses worker boundaries.
type Shard struct {
	path string
	f    *os.File
	pf   *parquet.File

	// Leaf column names (dotted paths) indexed by parquet column index.
	cols    []string
	numeric map[string]bool
}

// OpenShard opens a parquet file and indexes its numeric leaf columns.
func OpenShard(path string) (*Shard, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shard: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	pf, err := parquet.OpenFile(f, fi.Size(),
		parquet.SkipBloomFilters(true),
		parquet.SkipPageIndex(true),
	)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	schema := pf.Schema()
	paths := schema.Columns()
	cols := make([]string, len(paths))
	numeric := make(map[string]bool, len(paths))
	for i, p := range paths {
		name := strings.Join(p, ".")
		cols[i] = name
		if leaf, ok := schema.Lookup(p...); ok {
			switch leaf.Node.Type().Kind() {
			case parquet.Boolean, parquet.Int32, parquet.Int64, parquet.Float, parquet.Double:
				numeric[name] = true
			}
		}
	}

	return &Shard{
		path:    path,
		f:       f,
		pf:      pf,
		cols:    cols,
		numeric: numeric,
	}, nil
}

// Path returns the shard's file path.
func (s *Shard) Path() string {
	return s.path
}

// NumRows returns the number of rows in the shard.
func (s *Shard) NumRows() int64 {
	return s.pf.NumRows()
}

// HasColumn reports whether the shard's schema contains a numeric leaf
// column with the given dotted path. Expression binding uses this to fail
// fast when configuration does not match the data.
func (s *Shard) HasColumn(name string) bool {
	return s.numeric[name]
}

// Columns returns the dotted paths of all leaf columns.
func (s *Shard) Columns() []string {
	return append([]string(nil), s.cols...)
}

// Close releases the underlying file.
func (s *Shard) Close() error {
	return s.f.Close()
}

// Iterator returns a row iterator over the shard in file order.
func (s *Shard) Iterator() *RowIterator {
	return &RowIterator{
		shard:  s,
		groups: s.pf.RowGroups(),
		buf:    make([]parquet.Row, 64),
	}
}

// RowIterator streams rows across the shard's row groups. Next returns
// io.EOF after the last row.
type RowIterator struct {
	shard  *Shard
	groups []parquet.RowGroup
	rows   parquet.Rows
	buf    []parquet.Row
	n, i   int
}

// Next returns the next row. Null values contribute no sub-value and
// non-numeric leaves are skipped entirely.
func (it *RowIterator) Next(ctx context.Context) (Row, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Row{}, err
		}

		if it.i < it.n {
			row := it.shard.convert(it.buf[it.i])
			it.i++
			return row, nil
		}

		if it.rows == nil {
			if len(it.groups) == 0 {
				return Row{}, io.EOF
			}
			it.rows = it.groups[0].Rows()
			it.groups = it.groups[1:]
		}

		for j := range it.buf {
			it.buf[j] = it.buf[j][:0]
		}
		n, err := it.rows.ReadRows(it.buf)
		it.n, it.i = n, 0
		if n == 0 {
			closeErr := it.rows.Close()
			it.rows = nil
			if err != nil && err != io.EOF {
				return Row{}, fmt.Errorf("read rows: %w", err)
			}
			if closeErr != nil {
				return Row{}, closeErr
			}
			continue
		}
		if err != nil && err != io.EOF {
			return Row{}, fmt.Errorf("read rows: %w", err)
		}
	}
}

// Close releases any open row group reader.
func (it *RowIterator) Close() {
	if it.rows != nil {
		_ = it.rows.Close()
		it.rows = nil
	}
}

func (s *Shard) convert(pr parquet.Row) Row {
	values := make(map[string][]float64)
	for _, v := range pr {
		if v.IsNull() {
			continue
		}
		name := s.cols[v.Column()]
		f, ok := toFloat(v)
		if !ok {
			continue
		}
		values[name] = append(values[name], f)
	}
	return Row{values: values}
}

func toFloat(v parquet.Value) (float64, bool) {
	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			return 1.0, true
		}
		return 0.0, true
	case parquet.Int32:
		return float64(v.Int32()), true
	case parquet.Int64:
		return float64(v.Int64()), true
	case parquet.Float:
		return float64(v.Float()), true
	case parquet.Double:
		return v.Double(), true
	default:
		return 0, false
	}
}
