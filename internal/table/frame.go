package table

import "fmt"

// Frame is a small column-ordered table used between the parsers and the
// unified table builder. Cells are untyped: the pipeline stores strings,
// ints, float64 counts and nil for missing values.
type Frame struct {
	cols  []string
	index map[string]int
	data  [][]any
}

// New creates an empty frame with the given column order.
func New(cols ...string) *Frame {
	f := &Frame{cols: append([]string(nil), cols...), index: make(map[string]int, len(cols))}
	for i, c := range cols {
		f.index[c] = i
	}
	return f
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string { return append([]string(nil), f.cols...) }

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.data) }

// HasColumn reports whether the frame has a column with this name.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Append adds one row. The value count must match the column count.
func (f *Frame) Append(vals ...any) error {
	if len(vals) != len(f.cols) {
		return fmt.Errorf("append: got %d values for %d columns", len(vals), len(f.cols))
	}
	f.data = append(f.data, append([]any(nil), vals...))
	return nil
}

// At returns the cell at (row, column), nil when the column is unknown.
func (f *Frame) At(row int, col string) any {
	i, ok := f.index[col]
	if !ok {
		return nil
	}
	return f.data[row][i]
}

// Row returns the raw cells of one row. The slice is shared, not copied.
func (f *Frame) Row(i int) []any { return f.data[i] }

// Merge concatenates frames. The result's columns are the union in first
// appearance order; rows missing a column are filled with nil.
func Merge(frames ...*Frame) *Frame {
	var cols []string
	seen := make(map[string]bool)
	for _, f := range frames {
		for _, c := range f.cols {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}

	out := New(cols...)
	for _, f := range frames {
		for _, row := range f.data {
			merged := make([]any, len(cols))
			for i, c := range cols {
				if j, ok := f.index[c]; ok {
					merged[i] = row[j]
				}
			}
			out.data = append(out.data, merged)
		}
	}
	return out
}
