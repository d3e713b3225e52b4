package table

import (
	"fmt"
	"sort"
	"strings"
)

// PivotWide reshapes a long frame into wide form: one row per distinct key
// tuple, one column per distinct value of nameCol holding the matching
// valueCol cell. Combinations absent from the input become nil. Value columns
// are sorted for deterministic output.
//
// Two input rows with the same key tuple and name are a logic defect in the
// caller, not a data quality problem, and fail hard.
func PivotWide(f *Frame, keys []string, nameCol, valueCol string) (*Frame, error) {
	for _, c := range append(append([]string(nil), keys...), nameCol, valueCol) {
		if !f.HasColumn(c) {
			return nil, fmt.Errorf("pivot wide: no column %q", c)
		}
	}

	var names []string
	nameSeen := make(map[string]bool)
	type entry struct {
		keyVals []any
		cells   map[string]any
	}
	var order []string
	groups := make(map[string]*entry)

	for i := 0; i < f.Len(); i++ {
		keyVals := make([]any, len(keys))
		parts := make([]string, len(keys))
		for j, k := range keys {
			keyVals[j] = f.At(i, k)
			parts[j] = fmt.Sprint(keyVals[j])
		}
		gk := strings.Join(parts, "\x1f")

		g, ok := groups[gk]
		if !ok {
			g = &entry{keyVals: keyVals, cells: make(map[string]any)}
			groups[gk] = g
			order = append(order, gk)
		}

		name := fmt.Sprint(f.At(i, nameCol))
		if _, dup := g.cells[name]; dup {
			return nil, fmt.Errorf("pivot wide: duplicate entry for key %v, column %q", keyVals, name)
		}
		g.cells[name] = f.At(i, valueCol)
		if !nameSeen[name] {
			nameSeen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := New(append(append([]string(nil), keys...), names...)...)
	for _, gk := range order {
		g := groups[gk]
		row := make([]any, 0, len(keys)+len(names))
		row = append(row, g.keyVals...)
		for _, n := range names {
			row = append(row, g.cells[n])
		}
		out.data = append(out.data, row)
	}
	return out, nil
}

// PivotLong is the inverse of PivotWide: every non-key column becomes one
// output row per input row, with the column name in nameCol and its cell in
// valueCol. Nil cells produce no row, so PivotLong(PivotWide(t)) reproduces
// t up to row order when t has no nil values.
func PivotLong(f *Frame, keys []string, nameCol, valueCol string) (*Frame, error) {
	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !f.HasColumn(k) {
			return nil, fmt.Errorf("pivot long: no column %q", k)
		}
		keySet[k] = true
	}

	var valueCols []string
	for _, c := range f.cols {
		if !keySet[c] {
			valueCols = append(valueCols, c)
		}
	}

	out := New(append(append([]string(nil), keys...), nameCol, valueCol)...)
	for i := 0; i < f.Len(); i++ {
		for _, vc := range valueCols {
			v := f.At(i, vc)
			if v == nil {
				continue
			}
			row := make([]any, 0, len(keys)+2)
			for _, k := range keys {
				row = append(row, f.At(i, k))
			}
			row = append(row, vc, v)
			out.data = append(out.data, row)
		}
	}
	return out, nil
}
