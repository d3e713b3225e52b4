package table

import (
	"fmt"
	"sort"
	"time"

	"github.com/AlFontal/jpinfect/internal/model"
)

// Canonical long-format column names shared by frames, CSV exports and the
// store schema.
const (
	ColPrefecture  = "prefecture"
	ColYear        = "year"
	ColWeek        = "week"
	ColDate        = "date"
	ColDisease     = "disease"
	ColCategory    = "category"
	ColCount       = "count"
	ColPerSentinel = "per_sentinel"
	ColSource      = "source"
)

// LongColumns is the canonical column order of a long-format frame.
var LongColumns = []string{
	ColPrefecture, ColYear, ColWeek, ColDate,
	ColDisease, ColCategory, ColCount, ColPerSentinel, ColSource,
}

// FromRows builds a long-format frame from normalized rows. Nullable counts
// map to nil cells.
func FromRows(rows []model.NormalizedRow) *Frame {
	f := New(LongColumns...)
	for _, r := range rows {
		var count, per any
		if r.Count != nil {
			count = *r.Count
		}
		if r.PerSentinel != nil {
			per = *r.PerSentinel
		}
		f.data = append(f.data, []any{
			r.Prefecture, r.Year, r.Week, r.Date,
			r.Disease, r.Category, count, per, r.Source,
		})
	}
	return f
}

// ToRows converts a long-format frame back to normalized rows.
func ToRows(f *Frame) ([]model.NormalizedRow, error) {
	for _, c := range LongColumns {
		if !f.HasColumn(c) {
			return nil, fmt.Errorf("to rows: no column %q", c)
		}
	}
	rows := make([]model.NormalizedRow, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		r := model.NormalizedRow{
			Prefecture: cellString(f.At(i, ColPrefecture)),
			Disease:    cellString(f.At(i, ColDisease)),
			Category:   cellString(f.At(i, ColCategory)),
			Source:     cellString(f.At(i, ColSource)),
		}
		var err error
		if r.Year, err = cellInt(f.At(i, ColYear)); err != nil {
			return nil, fmt.Errorf("to rows: row %d year: %w", i, err)
		}
		if r.Week, err = cellInt(f.At(i, ColWeek)); err != nil {
			return nil, fmt.Errorf("to rows: row %d week: %w", i, err)
		}
		if d, ok := f.At(i, ColDate).(time.Time); ok {
			r.Date = d
		} else {
			r.Date = model.WeekStart(r.Year, r.Week)
		}
		r.Count = cellFloat(f.At(i, ColCount))
		r.PerSentinel = cellFloat(f.At(i, ColPerSentinel))
		rows = append(rows, r)
	}
	return rows, nil
}

// SortRows orders rows by date, then prefecture, disease, category and
// source. The sort is stable so equal rows keep their input order.
func SortRows(rows []model.NormalizedRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Prefecture != b.Prefecture {
			return a.Prefecture < b.Prefecture
		}
		if a.Disease != b.Disease {
			return a.Disease < b.Disease
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Source < b.Source
	})
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func cellInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

func cellFloat(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return model.Count64(n)
	case int:
		return model.Count64(float64(n))
	}
	return nil
}
