package model

import "time"

// Source labels for the provenance column.
const (
	SourceConfirmed = "Confirmed cases"
	SourceSentinel  = "Sentinel surveillance"
)

// Canonical category names. Header cells are collapsed onto this set; anything
// else survives only as raw text on columns the resolver chose to keep.
const (
	CategoryTotal   = "total"
	CategoryMale    = "male"
	CategoryFemale  = "female"
	CategoryJapan   = "japan"
	CategoryOthers  = "others"
	CategoryUnknown = "unknown"
)

// NormalizedRow is one observation in the long-format schema shared by every
// parser output and by the unified table. Count is nil when the source cell
// was blank or non-numeric; PerSentinel is set only for sentinel rows.
type NormalizedRow struct {
	Prefecture  string
	Year        int
	Week        int
	Date        time.Time
	Disease     string
	Category    string
	Count       *float64
	PerSentinel *float64
	Source      string
}

// Key identifies a row within a single-source table.
type Key struct {
	Prefecture string
	Year       int
	Week       int
	Disease    string
	Category   string
	Source     string
}

// Key returns the uniqueness key of the row.
func (r NormalizedRow) Key() Key {
	return Key{
		Prefecture: r.Prefecture,
		Year:       r.Year,
		Week:       r.Week,
		Disease:    r.Disease,
		Category:   r.Category,
		Source:     r.Source,
	}
}

// WeekStart returns the Monday of the given ISO-like reporting week. Week 1 is
// the week containing January 4th.
func WeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	daysSinceMonday := (int(jan4.Weekday()) + 6) % 7
	week1Monday := jan4.AddDate(0, 0, -daysSinceMonday)
	return week1Monday.AddDate(0, 0, (week-1)*7)
}

// Count64 is a convenience constructor for nullable counts.
func Count64(v float64) *float64 { return &v }
