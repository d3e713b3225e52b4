package table

import (
	"fmt"
	"sort"

	"github.com/AlFontal/jpinfect/internal/model"
)

// DeltaPolicy controls how a negative week-over-week delta in a cumulative
// series is handled. Negative deltas are real in the archive: upstream
// revisions occasionally lower a cumulative count.
type DeltaPolicy string

const (
	// DeltaSigned keeps the negative delta and records a warning.
	DeltaSigned DeltaPolicy = "signed"
	// DeltaClamp floors the delta at zero and records a warning.
	DeltaClamp DeltaPolicy = "clamp"
)

// ParseDeltaPolicy validates a configured policy name.
func ParseDeltaPolicy(s string) (DeltaPolicy, error) {
	switch DeltaPolicy(s) {
	case DeltaSigned, DeltaClamp:
		return DeltaPolicy(s), nil
	case "":
		return DeltaSigned, nil
	}
	return "", fmt.Errorf("unknown delta policy %q", s)
}

type seriesKey struct {
	prefecture string
	disease    string
	category   string
	source     string
	year       int
}

// ToIncremental converts cumulative weekly counts into per-week counts.
// Rows are grouped per (prefecture, disease, category, source) within one
// year, ordered by week; the first observed count in a series is kept as-is
// and each later count becomes the difference to the previous week. Nil
// counts stay nil and do not advance the series.
//
// The returned rows are sorted by series and week. Warnings flag every
// negative delta regardless of policy.
func ToIncremental(rows []model.NormalizedRow, policy DeltaPolicy) ([]model.NormalizedRow, []model.Warning) {
	out := append([]model.NormalizedRow(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Prefecture != b.Prefecture {
			return a.Prefecture < b.Prefecture
		}
		if a.Disease != b.Disease {
			return a.Disease < b.Disease
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Week < b.Week
	})

	var warnings []model.Warning
	prev := make(map[seriesKey]float64)
	started := make(map[seriesKey]bool)
	for i := range out {
		r := &out[i]
		if r.Count == nil {
			continue
		}
		k := seriesKey{r.Prefecture, r.Disease, r.Category, r.Source, r.Year}
		cum := *r.Count
		if started[k] {
			delta := cum - prev[k]
			if delta < 0 {
				warnings = append(warnings, model.Warning{
					Kind: model.WarnNegativeDelta,
					Detail: fmt.Sprintf("%s / %s %d week %d: cumulative fell from %g to %g",
						r.Prefecture, r.Disease, r.Year, r.Week, prev[k], cum),
				})
				if policy == DeltaClamp {
					delta = 0
				}
			}
			r.Count = model.Count64(delta)
		}
		prev[k] = cum
		started[k] = true
	}
	return out, warnings
}
