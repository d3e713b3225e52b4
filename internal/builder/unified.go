package builder

import (
	"fmt"
	"sort"

	"github.com/AlFontal/jpinfect/internal/model"
	"github.com/AlFontal/jpinfect/internal/table"
)

// Inputs are the three normalized source tables the unified table is
// assembled from.
type Inputs struct {
	// Historical holds the sex/place-disaggregated workbook rows (through
	// 2023); all categories, already weekly counts.
	Historical []model.NormalizedRow
	// AllCase holds the modern all-case bulletin rows (2024 onward).
	AllCase []model.NormalizedRow
	// Sentinel holds the modern sentinel rows with year-to-date cumulative
	// counts, converted to weekly counts during assembly.
	Sentinel []model.NormalizedRow
}

// Result is the assembled unified table plus the data quality warnings
// collected while building it.
type Result struct {
	Rows     []model.NormalizedRow
	Warnings []model.Warning
	// DroppedSentinelDiseases lists sentinel diseases excluded because the
	// all-case channel also reports them in an overlapping year.
	DroppedSentinelDiseases []string
}

// Build assembles the unified long table: the historical table filtered to
// the aggregate category, the all-case table as-is, and the sentinel table
// converted to incremental counts and reduced to sentinel-exclusive
// diseases. Diseases reported through both modern channels would be counted
// twice, so sentinel rows for them are dropped wholesale.
//
// A (prefecture, year, week, disease) tuple carrying two distinct sources
// after assembly is a logic defect and fails hard.
func Build(in Inputs, policy table.DeltaPolicy) (*Result, error) {
	res := &Result{}

	var historical []model.NormalizedRow
	for _, r := range in.Historical {
		if r.Category == model.CategoryTotal {
			historical = append(historical, r)
		}
	}

	sentinel, warnings := table.ToIncremental(in.Sentinel, policy)
	res.Warnings = append(res.Warnings, warnings...)
	kept, dropped := retainExclusive(sentinel, in.AllCase)
	res.DroppedSentinelDiseases = dropped

	merged := table.Merge(
		table.FromRows(historical),
		table.FromRows(in.AllCase),
		table.FromRows(kept),
	)
	rows, err := table.ToRows(merged)
	if err != nil {
		return nil, fmt.Errorf("assemble unified table: %w", err)
	}
	res.Rows = rows

	if err := checkSingleSource(res.Rows); err != nil {
		return nil, err
	}
	table.SortRows(res.Rows)
	return res, nil
}

// retainExclusive drops sentinel rows for diseases the all-case channel also
// reports in any year the sentinel channel covers.
func retainExclusive(sentinel, allCase []model.NormalizedRow) ([]model.NormalizedRow, []string) {
	sentinelYears := make(map[string]map[int]bool)
	for _, r := range sentinel {
		if sentinelYears[r.Disease] == nil {
			sentinelYears[r.Disease] = make(map[int]bool)
		}
		sentinelYears[r.Disease][r.Year] = true
	}

	shared := make(map[string]bool)
	for _, r := range allCase {
		if years, ok := sentinelYears[r.Disease]; ok && years[r.Year] {
			shared[r.Disease] = true
		}
	}

	var kept []model.NormalizedRow
	for _, r := range sentinel {
		if !shared[r.Disease] {
			kept = append(kept, r)
		}
	}
	var dropped []string
	for d := range shared {
		dropped = append(dropped, d)
	}
	sort.Strings(dropped)
	return kept, dropped
}

// checkSingleSource enforces the provenance invariant of the unified table.
func checkSingleSource(rows []model.NormalizedRow) error {
	type key struct {
		prefecture string
		year, week int
		disease    string
	}
	sources := make(map[key]string, len(rows))
	for _, r := range rows {
		k := key{r.Prefecture, r.Year, r.Week, r.Disease}
		if prev, ok := sources[k]; ok && prev != r.Source {
			return fmt.Errorf("unified table: %s %d week %d %q carries both %q and %q",
				r.Prefecture, r.Year, r.Week, r.Disease, prev, r.Source)
		}
		sources[k] = r.Source
	}
	return nil
}
