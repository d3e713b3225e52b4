package exporter

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/AlFontal/jpinfect/internal/model"
	"github.com/AlFontal/jpinfect/internal/table"
)

// Options controls the workbook layout.
type Options struct {
	// Wide pivots diseases into columns; the default is the long schema.
	Wide bool
	// Progress receives export progress for interactive callers.
	Progress func(ProgressEvent)
}

// Export renders the unified table as a workbook with one sheet per year.
func Export(rows []model.NormalizedRow, opts Options) (*excelize.File, error) {
	byYear := make(map[int][]model.NormalizedRow)
	for _, r := range rows {
		byYear[r.Year] = append(byYear[r.Year], r)
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	f := excelize.NewFile()
	reportProgress(opts.Progress, 0, "preparing workbook")
	for i, year := range years {
		sheet := strconv.Itoa(year)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
		}

		if err := writeYearSheet(f, sheet, byYear[year], opts.Wide); err != nil {
			return nil, err
		}
		reportProgress(opts.Progress, (i+1)*100/len(years), "sheet "+sheet)
	}
	reportProgress(opts.Progress, 100, "done")
	return f, nil
}

// ExportFile writes the workbook to path.
func ExportFile(path string, rows []model.NormalizedRow, opts Options) error {
	f, err := Export(rows, opts)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeYearSheet(f *excelize.File, sheet string, rows []model.NormalizedRow, wide bool) error {
	frame := table.FromRows(rows)
	if wide {
		keys := []string{
			table.ColPrefecture, table.ColYear, table.ColWeek,
			table.ColDate, table.ColCategory, table.ColSource,
		}
		pivoted, err := table.PivotWide(frame, keys, table.ColDisease, table.ColCount)
		if err != nil {
			return fmt.Errorf("pivot year %s: %w", sheet, err)
		}
		frame = pivoted
	}

	header := make([]any, 0, len(frame.Columns()))
	for _, c := range frame.Columns() {
		header = append(header, c)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < frame.Len(); i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := frame.Row(i)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	return nil
}
