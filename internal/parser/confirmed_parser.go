package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/AlFontal/jpinfect/internal/model"
)

// ConfirmedParser extracts normalized rows from a historical confirmed-cases
// workbook (sex- or place-disaggregated). One sheet is one reporting week;
// the sheet layout rules are chosen by the workbook's year.
type ConfirmedParser struct {
	file   *excelize.File
	name   string
	kind   model.DatasetKind
	year   int
	layout SheetLayout
}

// OpenConfirmed opens a workbook from disk. The year is inferred from the
// filename; the kind from its naming pattern.
func OpenConfirmed(path string) (*ConfirmedParser, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return newConfirmed(f, filepath.Base(path), "")
}

// NewConfirmed reads a workbook from r. name is used for year inference and
// diagnostics; kind may be empty to infer it from name.
func NewConfirmed(r io.Reader, name string, kind model.DatasetKind) (*ConfirmedParser, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		// An undecodable body is a property of the file, not of the run.
		return nil, &StructuralError{File: name, Reason: fmt.Sprintf("open workbook: %v", err)}
	}
	return newConfirmed(f, name, kind)
}

func newConfirmed(f *excelize.File, name string, kind model.DatasetKind) (*ConfirmedParser, error) {
	year, ok := inferYear(name)
	if !ok {
		f.Close()
		return nil, fmt.Errorf("cannot infer year from filename %q", name)
	}
	if kind == "" {
		inferred, err := model.InferKind(name)
		if err != nil {
			f.Close()
			return nil, err
		}
		kind = inferred
	}
	return &ConfirmedParser{
		file:   f,
		name:   name,
		kind:   kind,
		year:   year,
		layout: LayoutForYear(year),
	}, nil
}

// Close releases the underlying workbook.
func (p *ConfirmedParser) Close() error { return p.file.Close() }

// Parse walks the weekly sheets and emits one row per (prefecture, mapped
// column). Sheets with a broken header block are skipped with a diagnostic;
// the rest of the workbook still parses.
func (p *ConfirmedParser) Parse() ([]model.NormalizedRow, *FileReport, error) {
	report := &FileReport{File: p.name, Kind: p.kind}
	sheets := p.file.GetSheetList()

	var rows []model.NormalizedRow
	for idx := p.layout.FirstSheet; idx <= p.layout.LastSheet && idx < len(sheets); idx++ {
		sheetName := sheets[idx]
		week := p.layout.WeekForSheet(idx)

		sheetRows, err := p.parseSheet(sheetName, week, report)
		if err != nil {
			var structural *StructuralError
			if errors.As(err, &structural) {
				report.SkippedSheets = append(report.SkippedSheets, SheetSkip{
					Sheet:  sheetName,
					Reason: structural.Reason,
				})
				continue
			}
			return nil, report, err
		}
		report.ParsedSheets++
		rows = append(rows, sheetRows...)
	}

	report.Rows = len(rows)
	return rows, report, nil
}

func (p *ConfirmedParser) parseSheet(sheetName string, week int, report *FileReport) ([]model.NormalizedRow, error) {
	grid, err := p.file.GetRows(sheetName)
	if err != nil {
		return nil, &StructuralError{File: p.name, Sheet: sheetName, Reason: fmt.Sprintf("read sheet: %v", err)}
	}
	if len(grid) <= p.layout.FirstDataRow {
		return nil, &StructuralError{File: p.name, Sheet: sheetName, Reason: "too few rows for the header block"}
	}

	res, err := ResolveHeader(grid[p.layout.DiseaseRow], grid[p.layout.CategoryRow])
	if err != nil {
		var structural *StructuralError
		if errors.As(err, &structural) {
			structural.File = p.name
			structural.Sheet = sheetName
		}
		return nil, err
	}
	for _, w := range res.Warnings {
		w.File = p.name
		w.Sheet = sheetName
		report.Warnings = append(report.Warnings, w)
	}
	for raw, canon := range res.Renames {
		report.trackRename(raw, canon)
	}

	date := model.WeekStart(p.year, week)
	var rows []model.NormalizedRow
	for _, row := range grid[p.layout.FirstDataRow:] {
		if len(row) == 0 {
			continue
		}
		prefecture, _ := CleanCell(row[0])
		if prefecture == "" || strings.Contains(strings.ToLower(prefecture), "total") {
			continue
		}
		for _, m := range res.Columns {
			var cell string
			if m.Column < len(row) {
				cell = row[m.Column]
			}
			rows = append(rows, model.NormalizedRow{
				Prefecture: prefecture,
				Year:       p.year,
				Week:       week,
				Date:       date,
				Disease:    m.Disease,
				Category:   m.Category,
				Count:      parseCount(cell),
				Source:     model.SourceConfirmed,
			})
		}
	}
	return rows, nil
}
