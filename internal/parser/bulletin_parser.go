package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AlFontal/jpinfect/internal/model"
)

// Bulletin CSV geometry: three metadata rows, then the disease header row,
// then a one-line metric subheader, then prefecture data.
const (
	bulletinDiseaseRow   = 3
	bulletinMetricRow    = 4
	bulletinFirstDataRow = 5
)

var excelArtifactRe = regexp.MustCompile(`^\.\.\.[0-9]+$`)

// ParseBulletinFile parses a modern all-case weekly CSV bulletin from disk.
func ParseBulletinFile(path string) ([]model.NormalizedRow, *FileReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open bulletin: %w", err)
	}
	defer f.Close()
	return ParseBulletin(f, filepath.Base(path))
}

// ParseBulletin parses one bulletin CSV. Bulletin files do not self-declare
// their reporting period, so year and week come from the filename.
func ParseBulletin(r io.Reader, name string) ([]model.NormalizedRow, *FileReport, error) {
	report := &FileReport{File: name, Kind: model.KindBullet}

	year, week := extractYearWeek(name)
	if year == 0 || week == 0 {
		return nil, report, &StructuralError{File: name, Reason: "cannot infer year/week from filename"}
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	grid, err := reader.ReadAll()
	if err != nil {
		return nil, report, &StructuralError{File: name, Reason: fmt.Sprintf("read csv: %v", err)}
	}
	if len(grid) <= bulletinFirstDataRow {
		return nil, report, &StructuralError{File: name, Reason: "too few rows for the header block"}
	}

	diseaseRow := grid[bulletinDiseaseRow]
	metricRow := grid[bulletinMetricRow]

	// Each disease spans a current-week column and a cumulative column; only
	// the current-week column is kept. Disease names carry forward across the
	// merged group like the workbook header resolver.
	type column struct {
		index   int
		disease string
	}
	var columns []column
	disease := ""
	for col := 1; col < len(diseaseRow); col++ {
		raw := cleanBulletinHeader(diseaseRow[col])
		if raw != "" {
			disease = NormalizeDisease(raw)
			report.trackRename(raw, disease)
		}
		if disease == "" {
			continue
		}
		var metric string
		if col < len(metricRow) {
			metric = strings.ToLower(collapseSpaces(metricRow[col]))
		}
		if metric == "" || strings.Contains(metric, "current") {
			columns = append(columns, column{index: col, disease: disease})
			disease = "" // one current-week column per disease
		}
	}
	if len(columns) == 0 {
		return nil, report, &StructuralError{File: name, Reason: "no disease columns recovered from header"}
	}

	date := model.WeekStart(year, week)
	var rows []model.NormalizedRow
	for _, row := range grid[bulletinFirstDataRow:] {
		if len(row) == 0 {
			continue
		}
		prefecture, _ := CleanCell(row[0])
		if prefecture == "" || strings.Contains(strings.ToLower(prefecture), "total") {
			continue
		}
		for _, c := range columns {
			var cell string
			if c.index < len(row) {
				cell = row[c.index]
			}
			rows = append(rows, model.NormalizedRow{
				Prefecture: prefecture,
				Year:       year,
				Week:       week,
				Date:       date,
				Disease:    c.disease,
				Category:   model.CategoryTotal,
				Count:      parseCount(cell),
				Source:     model.SourceConfirmed,
			})
		}
	}

	report.Rows = len(rows)
	return rows, report, nil
}

// cleanBulletinHeader recovers a plain disease name from a messy bulletin
// column header: embedded newlines, full-width punctuation, Excel-generated
// "...N" names and wrapping parentheses.
func cleanBulletinHeader(raw string) string {
	// Keep only the last line; earlier lines are Japanese labels.
	if i := strings.LastIndexAny(raw, "\r\n"); i >= 0 {
		raw = raw[i+1:]
	}
	if excelArtifactRe.MatchString(raw) {
		return ""
	}
	clean := collapseSpaces(normalizeFullwidth(raw))
	// Strip wrapping parentheses only; inner parentheses are part of the name.
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") && strings.Count(clean, "(") == 1 {
		clean = strings.TrimSpace(clean[1 : len(clean)-1])
	}
	return clean
}
