package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/AlFontal/jpinfect/internal/model"
)

var (
	// "4th week, 2025" in the English header, "2025年04週" in the Japanese one.
	enWeekHeaderRe = regexp.MustCompile(`(?i)(\d+)(?:st|nd|rd|th)\s+week,\s*(\d{4})`)
	jaWeekHeaderRe = regexp.MustCompile(`(\d{4})年(\d{1,2})週`)
)

// ParseSentinelFile parses a weekly sentinel surveillance CSV from disk.
func ParseSentinelFile(path string) ([]model.NormalizedRow, *FileReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sentinel csv: %w", err)
	}
	defer f.Close()
	return ParseSentinel(f, filepath.Base(path))
}

// ParseSentinel parses one sentinel CSV in either the English /rapid/ layout
// ("Current week" / "per sentinel" column pairs) or the legacy Japanese
// Shift-JIS layout (報告 / 定当 pairs). Each disease spans two columns: the
// weekly count and the per-sentinel rate.
func ParseSentinel(r io.Reader, name string) ([]model.NormalizedRow, *FileReport, error) {
	report := &FileReport{File: name, Kind: model.KindSentinel}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, report, fmt.Errorf("read sentinel csv: %w", err)
	}
	if !utf8.Valid(data) {
		// Legacy files are Shift-JIS encoded.
		decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), japanese.ShiftJIS.NewDecoder()))
		if err != nil {
			return nil, report, &StructuralError{File: name, Reason: fmt.Sprintf("decode shift-jis: %v", err)}
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	grid, err := reader.ReadAll()
	if err != nil {
		return nil, report, &StructuralError{File: name, Reason: fmt.Sprintf("read csv: %v", err)}
	}
	if len(grid) < 4 {
		return nil, report, &StructuralError{File: name, Reason: "too few rows for the header block"}
	}

	metricIdx := findMetricRow(grid)
	if metricIdx < 1 {
		return nil, report, &StructuralError{File: name, Reason: "metric header row not found"}
	}
	diseaseRow := grid[metricIdx-1]
	metricRow := grid[metricIdx]

	// Pair each disease with its count column and the per-sentinel column
	// that follows it.
	type group struct {
		disease  string
		countCol int
		perCol   int // -1 when absent
	}
	var groups []group
	current := ""
	countCol := -1
	flush := func(perCol int) {
		if current == "" || countCol < 0 {
			return
		}
		groups = append(groups, group{disease: current, countCol: countCol, perCol: perCol})
		current = ""
		countCol = -1
	}
	for col := 1; col < len(diseaseRow); col++ {
		cell := cleanSentinelName(diseaseRow[col])
		if cell != "" {
			flush(-1)
			normalized := NormalizeDisease(cell)
			report.trackRename(cell, normalized)
			current = normalized
			countCol = col
			continue
		}
		var metric string
		if col < len(metricRow) {
			metric = strings.TrimSpace(metricRow[col])
		}
		if current != "" && metric != "" {
			flush(col)
		}
	}
	flush(-1)

	if len(groups) == 0 {
		return nil, report, &StructuralError{File: name, Reason: "no disease columns recovered from header"}
	}

	year, week := sentinelYearWeek(grid, name)
	if year == 0 || week == 0 {
		return nil, report, &StructuralError{File: name, Reason: "cannot determine reporting year/week"}
	}

	date := model.WeekStart(year, week)
	var rows []model.NormalizedRow
	for _, row := range grid[metricIdx+1:] {
		if len(row) == 0 {
			continue
		}
		prefecture, _ := CleanCell(row[0])
		if prefecture == "" || isAggregateRow(prefecture) {
			continue
		}
		for _, g := range groups {
			var countCell, perCell string
			if g.countCol < len(row) {
				countCell = row[g.countCol]
			}
			if g.perCol >= 0 && g.perCol < len(row) {
				perCell = row[g.perCol]
			}
			rows = append(rows, model.NormalizedRow{
				Prefecture:  prefecture,
				Year:        year,
				Week:        week,
				Date:        date,
				Disease:     g.disease,
				Category:    model.CategoryTotal,
				Count:       parseCount(countCell),
				PerSentinel: parseCount(perCell),
				Source:      model.SourceSentinel,
			})
		}
	}

	report.Rows = len(rows)
	return rows, report, nil
}

// findMetricRow locates the row of "Current week"/"per sentinel" (or 報告/定当)
// labels sitting directly under the disease names.
func findMetricRow(grid [][]string) int {
	for idx, row := range grid {
		for _, cell := range row {
			c := strings.TrimSpace(cell)
			lower := strings.ToLower(c)
			if strings.Contains(lower, "current week") || c == "報告" || c == "定当" {
				return idx
			}
		}
	}
	return -1
}

// sentinelYearWeek reads the reporting period from the file header, falling
// back to the filename when the header carries neither form.
func sentinelYearWeek(grid [][]string, name string) (int, int) {
	if len(grid) > 1 {
		header := strings.Join(grid[1], ", ") + " " + strings.Join(grid[0], ", ")
		if m := enWeekHeaderRe.FindStringSubmatch(header); m != nil {
			week, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[2])
			return year, week
		}
		if m := jaWeekHeaderRe.FindStringSubmatch(header); m != nil {
			year, _ := strconv.Atoi(m[1])
			week, _ := strconv.Atoi(m[2])
			return year, week
		}
	}
	return extractYearWeek(name)
}

// cleanSentinelName cleans a disease header cell. English layouts carry
// parentheses as part of the name, so bilingual extraction only applies to
// cells that actually contain Japanese text.
func cleanSentinelName(raw string) string {
	clean := collapseSpaces(normalizeFullwidth(strings.ReplaceAll(raw, "\x00", "")))
	if hasJapanese(clean) {
		extracted, _ := CleanCell(raw)
		return extracted
	}
	return clean
}

// isAggregateRow reports whether a prefecture cell is a whole-country
// aggregate row rather than a prefecture.
func isAggregateRow(prefecture string) bool {
	lower := strings.ToLower(prefecture)
	return strings.HasPrefix(lower, "total") ||
		strings.Contains(prefecture, "総数") ||
		strings.Contains(prefecture, "合計")
}
