package parser

import (
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/AlFontal/jpinfect/internal/model"
)

// buildWorkbook assembles an in-memory workbook with the archive geometry:
// sheet 0 is metadata, weekly sheets follow, header block on rows 3-4
// (1-based), data from row 5.
func buildWorkbook(t *testing.T) *ConfirmedParser {
	t.Helper()
	f := excelize.NewFile()

	if _, err := f.NewSheet("W1"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	must := func(err error) {
		if err != nil {
			t.Fatalf("build workbook: %v", err)
		}
	}
	must(f.SetSheetRow("W1", "A3", &[]any{"", "麻しん (Measles)", "", "風しん (Rubella)"}))
	must(f.SetSheetRow("W1", "A4", &[]any{"", "総数 (Total)", "男 (Male)", "総数 (Total)"}))
	must(f.SetSheetRow("W1", "A5", &[]any{"北海道 (Hokkaido)", 3, 2, "-"}))
	must(f.SetSheetRow("W1", "A6", &[]any{"青森県 (Aomori)", 0, 0, 1}))
	must(f.SetSheetRow("W1", "A7", &[]any{"総数 (Total)", 3, 2, 1}))

	// Broken header block: no column resolves to the total category.
	if _, err := f.NewSheet("W2"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	must(f.SetSheetRow("W2", "A3", &[]any{"", "麻しん (Measles)"}))
	must(f.SetSheetRow("W2", "A4", &[]any{"", "男 (Male)"}))
	must(f.SetSheetRow("W2", "A5", &[]any{"北海道 (Hokkaido)", 9}))

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	p, err := NewConfirmed(buf, "2005-Syu_01_1.xlsx", "")
	if err != nil {
		t.Fatalf("NewConfirmed: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestConfirmedParse(t *testing.T) {
	p := buildWorkbook(t)
	if p.kind != model.KindSex {
		t.Fatalf("inferred kind = %q, want sex", p.kind)
	}
	if p.year != 2005 {
		t.Fatalf("inferred year = %d, want 2005", p.year)
	}

	rows, report, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// 2 prefectures x 3 mapped columns; the aggregate row is excluded.
	if len(rows) != 6 {
		t.Fatalf("got %d rows, want 6: %+v", len(rows), rows)
	}
	first := rows[0]
	if first.Prefecture != "Hokkaido" || first.Disease != "Measles" || first.Category != model.CategoryTotal {
		t.Errorf("unexpected first row: %+v", first)
	}
	if first.Count == nil || *first.Count != 3 {
		t.Errorf("first count = %v, want 3", first.Count)
	}
	if first.Week != 1 || first.Year != 2005 {
		t.Errorf("week/year = %d/%d, want 1/2005", first.Week, first.Year)
	}
	wantDate := time.Date(2005, 1, 3, 0, 0, 0, 0, time.UTC)
	if !first.Date.Equal(wantDate) {
		t.Errorf("date = %v, want %v", first.Date, wantDate)
	}
	if first.Source != model.SourceConfirmed {
		t.Errorf("source = %q", first.Source)
	}

	// Dash cells stay null, never zero.
	if rows[2].Disease != "Rubella" || rows[2].Count != nil {
		t.Errorf("dash cell should be nil: %+v", rows[2])
	}
	if rows[3].Count == nil || *rows[3].Count != 0 {
		t.Errorf("explicit zero must survive: %+v", rows[3])
	}

	if report.ParsedSheets != 1 {
		t.Errorf("parsed sheets = %d, want 1", report.ParsedSheets)
	}
	if len(report.SkippedSheets) != 1 || report.SkippedSheets[0].Sheet != "W2" {
		t.Errorf("skipped sheets = %+v, want W2", report.SkippedSheets)
	}
}

func TestLayoutForYear(t *testing.T) {
	tests := []struct {
		year      int
		lastSheet int
		firstWeek int
		lastWeek  int
	}{
		{1999, 39, 14, 52},
		{2004, 53, 1, 53},
		{2005, 52, 1, 52},
		{2015, 53, 1, 53},
	}
	for _, tt := range tests {
		l := LayoutForYear(tt.year)
		if l.LastSheet != tt.lastSheet {
			t.Errorf("%d: LastSheet = %d, want %d", tt.year, l.LastSheet, tt.lastSheet)
		}
		if got := l.WeekForSheet(l.FirstSheet); got != tt.firstWeek {
			t.Errorf("%d: first week = %d, want %d", tt.year, got, tt.firstWeek)
		}
		if got := l.WeekForSheet(l.LastSheet); got != tt.lastWeek {
			t.Errorf("%d: last week = %d, want %d", tt.year, got, tt.lastWeek)
		}
	}
}
