package parser

// SheetLayout carries the per-year workbook geometry: where the header block
// sits, where data starts, and which sheets hold weekly data. Row and sheet
// indices are 0-based. The first sheets of every workbook are metadata sheets
// and are skipped positionally, so 53-week years are enumerated explicitly
// instead of inferred from the sheet count.
type SheetLayout struct {
	DiseaseRow   int
	CategoryRow  int
	FirstDataRow int
	FirstSheet   int
	LastSheet    int
	// WeekOffset maps a sheet index to its reporting week: week = sheet + offset.
	WeekOffset int
}

// WeekForSheet returns the reporting week of a sheet index.
func (l SheetLayout) WeekForSheet(sheet int) int { return sheet + l.WeekOffset }

// fiftyThreeWeekYears lists archive years with a 53rd reporting week.
var fiftyThreeWeekYears = map[int]bool{2004: true, 2009: true, 2015: true}

// LayoutForYear returns the sheet layout rules for a workbook year.
// Reporting started mid-year in 1999: the workbook's first data sheet is
// week 14 and the partial year is preserved as-is.
func LayoutForYear(year int) SheetLayout {
	l := SheetLayout{
		DiseaseRow:   2,
		CategoryRow:  3,
		FirstDataRow: 4,
		FirstSheet:   1,
		LastSheet:    52,
		WeekOffset:   0,
	}
	switch {
	case year == 1999:
		l.LastSheet = 39
		l.WeekOffset = 13
	case fiftyThreeWeekYears[year]:
		l.LastSheet = 53
	}
	return l
}
