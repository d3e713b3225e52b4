package urlrule

import (
	"fmt"

	"github.com/AlFontal/jpinfect/internal/model"
)

// Base URLs for the archive repositories. The surveillance system moved hosts
// twice: the CD-ROM era archive, the ydata image archive, and the current
// id-info portal with a separate /rapid/ path for weekly bulletins.
const (
	baseKako   = "https://idsc.niid.go.jp/idwr/CDROM/Kako/"
	baseYdata  = "https://id-info.jihs.go.jp/niid/images/idwr/ydata/"
	baseAnnual = "https://id-info.jihs.go.jp/surveillance/idwr/annual/"
	baseRapid  = "https://id-info.jihs.go.jp/en/surveillance/idwr/rapid/"
)

// heiseiOffset converts a calendar year to the Heisei era year used in the
// CD-ROM era path segments (1999 -> H11).
const heiseiOffset = 1988

// Epoch is one contiguous year range sharing a URL rule. Pattern is an
// fmt template substituted with the (possibly era-transformed) year.
type Epoch struct {
	Start    int
	End      int
	Base     string
	Pattern  string
	Era      bool // substitute Heisei era year instead of calendar year
	FileKind model.FileKind
}

func (e Epoch) contains(year int) bool { return year >= e.Start && year <= e.End }

func (e Epoch) render(year int) string {
	y := year
	if e.Era {
		y = year - heiseiOffset
	}
	return e.Base + fmt.Sprintf(e.Pattern, y)
}

// NoRuleError reports a (kind, year) pair outside every configured epoch.
// It is a configuration error: a new epoch must be added for the year.
type NoRuleError struct {
	Kind model.DatasetKind
	Year int
}

func (e *NoRuleError) Error() string {
	return fmt.Sprintf("no URL rule for kind %q year %d", e.Kind, e.Year)
}

// Engine resolves a (dataset kind, year, week) request to the canonical
// download URL. The rule tables are fixed at construction and scanned in
// ascending year order; epochs for a kind never overlap.
type Engine struct {
	epochs map[model.DatasetKind][]Epoch
}

// NewEngine builds an engine with the default archive epochs.
func NewEngine() *Engine {
	return &Engine{epochs: map[model.DatasetKind][]Epoch{
		model.KindSex: {
			{Start: 1999, End: 2000, Base: baseKako, Pattern: "H%02d/Syuukei/Syu_11.xls", Era: true, FileKind: model.FileXLS},
			{Start: 2001, End: 2010, Base: baseKako, Pattern: "H%02d/Syuukei/Syu_01_1.xls", Era: true, FileKind: model.FileXLS},
			{Start: 2011, End: 2013, Base: baseYdata, Pattern: "%d/Syuukei/Syu_01_1.xls", FileKind: model.FileXLS},
			{Start: 2014, End: 2020, Base: baseYdata, Pattern: "%d/Syuukei/Syu_01_1.xlsx", FileKind: model.FileXLSX},
			// The yearly workbooks stop with the 2023 reporting year; the
			// weekly rapid CSVs carry the archive from 2024 on.
			{Start: 2021, End: 2023, Base: baseAnnual, Pattern: "%d/syulist/Syu_01_1.xlsx", FileKind: model.FileXLSX},
		},
		model.KindPlace: {
			{Start: 2001, End: 2010, Base: baseKako, Pattern: "H%02d/Syuukei/Syu_02_1.xls", Era: true, FileKind: model.FileXLS},
			{Start: 2011, End: 2013, Base: baseYdata, Pattern: "%d/Syuukei/Syu_02_1.xls", FileKind: model.FileXLS},
			{Start: 2014, End: 2020, Base: baseYdata, Pattern: "%d/Syuukei/Syu_02_1.xlsx", FileKind: model.FileXLSX},
			{Start: 2021, End: 2023, Base: baseAnnual, Pattern: "%d/syulist/Syu_02_1.xlsx", FileKind: model.FileXLSX},
		},
	}}
}

// Resolve returns the canonical URL and file kind for a yearly workbook.
// Bullet and sentinel kinds are weekly files; use ResolveWeekly.
func (g *Engine) Resolve(kind model.DatasetKind, year int) (string, model.FileKind, error) {
	if kind == model.KindBullet || kind == model.KindSentinel {
		return "", "", fmt.Errorf("kind %q requires a week; use ResolveWeekly", kind)
	}
	epochs, ok := g.epochs[kind]
	if !ok {
		return "", "", &NoRuleError{Kind: kind, Year: year}
	}
	for _, e := range epochs {
		if e.contains(year) {
			return e.render(year), e.FileKind, nil
		}
	}
	return "", "", &NoRuleError{Kind: kind, Year: year}
}

// ResolveWeekly returns the URL for one week of a modern CSV dataset.
// Weekly files only exist from 2024 onwards.
func (g *Engine) ResolveWeekly(kind model.DatasetKind, year, week int) (string, model.FileKind, error) {
	var stem string
	switch kind {
	case model.KindBullet:
		stem = "zensu"
	case model.KindSentinel:
		stem = "teitenrui"
	default:
		return "", "", fmt.Errorf("kind %q is a yearly workbook; use Resolve", kind)
	}
	if year <= 2023 {
		return "", "", &NoRuleError{Kind: kind, Year: year}
	}
	if week < 1 || week > 53 {
		return "", "", fmt.Errorf("week %d out of range [1, 53]", week)
	}
	url := fmt.Sprintf("%s%d/%02d/%s%02d.csv", baseRapid, year, week, stem, week)
	return url, model.FileCSV, nil
}

// SupportedRange reports the inclusive year range covered by a kind's epochs.
func (g *Engine) SupportedRange(kind model.DatasetKind) (int, int, bool) {
	switch kind {
	case model.KindBullet, model.KindSentinel:
		return 2024, 9999, true
	}
	epochs, ok := g.epochs[kind]
	if !ok || len(epochs) == 0 {
		return 0, 0, false
	}
	return epochs[0].Start, epochs[len(epochs)-1].End, true
}

// Validate checks that each kind's epochs partition its year range with no
// gaps or overlaps. Called from tests; rule tables are static.
func (g *Engine) Validate() error {
	for kind, epochs := range g.epochs {
		for i, e := range epochs {
			if e.Start > e.End {
				return fmt.Errorf("kind %q epoch %d: start %d after end %d", kind, i, e.Start, e.End)
			}
			if i == 0 {
				continue
			}
			prev := epochs[i-1]
			if e.Start != prev.End+1 {
				return fmt.Errorf("kind %q: epoch %d starts at %d, previous ends at %d", kind, i, e.Start, prev.End)
			}
		}
	}
	return nil
}
