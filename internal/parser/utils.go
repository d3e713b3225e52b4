package parser

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

var (
	parenSegmentRe = regexp.MustCompile(`[（(]([^)）]+)[)）]`)
	yearRe         = regexp.MustCompile(`(19|20)\d{2}`)
	weekRe         = regexp.MustCompile(`-(\d{2})|zensu(\d{2})|teiten(?:rui)?(\d{2})`)
	spacesRe       = regexp.MustCompile(`\s+`)
)

// CleanCell cleans raw cell text: strips the null bytes embedded in the
// 1999-2000 files, folds whitespace, and extracts the English segment from
// bilingual cells like "麻しん (Measles)". When no parenthesized segment
// exists the cleaned raw text is returned and fallback is true.
func CleanCell(text string) (clean string, fallback bool) {
	clean = strings.ReplaceAll(text, "\x00", "")
	clean = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(clean)

	// The English translation is the last parenthesized segment; earlier
	// segments can be Japanese qualifiers.
	matches := parenSegmentRe.FindAllStringSubmatch(clean, -1)
	if len(matches) > 0 {
		english := strings.TrimSpace(matches[len(matches)-1][1])
		return normalizeFullwidth(english), false
	}

	clean = strings.TrimSpace(normalizeFullwidth(clean))
	return clean, clean != ""
}

// normalizeFullwidth folds runes to their canonical width: full-width ASCII
// (ＦＵＬＬ, （）, ４２) and the ideographic space become half-width, halfwidth
// katakana becomes full-width. Kanji are untouched.
func normalizeFullwidth(text string) string {
	return width.Fold.String(text)
}

// hasJapanese reports whether text contains hiragana, katakana or kanji.
func hasJapanese(text string) bool {
	for _, r := range text {
		if (r >= 0x3040 && r <= 0x309F) || (r >= 0x30A0 && r <= 0x30FF) || (r >= 0x4E00 && r <= 0x9FFF) {
			return true
		}
	}
	return false
}

// CanonicalCategory collapses a cleaned category header onto the canonical
// set. Unrecognized non-empty text is returned lowercased as-is.
func CanonicalCategory(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	// "female" must precede "male": substring matching would otherwise
	// classify female columns as male. "other" also covers the place
	// dataset's "Other countries".
	for _, m := range []struct{ substr, canon string }{
		{"total", "total"},
		{"female", "female"},
		{"male", "male"},
		{"japan", "japan"},
		{"other", "others"},
		{"unknown", "unknown"},
	} {
		if strings.Contains(lower, m.substr) {
			return m.canon
		}
	}
	return lower
}

// parseCount converts a numeric cell to a nullable count. Blank cells,
// dashes and non-numeric text become nil, never zero.
func parseCount(text string) *float64 {
	s := strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	if s == "" || s == "-" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// collapseSpaces trims and folds runs of whitespace to single spaces.
func collapseSpaces(text string) string {
	return strings.TrimSpace(spacesRe.ReplaceAllString(text, " "))
}

// inferYear extracts a four-digit year from a filename.
func inferYear(name string) (int, bool) {
	m := yearRe.FindString(name)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}

// extractYearWeek extracts year and week from a weekly CSV filename such as
// "2024-05-zensu.csv", "zensu05.csv" or "teitenrui04.csv". Missing parts are
// reported as zero.
func extractYearWeek(name string) (year, week int) {
	year, _ = inferYear(name)
	if m := weekRe.FindStringSubmatch(name); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				week, _ = strconv.Atoi(g)
				break
			}
		}
	}
	return year, week
}
