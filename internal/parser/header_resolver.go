package parser

import "github.com/AlFontal/jpinfect/internal/model"

// ColumnMapping binds one data column to its resolved disease and category.
type ColumnMapping struct {
	Column   int
	Disease  string
	Category string
}

// HeaderResolution is the outcome of resolving one sheet's header block.
type HeaderResolution struct {
	Columns  []ColumnMapping
	Warnings []model.Warning
	// Renames tracks raw disease names that normalization changed.
	Renames map[string]string
}

// ResolveHeader maps the two-row header block of a weekly sheet to columns.
// diseaseRow holds disease names, sparse because merged groups only populate
// their first column; the last non-empty name carries forward. categoryRow
// holds the per-column category (Total/Male/Female/...). Column 0 is the
// prefecture column and is never mapped.
//
// A sheet with no column resolving to the "total" category signals a layout
// change and yields a StructuralError.
func ResolveHeader(diseaseRow, categoryRow []string) (*HeaderResolution, error) {
	res := &HeaderResolution{}
	seen := make(map[[2]string]bool)
	disease := ""

	width := len(diseaseRow)
	if len(categoryRow) > width {
		width = len(categoryRow)
	}

	hasTotal := false
	for col := 1; col < width; col++ {
		var rawDisease, rawCategory string
		if col < len(diseaseRow) {
			rawDisease = diseaseRow[col]
		}
		if col < len(categoryRow) {
			rawCategory = categoryRow[col]
		}

		if d, fallback := CleanCell(rawDisease); d != "" {
			disease = NormalizeDisease(d)
			if disease != d {
				if res.Renames == nil {
					res.Renames = make(map[string]string)
				}
				res.Renames[d] = disease
			}
			if fallback && hasJapanese(d) {
				res.Warnings = append(res.Warnings, model.Warning{
					Kind:   model.WarnBilingualFallback,
					Detail: "disease name kept verbatim: " + d,
				})
			}
		}

		cat, _ := CleanCell(rawCategory)
		// Japanese-only category text is a note or modifier, not a category.
		if hasJapanese(cat) {
			cat = ""
		}
		if disease == "" && cat == "" {
			continue
		}
		if disease == "" {
			res.Warnings = append(res.Warnings, model.Warning{
				Kind:   model.WarnDroppedColumn,
				Detail: "column has a category but no disease in scope",
			})
			continue
		}
		if cat == "" {
			cat = model.CategoryTotal
		} else {
			cat = CanonicalCategory(cat)
		}

		key := [2]string{disease, cat}
		if seen[key] {
			// Duplicate headers appear when a year repeats a disease block.
			res.Warnings = append(res.Warnings, model.Warning{
				Kind:   model.WarnDroppedColumn,
				Detail: "duplicate column for " + disease + "/" + cat,
			})
			continue
		}
		seen[key] = true

		if cat == model.CategoryTotal {
			hasTotal = true
		}
		res.Columns = append(res.Columns, ColumnMapping{Column: col, Disease: disease, Category: cat})
	}

	if !hasTotal {
		return nil, &StructuralError{Reason: "no column resolved to the total category"}
	}
	return res, nil
}
