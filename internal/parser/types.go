package parser

import (
	"fmt"

	"github.com/AlFontal/jpinfect/internal/model"
)

// StructuralError reports a sheet or file whose layout mismatched
// expectations. The offending unit is skipped; the run continues.
type StructuralError struct {
	File   string
	Sheet  string
	Reason string
}

func (e *StructuralError) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("structural failure in %s sheet %q: %s", e.File, e.Sheet, e.Reason)
	}
	return fmt.Sprintf("structural failure in %s: %s", e.File, e.Reason)
}

// SheetSkip records one skipped sheet and why.
type SheetSkip struct {
	Sheet  string `json:"sheet"`
	Reason string `json:"reason"`
}

// FileReport summarizes parsing one workbook or CSV file.
type FileReport struct {
	File           string            `json:"file"`
	Kind           model.DatasetKind `json:"kind"`
	Rows           int               `json:"rows"`
	ParsedSheets   int               `json:"parsedSheets,omitempty"`
	SkippedSheets  []SheetSkip       `json:"skippedSheets,omitempty"`
	Warnings       []model.Warning   `json:"warnings,omitempty"`
	DiseaseRenames map[string]string `json:"diseaseRenames,omitempty"`
}

func (r *FileReport) warn(kind model.WarningKind, sheet, format string, args ...any) {
	r.Warnings = append(r.Warnings, model.Warning{
		Kind:   kind,
		File:   r.File,
		Sheet:  sheet,
		Detail: fmt.Sprintf(format, args...),
	})
}

func (r *FileReport) trackRename(raw, normalized string) {
	if raw == normalized {
		return
	}
	if r.DiseaseRenames == nil {
		r.DiseaseRenames = make(map[string]string)
	}
	r.DiseaseRenames[raw] = normalized
}
