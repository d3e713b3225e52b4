package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DatasetKind identifies one of the surveillance data channels.
type DatasetKind string

const (
	// KindSex is the historical sex-disaggregated workbook (1999-2023).
	KindSex DatasetKind = "sex"
	// KindPlace is the historical place-of-infection workbook (2001-2023).
	KindPlace DatasetKind = "place"
	// KindBullet is the modern all-case weekly CSV bulletin (2024+).
	KindBullet DatasetKind = "bullet"
	// KindSentinel is the modern sentinel surveillance weekly CSV (2024+).
	KindSentinel DatasetKind = "sentinel"
)

// FileKind is the download format hint attached to a resolved URL.
type FileKind string

const (
	FileXLS  FileKind = "xls"
	FileXLSX FileKind = "xlsx"
	FileCSV  FileKind = "csv"
)

// ErrCannotInferKind is returned when a filename matches none of the known
// dataset naming patterns.
var ErrCannotInferKind = fmt.Errorf("cannot infer dataset kind from filename")

// InferKind determines the dataset kind from a filename. Historical workbooks
// carry the Syu_01/Syu_02 sheet prefixes, sentinel CSVs contain "teiten", and
// any other .csv is an all-case bulletin. Unmatched names are rejected rather
// than guessed.
func InferKind(name string) (DatasetKind, error) {
	base := filepath.Base(name)
	lower := strings.ToLower(base)
	switch {
	case strings.Contains(base, "Syu_01") || strings.Contains(lower, "sex"):
		return KindSex, nil
	case strings.Contains(base, "Syu_02") || strings.Contains(lower, "place"):
		return KindPlace, nil
	case strings.Contains(lower, "teiten"):
		return KindSentinel, nil
	case strings.HasSuffix(lower, ".csv"):
		return KindBullet, nil
	}
	return "", fmt.Errorf("%w: %q", ErrCannotInferKind, base)
}
