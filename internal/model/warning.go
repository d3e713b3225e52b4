package model

// WarningKind classifies non-fatal data quality anomalies.
type WarningKind string

const (
	// WarnBilingualFallback means no parenthesized English segment was found
	// and the raw cleaned text was kept verbatim.
	WarnBilingualFallback WarningKind = "bilingual_fallback"
	// WarnDroppedColumn means a header column could not be mapped.
	WarnDroppedColumn WarningKind = "dropped_column"
	// WarnNegativeDelta means a cumulative series decreased between
	// consecutive weeks, usually a data revision.
	WarnNegativeDelta WarningKind = "negative_delta"
)

// Warning records a data quality anomaly that did not stop processing.
type Warning struct {
	Kind   WarningKind `json:"kind"`
	File   string      `json:"file,omitempty"`
	Sheet  string      `json:"sheet,omitempty"`
	Detail string      `json:"detail"`
}
