package table

import (
	"testing"

	"github.com/AlFontal/jpinfect/internal/model"
)

func cumulativeSeries(counts []float64) []model.NormalizedRow {
	rows := make([]model.NormalizedRow, len(counts))
	for i, c := range counts {
		rows[i] = model.NormalizedRow{
			Prefecture: "Hokkaido",
			Year:       2024,
			Week:       i + 1,
			Disease:    "Cholera",
			Category:   model.CategoryTotal,
			Count:      model.Count64(c),
			Source:     model.SourceConfirmed,
		}
	}
	return rows
}

func counts(rows []model.NormalizedRow) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		if r.Count != nil {
			out[i] = *r.Count
		}
	}
	return out
}

func TestToIncremental(t *testing.T) {
	rows, warnings := ToIncremental(cumulativeSeries([]float64{5, 5, 12, 12, 20}), DeltaSigned)
	want := []float64{5, 0, 7, 0, 8}
	got := counts(rows)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("counts = %v, want %v", got, want)
		}
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %+v", warnings)
	}
}

func TestToIncrementalNegativeDelta(t *testing.T) {
	series := []float64{10, 8, 15}

	signed, warnings := ToIncremental(cumulativeSeries(series), DeltaSigned)
	if got := counts(signed); got[1] != -2 || got[2] != 7 {
		t.Errorf("signed counts = %v, want [10 -2 7]", got)
	}
	if len(warnings) != 1 || warnings[0].Kind != model.WarnNegativeDelta {
		t.Errorf("warnings = %+v, want one negative_delta", warnings)
	}

	clamped, warnings := ToIncremental(cumulativeSeries(series), DeltaClamp)
	if got := counts(clamped); got[1] != 0 || got[2] != 7 {
		t.Errorf("clamped counts = %v, want [10 0 7]", got)
	}
	if len(warnings) != 1 {
		t.Errorf("clamp must still warn: %+v", warnings)
	}
}

func TestToIncrementalNilGaps(t *testing.T) {
	rows := cumulativeSeries([]float64{5, 0, 9})
	rows[1].Count = nil

	out, _ := ToIncremental(rows, DeltaSigned)
	if out[0].Count == nil || *out[0].Count != 5 {
		t.Errorf("first = %v, want 5", out[0].Count)
	}
	if out[1].Count != nil {
		t.Errorf("gap must stay nil, got %v", *out[1].Count)
	}
	// The gap does not advance the series: week 3 diffs against week 1.
	if out[2].Count == nil || *out[2].Count != 4 {
		t.Errorf("third = %v, want 4", out[2].Count)
	}
}

func TestToIncrementalSeriesIsolation(t *testing.T) {
	a := cumulativeSeries([]float64{5, 9})
	b := cumulativeSeries([]float64{100, 130})
	for i := range b {
		b[i].Prefecture = "Aomori"
	}

	out, _ := ToIncremental(append(a, b...), DeltaSigned)
	// Output is sorted by series: Aomori first.
	if *out[0].Count != 100 || *out[1].Count != 30 {
		t.Errorf("Aomori series = [%v %v], want [100 30]", *out[0].Count, *out[1].Count)
	}
	if *out[2].Count != 5 || *out[3].Count != 4 {
		t.Errorf("Hokkaido series = [%v %v], want [5 4]", *out[2].Count, *out[3].Count)
	}
}

func TestParseDeltaPolicy(t *testing.T) {
	if p, err := ParseDeltaPolicy(""); err != nil || p != DeltaSigned {
		t.Errorf("empty policy = %v, %v", p, err)
	}
	if p, err := ParseDeltaPolicy("clamp"); err != nil || p != DeltaClamp {
		t.Errorf("clamp = %v, %v", p, err)
	}
	if _, err := ParseDeltaPolicy("bogus"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
