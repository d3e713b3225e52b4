package parser

import (
	"errors"
	"testing"

	"github.com/AlFontal/jpinfect/internal/model"
)

func TestResolveHeaderCarryForward(t *testing.T) {
	diseaseRow := []string{"", "麻しん (Measles)", "", "", "風しん (Rubella)", ""}
	categoryRow := []string{"", "総数 (Total)", "男 (Male)", "女 (Female)", "総数 (Total)", "男 (Male)"}

	res, err := ResolveHeader(diseaseRow, categoryRow)
	if err != nil {
		t.Fatalf("ResolveHeader: %v", err)
	}

	want := []ColumnMapping{
		{Column: 1, Disease: "Measles", Category: model.CategoryTotal},
		{Column: 2, Disease: "Measles", Category: model.CategoryMale},
		{Column: 3, Disease: "Measles", Category: model.CategoryFemale},
		{Column: 4, Disease: "Rubella", Category: model.CategoryTotal},
		{Column: 5, Disease: "Rubella", Category: model.CategoryMale},
	}
	if len(res.Columns) != len(want) {
		t.Fatalf("got %d columns, want %d: %+v", len(res.Columns), len(want), res.Columns)
	}
	for i, w := range want {
		if res.Columns[i] != w {
			t.Errorf("column %d: got %+v, want %+v", i, res.Columns[i], w)
		}
	}
}

func TestResolveHeaderEmptyCategoryDefaultsToTotal(t *testing.T) {
	res, err := ResolveHeader(
		[]string{"", "つつが虫病 (Tsutsugamushi disease)"},
		[]string{"", ""},
	)
	if err != nil {
		t.Fatalf("ResolveHeader: %v", err)
	}
	if len(res.Columns) != 1 {
		t.Fatalf("got %d columns, want 1", len(res.Columns))
	}
	if res.Columns[0].Category != model.CategoryTotal {
		t.Errorf("category = %q, want total", res.Columns[0].Category)
	}
	if res.Columns[0].Disease != "Scrub typhus" {
		t.Errorf("disease = %q, want Scrub typhus", res.Columns[0].Disease)
	}
	if res.Renames["Tsutsugamushi disease"] != "Scrub typhus" {
		t.Errorf("rename not tracked: %v", res.Renames)
	}
}

func TestResolveHeaderNoTotalColumn(t *testing.T) {
	_, err := ResolveHeader(
		[]string{"", "麻しん (Measles)"},
		[]string{"", "男 (Male)"},
	)
	if err == nil {
		t.Fatal("expected StructuralError, got nil")
	}
	var serr *StructuralError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StructuralError, got %T: %v", err, err)
	}
}

func TestResolveHeaderDuplicateColumnDropped(t *testing.T) {
	res, err := ResolveHeader(
		[]string{"", "麻しん (Measles)", ""},
		[]string{"", "総数 (Total)", "総数 (Total)"},
	)
	if err != nil {
		t.Fatalf("ResolveHeader: %v", err)
	}
	if len(res.Columns) != 1 {
		t.Fatalf("got %d columns, want 1", len(res.Columns))
	}
	if len(res.Warnings) == 0 || res.Warnings[0].Kind != model.WarnDroppedColumn {
		t.Errorf("expected dropped_column warning, got %+v", res.Warnings)
	}
}

func TestResolveHeaderBilingualFallback(t *testing.T) {
	res, err := ResolveHeader(
		[]string{"", "つつが虫病", ""},
		[]string{"", "総数 (Total)", "男 (Male)"},
	)
	if err != nil {
		t.Fatalf("ResolveHeader: %v", err)
	}
	found := false
	for _, w := range res.Warnings {
		if w.Kind == model.WarnBilingualFallback {
			found = true
		}
	}
	if !found {
		t.Errorf("expected bilingual_fallback warning, got %+v", res.Warnings)
	}
}
