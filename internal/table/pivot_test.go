package table

import (
	"strings"
	"testing"
)

func longFixture(t *testing.T) *Frame {
	t.Helper()
	f := New("prefecture", "week", "disease", "count")
	rows := [][]any{
		{"Hokkaido", 1, "Measles", 3.0},
		{"Hokkaido", 1, "Rubella", 1.0},
		{"Aomori", 1, "Measles", 0.0},
		{"Aomori", 1, "Rubella", 2.0},
		{"Hokkaido", 2, "Measles", 5.0},
		{"Hokkaido", 2, "Rubella", 0.0},
		{"Aomori", 2, "Measles", 1.0},
		{"Aomori", 2, "Rubella", 4.0},
	}
	for _, r := range rows {
		if err := f.Append(r...); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return f
}

func TestPivotWide(t *testing.T) {
	wide, err := PivotWide(longFixture(t), []string{"prefecture", "week"}, "disease", "count")
	if err != nil {
		t.Fatalf("PivotWide: %v", err)
	}
	if got := strings.Join(wide.Columns(), ","); got != "prefecture,week,Measles,Rubella" {
		t.Fatalf("columns = %s", got)
	}
	if wide.Len() != 4 {
		t.Fatalf("len = %d, want 4", wide.Len())
	}
	if v := wide.At(0, "Measles"); v != 3.0 {
		t.Errorf("Hokkaido week 1 Measles = %v, want 3", v)
	}
	if v := wide.At(3, "Rubella"); v != 4.0 {
		t.Errorf("Aomori week 2 Rubella = %v, want 4", v)
	}
}

func TestPivotWideMissingCombination(t *testing.T) {
	f := New("prefecture", "disease", "count")
	for _, r := range [][]any{
		{"Hokkaido", "Measles", 3.0},
		{"Aomori", "Rubella", 1.0},
	} {
		if err := f.Append(r...); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	wide, err := PivotWide(f, []string{"prefecture"}, "disease", "count")
	if err != nil {
		t.Fatalf("PivotWide: %v", err)
	}
	if v := wide.At(0, "Rubella"); v != nil {
		t.Errorf("absent combination = %v, want nil", v)
	}
}

func TestPivotWideDuplicateFails(t *testing.T) {
	f := New("prefecture", "disease", "count")
	for _, r := range [][]any{
		{"Hokkaido", "Measles", 3.0},
		{"Hokkaido", "Measles", 4.0},
	} {
		if err := f.Append(r...); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := PivotWide(f, []string{"prefecture"}, "disease", "count"); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestPivotRoundTrip(t *testing.T) {
	long := longFixture(t)
	keys := []string{"prefecture", "week"}

	wide, err := PivotWide(long, keys, "disease", "count")
	if err != nil {
		t.Fatalf("PivotWide: %v", err)
	}
	back, err := PivotLong(wide, keys, "disease", "count")
	if err != nil {
		t.Fatalf("PivotLong: %v", err)
	}

	type obs struct {
		prefecture string
		week       int
		disease    string
		count      float64
	}
	collect := func(f *Frame) map[obs]bool {
		set := make(map[obs]bool)
		for i := 0; i < f.Len(); i++ {
			set[obs{
				prefecture: f.At(i, "prefecture").(string),
				week:       f.At(i, "week").(int),
				disease:    f.At(i, "disease").(string),
				count:      f.At(i, "count").(float64),
			}] = true
		}
		return set
	}

	got, want := collect(back), collect(long)
	if len(got) != len(want) {
		t.Fatalf("round trip size %d, want %d", len(got), len(want))
	}
	for o := range want {
		if !got[o] {
			t.Errorf("round trip lost %+v", o)
		}
	}
}
