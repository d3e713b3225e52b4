package table

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestMergeUnionColumns(t *testing.T) {
	a := New("prefecture", "measles")
	if err := a.Append("Hokkaido", 3.0); err != nil {
		t.Fatalf("append: %v", err)
	}
	b := New("prefecture", "rubella")
	if err := b.Append("Aomori", 1.0); err != nil {
		t.Fatalf("append: %v", err)
	}

	m := Merge(a, b)
	wantCols := []string{"prefecture", "measles", "rubella"}
	if got := m.Columns(); len(got) != len(wantCols) {
		t.Fatalf("columns = %v, want %v", got, wantCols)
	} else {
		for i := range wantCols {
			if got[i] != wantCols[i] {
				t.Fatalf("columns = %v, want %v", got, wantCols)
			}
		}
	}
	if m.Len() != 2 {
		t.Fatalf("len = %d, want 2", m.Len())
	}
	if v := m.At(0, "rubella"); v != nil {
		t.Errorf("missing column not nil-filled: %v", v)
	}
	if v := m.At(1, "measles"); v != nil {
		t.Errorf("missing column not nil-filled: %v", v)
	}
	if v := m.At(1, "rubella"); v != 1.0 {
		t.Errorf("rubella = %v, want 1", v)
	}
}

func TestAppendArityMismatch(t *testing.T) {
	f := New("a", "b")
	if err := f.Append(1); err == nil {
		t.Fatal("expected error for short row")
	}
}

func TestWriteCSV(t *testing.T) {
	f := New("prefecture", "date", "count")
	if err := f.Append("Hokkaido", time.Date(2005, 1, 3, 0, 0, 0, 0, time.UTC), 3.0); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := f.Append("Aomori", time.Date(2005, 1, 3, 0, 0, 0, 0, time.UTC), nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, f); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := strings.Join([]string{
		"prefecture,date,count",
		"Hokkaido,2005-01-03,3",
		"Aomori,2005-01-03,",
	}, "\n") + "\n"
	if buf.String() != want {
		t.Errorf("csv output:\n%s\nwant:\n%s", buf.String(), want)
	}
}
