package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// WriteCSV writes the frame as CSV with a header row. Nil cells become
// empty fields; dates use the ISO date form.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.cols); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(f.cols))
	for i := 0; i < f.Len(); i++ {
		for j, v := range f.Row(i) {
			record[j] = formatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case int:
		return strconv.Itoa(c)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case time.Time:
		return c.Format("2006-01-02")
	}
	return fmt.Sprint(v)
}
