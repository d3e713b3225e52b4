package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/AlFontal/jpinfect/internal/model"
)

const dateLayout = "2006-01-02"

// ReplaceObservations replaces the whole unified table in one transaction.
// Import jobs rebuild the table from scratch rather than patching it.
func (s *Store) ReplaceObservations(rows []model.NormalizedRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM observations`); err != nil {
		return fmt.Errorf("clear observations: %w", err)
	}
	if err := insertObservations(tx, rows); err != nil {
		return err
	}
	return tx.Commit()
}

// BatchInsertObservations appends rows in one transaction.
func (s *Store) BatchInsertObservations(rows []model.NormalizedRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertObservations(tx, rows); err != nil {
		return err
	}
	return tx.Commit()
}

func insertObservations(tx *sql.Tx, rows []model.NormalizedRow) error {
	stmt, err := tx.Prepare(`
		INSERT INTO observations (
			prefecture, year, week, date, disease, category, count, per_sentinel, source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		var count, per any
		if r.Count != nil {
			count = *r.Count
		}
		if r.PerSentinel != nil {
			per = *r.PerSentinel
		}
		if _, err := stmt.Exec(
			r.Prefecture, r.Year, r.Week, r.Date.Format(dateLayout),
			r.Disease, r.Category, count, per, r.Source,
		); err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
	}
	return nil
}

// Filter narrows an observation query. Zero values mean "no constraint".
type Filter struct {
	Diseases    []string
	Prefectures []string
	Sources     []string
	YearFrom    int
	YearTo      int
	WeekFrom    int
	WeekTo      int
	Limit       int
}

// QueryObservations returns rows matching the filter, ordered by date,
// prefecture, disease.
func (s *Store) QueryObservations(f Filter) ([]model.NormalizedRow, error) {
	var (
		conds []string
		args  []any
	)
	addIn := func(col string, vals []string) {
		if len(vals) == 0 {
			return
		}
		conds = append(conds, fmt.Sprintf("%s IN (%s)", col, placeholders(len(vals))))
		for _, v := range vals {
			args = append(args, v)
		}
	}
	// Disease names match on case-insensitive substring so "influenza"
	// finds "Influenza (excld. avian influenza)". Prefectures are exact.
	if len(f.Diseases) > 0 {
		likes := make([]string, len(f.Diseases))
		for i, d := range f.Diseases {
			likes[i] = "instr(lower(disease), ?) > 0"
			args = append(args, strings.ToLower(d))
		}
		conds = append(conds, "("+strings.Join(likes, " OR ")+")")
	}
	addIn("prefecture", f.Prefectures)
	addIn("source", f.Sources)
	if f.YearFrom > 0 {
		conds = append(conds, "year >= ?")
		args = append(args, f.YearFrom)
	}
	if f.YearTo > 0 {
		conds = append(conds, "year <= ?")
		args = append(args, f.YearTo)
	}
	if f.WeekFrom > 0 {
		conds = append(conds, "week >= ?")
		args = append(args, f.WeekFrom)
	}
	if f.WeekTo > 0 {
		conds = append(conds, "week <= ?")
		args = append(args, f.WeekTo)
	}

	query := `SELECT prefecture, year, week, date, disease, category, count, per_sentinel, source FROM observations`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date, prefecture, disease"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []model.NormalizedRow
	for rows.Next() {
		var (
			r     model.NormalizedRow
			date  string
			count sql.NullFloat64
			per   sql.NullFloat64
		)
		if err := rows.Scan(&r.Prefecture, &r.Year, &r.Week, &date,
			&r.Disease, &r.Category, &count, &per, &r.Source); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		if r.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		if count.Valid {
			r.Count = model.Count64(count.Float64)
		}
		if per.Valid {
			r.PerSentinel = model.Count64(per.Float64)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Diseases lists distinct disease names in the table.
func (s *Store) Diseases() ([]string, error) {
	return s.distinct("disease")
}

// Prefectures lists distinct prefecture names in the table.
func (s *Store) Prefectures() ([]string, error) {
	return s.distinct("prefecture")
}

func (s *Store) distinct(col string) ([]string, error) {
	rows, err := s.db.Query(fmt.Sprintf(`SELECT DISTINCT %s FROM observations ORDER BY %s`, col, col))
	if err != nil {
		return nil, fmt.Errorf("query distinct %s: %w", col, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// LatestWeek returns the most recent (year, week) present in the table.
func (s *Store) LatestWeek() (year, week int, err error) {
	row := s.db.QueryRow(`SELECT year, week FROM observations ORDER BY year DESC, week DESC LIMIT 1`)
	if err := row.Scan(&year, &week); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("query latest week: %w", err)
	}
	return year, week, nil
}
