package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ImportJob is one recorded import run.
type ImportJob struct {
	ID          int64      `json:"id"`
	JobID       string     `json:"jobId"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Files       int        `json:"files"`
	Rows        int        `json:"rows"`
	Skipped     int        `json:"skipped"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
}

// CreateImportJob records a started job and returns its row id.
func (s *Store) CreateImportJob(jobID string) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO import_jobs (job_id, status) VALUES (?, 'processing')
	`, jobID)
	if err != nil {
		return 0, fmt.Errorf("create import job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("import job id: %w", err)
	}
	return id, nil
}

// FinishImportJob records the outcome of a job.
func (s *Store) FinishImportJob(id int64, files, rows, skipped int, status, errorMessage string) error {
	_, err := s.db.Exec(`
		UPDATE import_jobs SET
			files = ?, rows = ?, skipped = ?,
			status = ?, error_message = ?,
			completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, files, rows, skipped, status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("finish import job: %w", err)
	}
	return nil
}

// LastImportJob returns the most recent job, or nil when none exist.
func (s *Store) LastImportJob() (*ImportJob, error) {
	row := s.db.QueryRow(`
		SELECT id, job_id, started_at, completed_at, files, rows, skipped, status, COALESCE(error_message, '')
		FROM import_jobs ORDER BY id DESC LIMIT 1
	`)
	var (
		j         ImportJob
		completed sql.NullTime
	)
	if err := row.Scan(&j.ID, &j.JobID, &j.StartedAt, &completed, &j.Files, &j.Rows, &j.Skipped, &j.Status, &j.Error); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query last import job: %w", err)
	}
	if completed.Valid {
		j.CompletedAt = &completed.Time
	}
	return &j, nil
}
