package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/hoteldash/internal/ingest"
)

// LoadRun is the audit row for one file processed by one load.
type LoadRun struct {
	ID           int64
	RunID        string
	StartedAt    time.Time
	FinishedAt   sql.NullTime
	Path         string
	ScrapeTime   string
	Records      int
	Flagged      int
	Success      bool
	ErrorMessage sql.NullString
}

// RecordLoadReport writes one audit row per file in the report.
func (s *Store) RecordLoadReport(report *ingest.LoadReport) error {
	if report == nil {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, f := range report.Files {
		var msg sql.NullString
		if f.Err != nil {
			msg = sql.NullString{String: f.Err.Error(), Valid: true}
		}
		if _, err := tx.Exec(`
			INSERT INTO load_runs (run_id, started_at, finished_at, path, scrape_time, records, flagged, success, error_message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, report.RunID, report.StartedAt, report.FinishedAt, f.Path, string(f.ScrapeTime),
			f.Rows, f.Flagged, f.OK(), msg); err != nil {
			return fmt.Errorf("insert load run %s: %w", f.Path, err)
		}
	}
	return tx.Commit()
}

// LoadHealthSummary aggregates load runs per day.
type LoadHealthSummary struct {
	Date         string `json:"date"`
	Runs         int    `json:"runs"`
	FilesOK      int    `json:"files_ok"`
	FilesFailed  int    `json:"files_failed"`
	TotalRecords int64  `json:"total_records"`
	TotalFlagged int64  `json:"total_flagged"`
}

// GetLoadHealth returns per-day load summaries for the last N days.
func (s *Store) GetLoadHealth(days int) ([]LoadHealthSummary, error) {
	rows, err := s.db.Query(`
		SELECT
			DATE(SUBSTR(started_at, 1, 19)) as date,
			COUNT(DISTINCT run_id) as runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as files_ok,
			SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) as files_failed,
			COALESCE(SUM(records), 0) as total_records,
			COALESCE(SUM(flagged), 0) as total_flagged
		FROM load_runs
		WHERE SUBSTR(started_at, 1, 19) > datetime('now', '-' || ? || ' days')
		GROUP BY date
		ORDER BY date DESC
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []LoadHealthSummary
	for rows.Next() {
		var h LoadHealthSummary
		if err := rows.Scan(&h.Date, &h.Runs, &h.FilesOK, &h.FilesFailed, &h.TotalRecords, &h.TotalFlagged); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

// GetRecentLoadFailures returns the most recent files that failed to load.
func (s *Store) GetRecentLoadFailures(limit int) ([]LoadRun, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, started_at, finished_at, path, scrape_time, records, flagged, success, error_message
		FROM load_runs
		WHERE success = FALSE
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []LoadRun
	for rows.Next() {
		var r LoadRun
		if err := rows.Scan(&r.ID, &r.RunID, &r.StartedAt, &r.FinishedAt, &r.Path, &r.ScrapeTime,
			&r.Records, &r.Flagged, &r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
