package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lox/hoteldash/internal/ingest"
	"github.com/lox/hoteldash/internal/models"
)

// DefaultSnapshotRetention is how many snapshots SaveSnapshot keeps.
const DefaultSnapshotRetention = 5

type Store struct {
	db        *sql.DB
	retention int
}

func New(db *sql.DB) *Store {
	return &Store{db: db, retention: DefaultSnapshotRetention}
}

// SaveSnapshot persists a base table under its file set key. Saving a key
// that already exists is a no-op. Records are stored in their raw textual
// form and re-normalized on load.
func (s *Store) SaveSnapshot(t *models.BaseTable) error {
	files, err := json.Marshal(t.Files)
	if err != nil {
		return fmt.Errorf("marshal files: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO snapshots (file_set_key, files, record_count, loaded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_set_key) DO NOTHING
	`, t.Key, string(files), len(t.Records), t.LoadedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO snapshot_records (snapshot_id, seq, hotel_name, nights, persons, price, review_score, distance, price_date, scrape_time, source_file)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare records: %w", err)
	}
	defer stmt.Close()

	for i, rec := range t.Records {
		raw := ingest.Denormalize(rec)
		if _, err := stmt.Exec(id, i, raw.Name, raw.Nights, raw.Persons, raw.Price, raw.ReviewScore,
			raw.Distance, raw.PriceDate, string(raw.ScrapeTime), raw.SourceFile); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := pruneSnapshots(tx, s.retention); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadSnapshot returns the persisted base table for key, or nil if none exists.
func (s *Store) LoadSnapshot(key string) (*models.BaseTable, error) {
	var (
		id    int64
		files string
		t     = &models.BaseTable{Key: key}
	)
	err := s.db.QueryRow(`
		SELECT id, files, loaded_at FROM snapshots WHERE file_set_key = ?
	`, key).Scan(&id, &files, &t.LoadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(files), &t.Files); err != nil {
		return nil, fmt.Errorf("unmarshal files: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT hotel_name, nights, persons, price, review_score, distance, price_date, scrape_time, source_file
		FROM snapshot_records
		WHERE snapshot_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var raw models.RawRecord
		var st string
		if err := rows.Scan(&raw.Name, &raw.Nights, &raw.Persons, &raw.Price, &raw.ReviewScore,
			&raw.Distance, &raw.PriceDate, &st, &raw.SourceFile); err != nil {
			return nil, err
		}
		raw.ScrapeTime = models.ScrapeTime(st)
		t.Records = append(t.Records, ingest.Normalize(raw))
	}
	return t, rows.Err()
}

// SnapshotCount returns the number of persisted snapshots.
func (s *Store) SnapshotCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&n)
	return n, err
}

func pruneSnapshots(tx *sql.Tx, keep int) error {
	if keep <= 0 {
		return nil
	}
	if _, err := tx.Exec(`
		DELETE FROM snapshot_records WHERE snapshot_id IN (
			SELECT id FROM snapshots ORDER BY id DESC LIMIT -1 OFFSET ?
		)
	`, keep); err != nil {
		return fmt.Errorf("prune snapshot records: %w", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM snapshots WHERE id IN (
			SELECT id FROM snapshots ORDER BY id DESC LIMIT -1 OFFSET ?
		)
	`, keep); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}
