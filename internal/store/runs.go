package store

import (
	"database/sql"
	"fmt"
	"time"
)

// InsertRun records the start of an indexing pass.
func (s *Store) InsertRun(r *Run) error {
	_, err := s.db.Exec(
		"INSERT INTO runs (id, root, started_at) VALUES (?, ?, ?)",
		r.ID, r.Root, r.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stamps a run with its end time and counters.
func (s *Store) FinishRun(id string, finishedAt time.Time, fileCount, errorCount int) error {
	res, err := s.db.Exec(
		"UPDATE runs SET finished_at = ?, file_count = ?, error_count = ? WHERE id = ?",
		finishedAt, fileCount, errorCount, id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run %s", id)
	}
	return nil
}

// LatestRun returns the most recently started run, or nil when none exist.
func (s *Store) LatestRun() (*Run, error) {
	r := &Run{}
	var finished sql.NullTime
	err := s.db.QueryRow(
		"SELECT id, root, started_at, finished_at, file_count, error_count FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1",
	).Scan(&r.ID, &r.Root, &r.StartedAt, &finished, &r.FileCount, &r.ErrorCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return r, nil
}
