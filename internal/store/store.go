package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for indexed files, their top-level
// units and the dependency edges between them.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  language        TEXT NOT NULL,
  hash            TEXT,
  unit_count      INTEGER DEFAULT 0,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS units (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  ordinal         INTEGER NOT NULL,
  kind            TEXT NOT NULL,
  text            TEXT NOT NULL,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER,
  UNIQUE(file_id, ordinal)
);

CREATE TABLE IF NOT EXISTS identifiers (
  id              INTEGER PRIMARY KEY,
  unit_id         INTEGER NOT NULL REFERENCES units(id) ON DELETE CASCADE,
  name            TEXT NOT NULL,
  outer_only      BOOLEAN DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS dependencies (
  id              INTEGER PRIMARY KEY,
  unit_id         INTEGER NOT NULL REFERENCES units(id) ON DELETE CASCADE,
  target_unit_id  INTEGER NOT NULL REFERENCES units(id) ON DELETE CASCADE,
  ordinal         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
  id              TEXT PRIMARY KEY,
  root            TEXT,
  started_at      TIMESTAMP NOT NULL,
  finished_at     TIMESTAMP,
  file_count      INTEGER DEFAULT 0,
  error_count     INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_language ON files(language);
CREATE INDEX IF NOT EXISTS idx_units_file ON units(file_id);
CREATE INDEX IF NOT EXISTS idx_identifiers_unit ON identifiers(unit_id);
CREATE INDEX IF NOT EXISTS idx_identifiers_name ON identifiers(name);
CREATE INDEX IF NOT EXISTS idx_dependencies_unit ON dependencies(unit_id);
CREATE INDEX IF NOT EXISTS idx_dependencies_target ON dependencies(target_unit_id);
`

// DeleteFileData transactionally removes the units, identifiers and
// dependency edges of a file. The file row itself is kept.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFileData(tx, fileID); err != nil {
		return err
	}
	return tx.Commit()
}

// deleteFileData deletes in reverse-dependency order to respect FK constraints.
func deleteFileData(tx *sql.Tx, fileID int64) error {
	unitIDs, err := queryIDs(tx, "SELECT id FROM units WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("query units: %w", err)
	}

	if len(unitIDs) > 0 {
		placeholders := placeholderList(len(unitIDs))
		args := int64sToArgs(unitIDs)
		for _, q := range []string{
			"DELETE FROM dependencies WHERE unit_id IN (" + placeholders + ") OR target_unit_id IN (" + placeholders + ")",
			"DELETE FROM identifiers WHERE unit_id IN (" + placeholders + ")",
		} {
			expandedArgs := args
			if count := countSubstring(q, "("+placeholders+")"); count > 1 {
				expandedArgs = repeatArgs(args, count)
			}
			if _, err := tx.Exec(q, expandedArgs...); err != nil {
				return fmt.Errorf("delete unit data: %w", err)
			}
		}
	}

	if _, err := tx.Exec("DELETE FROM units WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("delete units: %w", err)
	}
	return nil
}

// DeleteFile removes a file and all of its data.
func (s *Store) DeleteFile(fileID int64) error {
	if err := s.DeleteFileData(fileID); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM files WHERE id = ?", fileID); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	return nil
}

// GetMetadata returns the value stored under key, or "" when absent.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata upserts a key/value pair.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}
