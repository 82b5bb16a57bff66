package store

import (
	"database/sql"
	"fmt"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func lastInsertID(res sql.Result, err error, what string) (int64, error) {
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", what, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// --- File operations ---

func insertFile(x execer, f *File) (int64, error) {
	res, err := x.Exec(
		"INSERT INTO files (path, language, hash, unit_count, last_indexed) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.Language, f.Hash, f.UnitCount, f.LastIndexed,
	)
	id, err := lastInsertID(res, err, "file")
	if err != nil {
		return 0, err
	}
	f.ID = id
	return id, nil
}

func (s *Store) InsertFile(f *File) (int64, error) {
	return insertFile(s.db, f)
}

// UpdateFile rewrites the hash, unit count and timestamp of an existing file.
func (s *Store) UpdateFile(f *File) error {
	return updateFile(s.db, f)
}

func updateFile(x execer, f *File) error {
	_, err := x.Exec(
		"UPDATE files SET language = ?, hash = ?, unit_count = ?, last_indexed = ? WHERE id = ?",
		f.Language, f.Hash, f.UnitCount, f.LastIndexed, f.ID,
	)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

const fileCols = "id, path, language, hash, unit_count, last_indexed"

func scanFiles(rows *sql.Rows) ([]*File, error) {
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &f.UnitCount, &f.LastIndexed); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// FileByPath returns nil, nil when the path has not been indexed.
func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT "+fileCols+" FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &f.UnitCount, &f.LastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileCols + " FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	return scanFiles(rows)
}

func (s *Store) FilesByLanguage(language string) ([]*File, error) {
	rows, err := s.db.Query("SELECT "+fileCols+" FROM files WHERE language = ? ORDER BY path", language)
	if err != nil {
		return nil, fmt.Errorf("files by language: %w", err)
	}
	return scanFiles(rows)
}

// --- Unit operations ---

func insertUnit(x execer, u *Unit) (int64, error) {
	res, err := x.Exec(
		`INSERT INTO units (file_id, ordinal, kind, text, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.FileID, u.Ordinal, u.Kind, u.Text, u.StartLine, u.StartCol, u.EndLine, u.EndCol,
	)
	id, err := lastInsertID(res, err, "unit")
	if err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

func (s *Store) InsertUnit(u *Unit) (int64, error) {
	return insertUnit(s.db, u)
}

const unitCols = "id, file_id, ordinal, kind, text, start_line, start_col, end_line, end_col"

func (s *Store) queryUnits(query string, args ...any) ([]*Unit, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var units []*Unit
	for rows.Next() {
		u := &Unit{}
		if err := rows.Scan(&u.ID, &u.FileID, &u.Ordinal, &u.Kind, &u.Text,
			&u.StartLine, &u.StartCol, &u.EndLine, &u.EndCol); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// UnitsByFile returns a file's units in source order.
func (s *Store) UnitsByFile(fileID int64) ([]*Unit, error) {
	units, err := s.queryUnits("SELECT "+unitCols+" FROM units WHERE file_id = ? ORDER BY ordinal", fileID)
	if err != nil {
		return nil, fmt.Errorf("units by file: %w", err)
	}
	return units, nil
}

// UnitAt returns nil, nil when the file has no unit at ordinal.
func (s *Store) UnitAt(fileID int64, ordinal int) (*Unit, error) {
	units, err := s.queryUnits("SELECT "+unitCols+" FROM units WHERE file_id = ? AND ordinal = ?", fileID, ordinal)
	if err != nil {
		return nil, fmt.Errorf("unit at: %w", err)
	}
	if len(units) == 0 {
		return nil, nil
	}
	return units[0], nil
}

// UnitsByID loads units by id, ordered by file then ordinal. Unknown ids
// are ignored.
func (s *Store) UnitsByID(ids []int64) ([]*Unit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	units, err := s.queryUnits(
		"SELECT "+unitCols+" FROM units WHERE id IN ("+placeholderList(len(ids))+") ORDER BY file_id, ordinal",
		int64sToArgs(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("units by id: %w", err)
	}
	return units, nil
}

// --- Identifier operations ---

func insertIdentifier(x execer, ident *Identifier) (int64, error) {
	res, err := x.Exec(
		"INSERT INTO identifiers (unit_id, name, outer_only) VALUES (?, ?, ?)",
		ident.UnitID, ident.Name, ident.Outer,
	)
	id, err := lastInsertID(res, err, "identifier")
	if err != nil {
		return 0, err
	}
	ident.ID = id
	return id, nil
}

func (s *Store) InsertIdentifier(ident *Identifier) (int64, error) {
	return insertIdentifier(s.db, ident)
}

// IdentifiersByUnit returns a unit's identifiers in traversal order.
// When outerOnly is set, only outer identifiers are returned.
func (s *Store) IdentifiersByUnit(unitID int64, outerOnly bool) ([]*Identifier, error) {
	query := "SELECT id, unit_id, name, outer_only FROM identifiers WHERE unit_id = ?"
	if outerOnly {
		query += " AND outer_only = 1"
	}
	rows, err := s.db.Query(query+" ORDER BY id", unitID)
	if err != nil {
		return nil, fmt.Errorf("identifiers by unit: %w", err)
	}
	defer rows.Close()
	var idents []*Identifier
	for rows.Next() {
		ident := &Identifier{}
		if err := rows.Scan(&ident.ID, &ident.UnitID, &ident.Name, &ident.Outer); err != nil {
			return nil, fmt.Errorf("scan identifier: %w", err)
		}
		idents = append(idents, ident)
	}
	return idents, rows.Err()
}

// UnitsDeclaring returns units whose outer identifiers include name, across
// all files, ordered by file path then ordinal.
func (s *Store) UnitsDeclaring(name string) ([]*Unit, error) {
	units, err := s.queryUnits(
		`SELECT DISTINCT u.id, u.file_id, u.ordinal, u.kind, u.text, u.start_line, u.start_col, u.end_line, u.end_col
		 FROM units u
		 JOIN identifiers i ON i.unit_id = u.id
		 JOIN files f ON f.id = u.file_id
		 WHERE i.name = ? AND i.outer_only = 1
		 ORDER BY f.path, u.ordinal`, name)
	if err != nil {
		return nil, fmt.Errorf("units declaring %s: %w", name, err)
	}
	return units, nil
}
