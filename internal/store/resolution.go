package store

import "fmt"

// --- Dependency operations ---

func insertDependency(x execer, d *Dependency) (int64, error) {
	res, err := x.Exec(
		"INSERT INTO dependencies (unit_id, target_unit_id, ordinal) VALUES (?, ?, ?)",
		d.UnitID, d.TargetUnitID, d.Ordinal,
	)
	id, err := lastInsertID(res, err, "dependency")
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

func (s *Store) InsertDependency(d *Dependency) (int64, error) {
	return insertDependency(s.db, d)
}

// DependenciesOf returns the units that unitID depends on, in edge order.
func (s *Store) DependenciesOf(unitID int64) ([]*Unit, error) {
	units, err := s.queryUnits(
		`SELECT u.id, u.file_id, u.ordinal, u.kind, u.text, u.start_line, u.start_col, u.end_line, u.end_col
		 FROM dependencies d
		 JOIN units u ON u.id = d.target_unit_id
		 WHERE d.unit_id = ?
		 ORDER BY d.ordinal`, unitID)
	if err != nil {
		return nil, fmt.Errorf("dependencies of %d: %w", unitID, err)
	}
	return units, nil
}

// DependentsOf returns the units that depend on unitID, in source order.
func (s *Store) DependentsOf(unitID int64) ([]*Unit, error) {
	units, err := s.queryUnits(
		`SELECT u.id, u.file_id, u.ordinal, u.kind, u.text, u.start_line, u.start_col, u.end_line, u.end_col
		 FROM dependencies d
		 JOIN units u ON u.id = d.unit_id
		 WHERE d.target_unit_id = ?
		 ORDER BY u.ordinal`, unitID)
	if err != nil {
		return nil, fmt.Errorf("dependents of %d: %w", unitID, err)
	}
	return units, nil
}

// DependenciesByFile returns every edge whose source unit belongs to fileID,
// ordered by source ordinal then edge ordinal.
func (s *Store) DependenciesByFile(fileID int64) ([]*Dependency, error) {
	rows, err := s.db.Query(
		`SELECT d.id, d.unit_id, d.target_unit_id, d.ordinal
		 FROM dependencies d
		 JOIN units u ON u.id = d.unit_id
		 WHERE u.file_id = ?
		 ORDER BY u.ordinal, d.ordinal`, fileID)
	if err != nil {
		return nil, fmt.Errorf("dependencies by file: %w", err)
	}
	defer rows.Close()
	var deps []*Dependency
	for rows.Next() {
		d := &Dependency{}
		if err := rows.Scan(&d.ID, &d.UnitID, &d.TargetUnitID, &d.Ordinal); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}
