package store

import "fmt"

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// IDs, and all unit references within the batch are rewritten using the
// fakeToReal mapping.
//
// Insert order respects FK dependencies:
//  1. File update (if batch.File is set), clearing old data when Replace is set
//  2. Units (depend on file_id only, which is already real)
//  3. Identifiers (depend on unit_id)
//  4. Dependencies (depend on unit_id and target_unit_id)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	// 1. File
	if batch.File != nil {
		if batch.Replace {
			if err := deleteFileData(tx, batch.File.ID); err != nil {
				return fmt.Errorf("commit batch: %w", err)
			}
		}
		if err := updateFile(tx, batch.File); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
	}

	fakeToReal := make(map[int64]int64, len(batch.Units))
	remap := func(id int64) (int64, error) {
		if id >= 0 {
			return id, nil
		}
		realID, ok := fakeToReal[id]
		if !ok {
			return 0, fmt.Errorf("unit_id=%d not in fakeToReal map (have %d units)", id, len(batch.Units))
		}
		return realID, nil
	}

	// 2. Units
	for _, u := range batch.Units {
		fakeID := u.ID
		realID, err := insertUnit(tx, &u)
		if err != nil {
			return fmt.Errorf("commit batch: unit %d: %w", u.Ordinal, err)
		}
		fakeToReal[fakeID] = realID
	}

	// 3. Identifiers
	for _, ident := range batch.Identifiers {
		if ident.UnitID, err = remap(ident.UnitID); err != nil {
			return fmt.Errorf("commit batch: identifier %q: %w", ident.Name, err)
		}
		if _, err := insertIdentifier(tx, &ident); err != nil {
			return fmt.Errorf("commit batch: identifier %q: %w", ident.Name, err)
		}
	}

	// 4. Dependencies
	for _, d := range batch.Dependencies {
		if d.UnitID, err = remap(d.UnitID); err != nil {
			return fmt.Errorf("commit batch: dependency: %w", err)
		}
		if d.TargetUnitID, err = remap(d.TargetUnitID); err != nil {
			return fmt.Errorf("commit batch: dependency target: %w", err)
		}
		if _, err := insertDependency(tx, &d); err != nil {
			return fmt.Errorf("commit batch: dependency: %w", err)
		}
	}

	return tx.Commit()
}
