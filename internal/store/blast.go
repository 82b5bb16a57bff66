package store

import "fmt"

// BlastRadius returns the IDs of every unit that transitively depends on any
// of unitIDs, excluding the inputs themselves. Results are sorted by ID.
func (s *Store) BlastRadius(unitIDs []int64) ([]int64, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	placeholders := placeholderList(len(unitIDs))
	args := int64sToArgs(unitIDs)
	query := `WITH RECURSIVE affected(id) AS (
			SELECT unit_id FROM dependencies WHERE target_unit_id IN (` + placeholders + `)
			UNION
			SELECT d.unit_id FROM dependencies d JOIN affected a ON d.target_unit_id = a.id
		)
		SELECT id FROM affected WHERE id NOT IN (` + placeholders + `) ORDER BY id`
	ids, err := queryIDs(s.db, query, repeatArgs(args, 2)...)
	if err != nil {
		return nil, fmt.Errorf("blast radius: %w", err)
	}
	return ids, nil
}
