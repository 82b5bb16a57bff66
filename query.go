package topdeps

import (
	"fmt"

	"github.com/jward/topdeps/internal/store"
)

// QueryBuilder provides a read API over the index. Files are addressed by
// the path they were indexed under and units by their ordinal in the file.
// Lookups of files or units that are not indexed return nil, nil.
type QueryBuilder struct {
	store *store.Store
}

// Files lists every indexed file ordered by path.
func (q *QueryBuilder) Files() ([]*File, error) {
	files, err := q.store.Files()
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	return files, nil
}

// FilesByLanguage lists indexed files of one language ordered by path.
func (q *QueryBuilder) FilesByLanguage(language string) ([]*File, error) {
	files, err := q.store.FilesByLanguage(language)
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	return files, nil
}

// File returns the indexed record for path.
func (q *QueryBuilder) File(path string) (*File, error) {
	f, err := q.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}
	return f, nil
}

// Units returns the units of path in source order.
func (q *QueryBuilder) Units(path string) ([]*StoredUnit, error) {
	f, err := q.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("units: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	units, err := q.store.UnitsByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("units: %w", err)
	}
	return units, nil
}

// Unit returns the unit at ordinal index in path.
func (q *QueryBuilder) Unit(path string, index int) (*StoredUnit, error) {
	f, err := q.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("unit: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	u, err := q.store.UnitAt(f.ID, index)
	if err != nil {
		return nil, fmt.Errorf("unit: %w", err)
	}
	return u, nil
}

// Targets returns, per unit of path, the ordinals of the units it depends
// on in discovery order. The stored form of the in-memory Record targets.
func (q *QueryBuilder) Targets(path string) ([][]int, error) {
	f, err := q.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("targets: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	units, err := q.store.UnitsByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("targets: %w", err)
	}
	ordinal := make(map[int64]int, len(units))
	for _, u := range units {
		ordinal[u.ID] = u.Ordinal
	}
	edges, err := q.store.DependenciesByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("targets: %w", err)
	}
	out := make([][]int, len(units))
	for _, d := range edges {
		src := ordinal[d.UnitID]
		out[src] = append(out[src], ordinal[d.TargetUnitID])
	}
	return out, nil
}

// DependenciesOf returns the units that unit index of path depends on, in
// discovery order.
func (q *QueryBuilder) DependenciesOf(path string, index int) ([]*StoredUnit, error) {
	u, err := q.Unit(path, index)
	if err != nil || u == nil {
		return nil, err
	}
	out, err := q.store.DependenciesOf(u.ID)
	if err != nil {
		return nil, fmt.Errorf("dependencies of: %w", err)
	}
	return out, nil
}

// DependentsOf returns the units that depend on unit index of path.
func (q *QueryBuilder) DependentsOf(path string, index int) ([]*StoredUnit, error) {
	u, err := q.Unit(path, index)
	if err != nil || u == nil {
		return nil, err
	}
	out, err := q.store.DependentsOf(u.ID)
	if err != nil {
		return nil, fmt.Errorf("dependents of: %w", err)
	}
	return out, nil
}

// Identifiers returns the distinct identifiers of unit index of path in
// breadth-first order. With outerOnly, only its outermost identifiers.
func (q *QueryBuilder) Identifiers(path string, index int, outerOnly bool) ([]string, error) {
	u, err := q.Unit(path, index)
	if err != nil || u == nil {
		return nil, err
	}
	idents, err := q.store.IdentifiersByUnit(u.ID, outerOnly)
	if err != nil {
		return nil, fmt.Errorf("identifiers: %w", err)
	}
	names := make([]string, len(idents))
	for i, ident := range idents {
		names[i] = ident.Name
	}
	return names, nil
}

// Affected returns every unit that transitively depends on unit index of
// path: the units to revisit when it changes.
func (q *QueryBuilder) Affected(path string, index int) ([]*StoredUnit, error) {
	u, err := q.Unit(path, index)
	if err != nil || u == nil {
		return nil, err
	}
	ids, err := q.store.BlastRadius([]int64{u.ID})
	if err != nil {
		return nil, fmt.Errorf("affected: %w", err)
	}
	units, err := q.store.UnitsByID(ids)
	if err != nil {
		return nil, fmt.Errorf("affected: %w", err)
	}
	return units, nil
}

// Declarations returns the units, across all files, whose outermost
// identifiers include name.
func (q *QueryBuilder) Declarations(name string) ([]*StoredUnit, error) {
	units, err := q.store.UnitsDeclaring(name)
	if err != nil {
		return nil, fmt.Errorf("declarations: %w", err)
	}
	return units, nil
}

// LatestRun returns the most recent indexing run, or nil if none.
func (q *QueryBuilder) LatestRun() (*Run, error) {
	r, err := q.store.LatestRun()
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}

// IdentifierKind returns the identifier kind the index was last built with,
// or "" for an empty index.
func (q *QueryBuilder) IdentifierKind() (string, error) {
	kind, err := q.store.GetMetadata("identifier_kind")
	if err != nil {
		return "", fmt.Errorf("identifier kind: %w", err)
	}
	return kind, nil
}
