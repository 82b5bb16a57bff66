package store

// DataStore is the interface for analysis-phase writes. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// analysis) implement this interface.
type DataStore interface {
	// Inserts: each returns the assigned ID.
	InsertUnit(u *Unit) (int64, error)
	InsertIdentifier(ident *Identifier) (int64, error)
	InsertDependency(d *Dependency) (int64, error)

	UnitsByFile(fileID int64) ([]*Unit, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
