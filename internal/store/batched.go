package store

import (
	"slices"
	"sync"
)

// BatchedStore buffers analysis inserts in memory using fake (negative)
// IDs. It implements DataStore so the analysis writer does not need to know
// whether it is hitting SQLite or an in-memory buffer.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
// UnitsByFile reads through to the underlying Store, which is safe for
// concurrent reads.
type BatchedStore struct {
	store *Store
	mu    sync.Mutex

	// File, when set, is updated in the same transaction as the batch.
	File *File
	// Replace drops File's previously stored units before inserting.
	Replace bool

	Units        []Unit
	Identifiers  []Identifier
	Dependencies []Dependency

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore backed by the given Store for read queries.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertUnit(u *Unit) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	u.ID = fakeID
	b.Units = append(b.Units, *u)
	return fakeID, nil
}

func (b *BatchedStore) InsertIdentifier(ident *Identifier) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	ident.ID = fakeID
	b.Identifiers = append(b.Identifiers, *ident)
	return fakeID, nil
}

func (b *BatchedStore) InsertDependency(d *Dependency) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	d.ID = fakeID
	b.Dependencies = append(b.Dependencies, *d)
	return fakeID, nil
}

// UnitsByFile returns units for a file, merging any buffered (not yet
// committed) units with those already in the database, in ordinal order.
func (b *BatchedStore) UnitsByFile(fileID int64) ([]*Unit, error) {
	dbUnits, err := b.store.UnitsByFile(fileID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Units {
		if b.Units[i].FileID == fileID {
			dbUnits = append(dbUnits, &b.Units[i])
		}
	}
	slices.SortStableFunc(dbUnits, func(x, y *Unit) int { return x.Ordinal - y.Ordinal })
	return dbUnits, nil
}
