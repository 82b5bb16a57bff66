package store

import "time"

type File struct {
	ID          int64
	Path        string
	Language    string
	Hash        string
	UnitCount   int
	LastIndexed time.Time
}

// Unit is one top-level child of a file's syntax tree root. Ordinal is its
// zero-based position among the root's children.
type Unit struct {
	ID        int64
	FileID    int64
	Ordinal   int
	Kind      string
	Text      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Identifier is a name found under a unit. Outer marks names that are part
// of the unit's outer identifier set.
type Identifier struct {
	ID     int64
	UnitID int64
	Name   string
	Outer  bool
}

// Dependency is a directed edge from a unit to a unit it uses. Ordinal is
// the edge's position in the source unit's dependency list.
type Dependency struct {
	ID           int64
	UnitID       int64
	TargetUnitID int64
	Ordinal      int
}

// Run records one indexing pass.
type Run struct {
	ID         string
	Root       string
	StartedAt  time.Time
	FinishedAt *time.Time
	FileCount  int
	ErrorCount int
}
