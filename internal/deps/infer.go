package deps

import (
	"context"
	"runtime"
	"sync"

	"github.com/jward/topdeps/internal/syntax"
)

// Unit is one top-level declaration: an immediate child of the tree root.
type Unit struct {
	Index int
	Node  *syntax.Node
}

// Text returns the unit's raw source text.
func (u Unit) Text() string {
	if u.Node == nil {
		return ""
	}
	return u.Node.Text
}

// Units wraps the root's children as units, in order.
func Units(root *syntax.Node) []Unit {
	if root == nil {
		return nil
	}
	return UnitsOf(root.Children)
}

// UnitsOf wraps an already split sequence of top-level nodes.
func UnitsOf(nodes []*syntax.Node) []Unit {
	units := make([]Unit, len(nodes))
	for i, n := range nodes {
		units[i] = Unit{Index: i, Node: n}
	}
	return units
}

// Record lists the units a unit depends on. Dependencies holds raw unit text
// in order of discovery, without duplicates; Targets holds the index of the
// unit each entry was first found in.
type Record struct {
	Unit         int
	Dependencies []string
	Targets      []int
}

// OuterSets returns the outer identifier set of every unit.
func OuterSets(units []Unit, kind string) []IdentifierSet {
	sets := make([]IdentifierSet, len(units))
	for i, u := range units {
		sets[i] = IdentifierSetOf(u.Node, kind, true)
	}
	return sets
}

// Infer computes one Record per unit, aligned with units. Unit i depends on
// unit j (i != j) when any identifier anywhere in i appears in j's outer
// identifier set. Candidates are scanned in ascending j, and entries whose
// text was already recorded are dropped.
func Infer(units []Unit, kind string) []Record {
	outer := OuterSets(units, kind)
	records := make([]Record, len(units))
	for i := range units {
		records[i] = inferRow(units, outer, i, kind)
	}
	return records
}

// InferParallel is Infer with rows spread over workers. Rows only read the
// shared units and outer sets, so the output matches Infer exactly.
func InferParallel(ctx context.Context, units []Unit, kind string, workers int) ([]Record, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(units))
	if workers <= 1 {
		return Infer(units, kind), nil
	}

	outer := OuterSets(units, kind)
	records := make([]Record, len(units))

	rows := make(chan int, len(units))
	for i := range units {
		rows <- i
	}
	close(rows)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				if ctx.Err() != nil {
					return
				}
				records[i] = inferRow(units, outer, i, kind)
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func inferRow(units []Unit, outer []IdentifierSet, i int, kind string) Record {
	used := CollectIdentifiers(units[i].Node, kind, false)
	rec := Record{Unit: i}
	seen := make(map[string]struct{})
	for j := range units {
		if j == i || len(outer[j]) == 0 || !usesAny(used, outer[j]) {
			continue
		}
		text := units[j].Text()
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		rec.Dependencies = append(rec.Dependencies, text)
		rec.Targets = append(rec.Targets, j)
	}
	return rec
}

func usesAny(names []string, set IdentifierSet) bool {
	for _, n := range names {
		if set.Has(n) {
			return true
		}
	}
	return false
}
