// Package order turns a dependency table into processing orders: units
// sorted so dependencies come first, the transitive context of one unit,
// and size-bounded chunks.
package order

import (
	"sort"

	"github.com/jward/topdeps/internal/deps"
)

// Topological returns unit indices with every unit placed after the units it
// depends on. Ties go to the lowest index. When the remaining units form a
// cycle, the lowest remaining index is emitted to break it.
func Topological(records []deps.Record) []int {
	n := len(records)
	pending := make([]int, n)
	dependents := make([][]int, n)
	for i, rec := range records {
		for _, t := range uniqueTargets(rec, n) {
			pending[i]++
			dependents[t] = append(dependents[t], i)
		}
	}

	done := make([]bool, n)
	out := make([]int, 0, n)
	for len(out) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && pending[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			for i := 0; i < n; i++ {
				if !done[i] {
					next = i
					break
				}
			}
		}
		done[next] = true
		out = append(out, next)
		for _, d := range dependents[next] {
			if pending[d] > 0 {
				pending[d]--
			}
		}
	}
	return out
}

// Closure returns every unit index reachable from index through dependency
// edges, excluding index itself, in ascending order.
func Closure(records []deps.Record, index int) []int {
	if index < 0 || index >= len(records) {
		return nil
	}
	seen := map[int]bool{index: true}
	frontier := []int{index}
	var out []int
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		for _, t := range records[cur].Targets {
			if t < 0 || t >= len(records) || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
			frontier = append(frontier, t)
		}
	}
	sort.Ints(out)
	return out
}

// Chunks walks the topological order and groups consecutive units while the
// summed text size stays within maxBytes. A unit larger than maxBytes gets a
// chunk of its own. maxBytes <= 0 puts everything in one chunk.
func Chunks(texts []string, records []deps.Record, maxBytes int) [][]int {
	if len(records) == 0 {
		return nil
	}
	ordered := Topological(records)
	if maxBytes <= 0 {
		return [][]int{ordered}
	}

	var (
		chunks  [][]int
		current []int
		size    int
	)
	for _, idx := range ordered {
		n := 0
		if idx < len(texts) {
			n = len(texts[idx])
		}
		if len(current) > 0 && size+n > maxBytes {
			chunks = append(chunks, current)
			current, size = nil, 0
		}
		current = append(current, idx)
		size += n
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

func uniqueTargets(rec deps.Record, n int) []int {
	var out []int
	seen := make(map[int]bool, len(rec.Targets))
	for _, t := range rec.Targets {
		if t < 0 || t >= n || t == rec.Unit || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
