// Package deps splits a syntax tree into top-level units and infers which
// units depend on which through shared identifiers.
package deps

import (
	"iter"

	"github.com/jward/topdeps/internal/syntax"
)

// IdentifierKind is the node kind treated as a name by default.
const IdentifierKind = "identifier"

type item struct {
	node  *syntax.Node
	depth int
}

// queue is a FIFO frontier over a growable buffer. Popped slots are released
// so long traversals do not pin visited nodes.
type queue struct {
	items []item
	head  int
}

func (q *queue) push(it item) {
	q.items = append(q.items, it)
}

func (q *queue) pop() (item, bool) {
	if q.head >= len(q.items) {
		return item{}, false
	}
	it := q.items[q.head]
	q.items[q.head] = item{}
	q.head++
	// Reclaim the consumed prefix once it dominates the buffer.
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return it, true
}

// Identifiers yields the text of every node of the given kind under root in
// breadth-first order: by depth, then left to right.
//
// With outerOnly set, the scan stops at the first node deeper than the level
// where identifiers were found, so only the shallowest level of identifiers
// is yielded. A subtree without identifiers yields nothing.
//
// Each iteration starts a fresh traversal.
func Identifiers(root *syntax.Node, kind string, outerOnly bool) iter.Seq[string] {
	return func(yield func(string) bool) {
		if root == nil {
			return
		}
		var q queue
		q.push(item{node: root})
		cutoff := -1
		for {
			it, ok := q.pop()
			if !ok {
				return
			}
			if outerOnly && cutoff >= 0 && it.depth > cutoff {
				return
			}
			if it.node.Kind == kind {
				if !yield(it.node.Text) {
					return
				}
				if outerOnly {
					cutoff = it.depth
				}
			}
			for _, c := range it.node.Children {
				q.push(item{node: c, depth: it.depth + 1})
			}
		}
	}
}

// CollectIdentifiers drains Identifiers into a slice.
func CollectIdentifiers(root *syntax.Node, kind string, outerOnly bool) []string {
	var out []string
	for name := range Identifiers(root, kind, outerOnly) {
		out = append(out, name)
	}
	return out
}

// IdentifierSet is a set of identifier texts.
type IdentifierSet map[string]struct{}

// Has reports whether name is in the set.
func (s IdentifierSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// IdentifierSetOf collapses Identifiers into a set.
func IdentifierSetOf(root *syntax.Node, kind string, outerOnly bool) IdentifierSet {
	set := make(IdentifierSet)
	for name := range Identifiers(root, kind, outerOnly) {
		set[name] = struct{}{}
	}
	return set
}
