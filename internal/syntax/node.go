// Package syntax holds the immutable syntax tree the dependency analysis
// works on. Trees are snapshots of tree-sitter output, so the C-side tree can
// be released as soon as parsing finishes.
package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Point is a 0-based line/column position in source.
type Point struct {
	Line int
	Col  int
}

// Node is one node of a parsed tree. Each child has exactly one parent and
// the tree is finite; nothing mutates a Node after it is built.
type Node struct {
	Kind     string
	Text     string
	Children []*Node
	Start    Point
	End      Point
}

// New builds a node by hand. Used by tests and script host functions that
// construct trees without a parser.
func New(kind, text string, children ...*Node) *Node {
	return &Node{Kind: kind, Text: text, Children: children}
}

// ChildCount returns the number of direct children.
func (n *Node) ChildCount() int {
	return len(n.Children)
}

// FromSitter copies a tree-sitter subtree into owned nodes. Traversal uses an
// explicit stack so very deep trees cannot exhaust the goroutine stack.
func FromSitter(root *sitter.Node, src []byte) *Node {
	if root == nil {
		return nil
	}
	// One conversion so every Text is a substring sharing this backing array.
	source := string(src)

	type frame struct {
		ts  *sitter.Node
		out *Node
	}
	out := snapshot(root, source)
	stack := []frame{{ts: root, out: out}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		count := int(f.ts.ChildCount())
		if count == 0 {
			continue
		}
		f.out.Children = make([]*Node, count)
		for i := 0; i < count; i++ {
			child := f.ts.Child(i)
			if child == nil {
				continue
			}
			c := snapshot(child, source)
			f.out.Children[i] = c
			stack = append(stack, frame{ts: child, out: c})
		}
		f.out.Children = compact(f.out.Children)
	}
	return out
}

func snapshot(n *sitter.Node, source string) *Node {
	start, end := int(n.StartByte()), int(n.EndByte())
	if end > len(source) {
		end = len(source)
	}
	if start > end {
		start = end
	}
	sp, ep := n.StartPoint(), n.EndPoint()
	return &Node{
		Kind:  n.Type(),
		Text:  source[start:end],
		Start: Point{Line: int(sp.Row), Col: int(sp.Column)},
		End:   Point{Line: int(ep.Row), Col: int(ep.Column)},
	}
}

// compact drops nil entries left by children tree-sitter refused to return.
func compact(nodes []*Node) []*Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}
