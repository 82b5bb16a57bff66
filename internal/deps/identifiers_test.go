package deps

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jward/topdeps/internal/syntax"
)

func ident(name string) *syntax.Node {
	return syntax.New(IdentifierKind, name)
}

func node(kind string, children ...*syntax.Node) *syntax.Node {
	return syntax.New(kind, kind, children...)
}

// layeredTree has identifiers at depths 1, 1, 2 and 3:
//
//	module
//	├── identifier x
//	├── call
//	│   ├── identifier y
//	│   └── arguments
//	│       └── identifier z
//	└── identifier w
func layeredTree() *syntax.Node {
	return node("module",
		ident("x"),
		node("call",
			ident("y"),
			node("arguments", ident("z")),
		),
		ident("w"),
	)
}

func TestIdentifiers_BreadthFirstOrder(t *testing.T) {
	t.Parallel()
	got := CollectIdentifiers(layeredTree(), IdentifierKind, false)
	assert.Equal(t, []string{"x", "w", "y", "z"}, got)
}

func TestIdentifiers_OuterOnlyStopsAfterFirstLevel(t *testing.T) {
	t.Parallel()
	got := CollectIdentifiers(layeredTree(), IdentifierKind, true)
	assert.Equal(t, []string{"x", "w"}, got)
}

func TestIdentifiers_OuterOnlyFirstLevelDeep(t *testing.T) {
	t.Parallel()
	// No identifier at depth 1; the first ones sit at depth 2.
	root := node("decorated_definition",
		node("decorator", ident("route"), node("arguments", ident("path"))),
		node("function_definition", ident("handler"), node("block", ident("body"))),
	)
	got := CollectIdentifiers(root, IdentifierKind, true)
	assert.Equal(t, []string{"route", "handler"}, got)
}

func TestIdentifiers_RootIsIdentifier(t *testing.T) {
	t.Parallel()
	root := syntax.New(IdentifierKind, "solo", ident("inner"))

	assert.Equal(t, []string{"solo"}, CollectIdentifiers(root, IdentifierKind, true))
	assert.Equal(t, []string{"solo", "inner"}, CollectIdentifiers(root, IdentifierKind, false))
}

func TestIdentifiers_NoIdentifiers(t *testing.T) {
	t.Parallel()
	root := node("expression_statement", node("integer"), node("string"))

	assert.Empty(t, CollectIdentifiers(root, IdentifierKind, true))
	assert.Empty(t, CollectIdentifiers(root, IdentifierKind, false))
}

func TestIdentifiers_NilRoot(t *testing.T) {
	t.Parallel()
	assert.Empty(t, CollectIdentifiers(nil, IdentifierKind, false))
}

func TestIdentifiers_DuplicatesKeptInSequence(t *testing.T) {
	t.Parallel()
	root := node("block", ident("a"), node("call", ident("a")), ident("a"))
	assert.Equal(t, []string{"a", "a", "a"}, CollectIdentifiers(root, IdentifierKind, false))
	assert.Equal(t, []string{"a", "a"}, CollectIdentifiers(root, IdentifierKind, true))
}

func TestIdentifiers_CustomKind(t *testing.T) {
	t.Parallel()
	root := node("type_declaration",
		syntax.New("type_identifier", "Server"),
		ident("ignored"),
	)
	assert.Equal(t, []string{"Server"}, CollectIdentifiers(root, "type_identifier", false))
}

func TestIdentifiers_EarlyBreak(t *testing.T) {
	t.Parallel()
	var got []string
	for name := range Identifiers(layeredTree(), IdentifierKind, false) {
		got = append(got, name)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"x", "w"}, got)
}

func TestIdentifiers_Restartable(t *testing.T) {
	t.Parallel()
	seq := Identifiers(layeredTree(), IdentifierKind, true)

	var first, second []string
	for name := range seq {
		first = append(first, name)
	}
	for name := range seq {
		second = append(second, name)
	}
	assert.Equal(t, first, second)
}

func TestIdentifiers_WideTree(t *testing.T) {
	t.Parallel()
	// Enough siblings to force the queue to reclaim its consumed prefix.
	var children []*syntax.Node
	var want []string
	for i := range 500 {
		name := string(rune('a'+i%26)) + string(rune('a'+i/26))
		children = append(children, node("statement", ident(name)))
		want = append(want, name)
	}
	got := CollectIdentifiers(node("module", children...), IdentifierKind, false)
	assert.Equal(t, want, got)
}

func TestIdentifierSetOf(t *testing.T) {
	t.Parallel()
	set := IdentifierSetOf(layeredTree(), IdentifierKind, true)
	assert.Len(t, set, 2)
	assert.True(t, set.Has("x"))
	assert.True(t, set.Has("w"))
	assert.False(t, set.Has("y"))
}

func TestQueue_FIFO(t *testing.T) {
	t.Parallel()
	var q queue
	for i := range 200 {
		q.push(item{depth: i})
	}
	for i := range 200 {
		it, ok := q.pop()
		if !assert.True(t, ok) {
			return
		}
		assert.Equal(t, i, it.depth)
	}
	_, ok := q.pop()
	assert.False(t, ok)
}
