package syntax

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsePython(t *testing.T, src string) *Node {
	t.Helper()
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	require.NoError(t, err)
	defer tree.Close()

	return FromSitter(tree.RootNode(), []byte(src))
}

func TestFromSitter_RootAndChildren(t *testing.T) {
	t.Parallel()
	src := "def a():\n    return b()\n\ndef b():\n    return 1\n"
	root := parsePython(t, src)
	require.NotNil(t, root)

	assert.Equal(t, "module", root.Kind)
	assert.Equal(t, src, root.Text)
	require.Equal(t, 2, root.ChildCount())
	assert.Equal(t, "function_definition", root.Children[0].Kind)
	assert.Equal(t, "def a():\n    return b()", root.Children[0].Text)
	assert.Equal(t, "def b():\n    return 1", root.Children[1].Text)
}

func TestFromSitter_Positions(t *testing.T) {
	t.Parallel()
	root := parsePython(t, "x = 1\n\ny = x\n")
	require.Equal(t, 2, root.ChildCount())

	second := root.Children[1]
	assert.Equal(t, Point{Line: 2, Col: 0}, second.Start)
	assert.Equal(t, Point{Line: 2, Col: 5}, second.End)
}

func TestFromSitter_KeepsAnonymousChildren(t *testing.T) {
	t.Parallel()
	root := parsePython(t, "def f(): pass\n")
	fn := root.Children[0]

	var kinds []string
	for _, c := range fn.Children {
		kinds = append(kinds, c.Kind)
	}
	assert.Contains(t, kinds, "def")
	assert.Contains(t, kinds, "identifier")
	assert.Contains(t, kinds, ":")
}

func TestFromSitter_Nil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, FromSitter(nil, nil))
}

func TestNew(t *testing.T) {
	t.Parallel()
	leaf := New("identifier", "x")
	n := New("expression_statement", "x", leaf)
	assert.Equal(t, 1, n.ChildCount())
	assert.Same(t, leaf, n.Children[0])
	assert.Equal(t, 0, leaf.ChildCount())
}
