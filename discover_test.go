package topdeps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkListFiles_SkipsIgnoredAndVendored(t *testing.T) {
	e := newTestEngine(t)
	root := t.TempDir()
	keep := writeFile(t, root, "src/app.py", pySource)
	writeFile(t, root, "node_modules/lib/index.js", "function x() {}\n")
	writeFile(t, root, ".hidden/secret.py", pySource)
	writeFile(t, root, "generated/out.py", pySource)
	writeFile(t, root, "src/notes.txt", "not code")
	writeFile(t, root, "src/tmp_scratch.py", pySource)
	writeFile(t, root, ".gitignore", "generated/\ntmp_*.py\n")

	paths, err := e.walkListFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, paths)
}

func TestWalkListFiles_RespectsLanguageFilter(t *testing.T) {
	e := newTestEngine(t, WithLanguages("go"))
	root := t.TempDir()
	writeFile(t, root, "a.py", pySource)
	goFile := writeFile(t, root, "b.go", "package b\n")

	paths, err := e.walkListFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{goFile}, paths)
}

func TestIndexDirectory(t *testing.T) {
	e := newTestEngine(t)
	root := t.TempDir()
	a := writeFile(t, root, "a.py", pySource)
	writeFile(t, root, "pkg/b.go", "package pkg\n\nfunc B() {}\n")

	require.NoError(t, e.IndexDirectory(context.Background(), root))

	files, err := e.Query().Files()
	require.NoError(t, err)
	require.Len(t, files, 2)

	run, err := e.Query().LatestRun()
	require.NoError(t, err)
	assert.Equal(t, root, run.Root)

	deps, err := e.Query().DependenciesOf(a, 0)
	require.NoError(t, err)
	assert.Len(t, deps, 1)
}

func TestIndexDirectory_PrunesDeletedFiles(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	root := t.TempDir()
	a := writeFile(t, root, "a.py", pySource)
	b := writeFile(t, root, "b.py", "x = 1\n")

	require.NoError(t, e.IndexDirectory(ctx, root))
	require.NoError(t, os.Remove(b))
	require.NoError(t, e.IndexDirectory(ctx, root))

	files, err := e.Query().Files()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, a, files[0].Path)
}

func TestIndexDirectory_LeavesOtherRootsAlone(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	other := writeFile(t, t.TempDir(), "other.py", pySource)
	require.NoError(t, e.IndexFiles(ctx, []string{other}))
	require.NoError(t, os.Remove(other))

	require.NoError(t, e.IndexDirectory(ctx, t.TempDir()))

	f, err := e.Query().File(other)
	require.NoError(t, err)
	assert.NotNil(t, f, "files outside root are not pruned")
}

func TestLoadGitignore_Missing(t *testing.T) {
	assert.Nil(t, loadGitignore(filepath.Join(t.TempDir(), "nope")))
}
