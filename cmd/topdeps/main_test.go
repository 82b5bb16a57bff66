package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/topdeps/internal/config"
)

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	got := findRepoRoot(root)
	assert.Equal(t, root, got)
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	deep := filepath.Join(root, "sub", "deep")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}

	got := findRepoRoot(deep)
	assert.Equal(t, root, got)
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	// TempDir has no .git directory anywhere in its ancestry
	// (unless /tmp itself is a repo, which would be unusual).
	dir := t.TempDir()

	got := findRepoRoot(dir)
	assert.Equal(t, dir, got)
}

func TestLoadEnv_ReadsTopdepsConfig(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, ".topdeps"), 0o755))
	cfg := "database: data/deps.db\nidentifier_kind: name\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".topdeps", "config.yaml"), []byte(cfg), 0o644))
	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))

	env, err := loadEnv(sub)
	require.NoError(t, err)
	assert.Equal(t, root, env.repoRoot)
	assert.Equal(t, "name", env.cfg.IdentifierKind)
	assert.Equal(t, filepath.Join(root, "data", "deps.db"), env.dbPath())
	assert.Len(t, env.options(), 2)
}

func TestLoadEnv_DefaultDatabaseUnderRepoRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	env, err := loadEnv(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".topdeps", "index.db"), env.dbPath())
}

func TestDBPath_AbsoluteConfigPathKept(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "elsewhere.db")
	env := &runEnv{repoRoot: "/repo", cfg: &config.Config{Database: abs}}
	assert.Equal(t, abs, env.dbPath())
}

func TestRemoveDatabase_RemovesWALSidecars(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	db := filepath.Join(dir, "index.db")
	for _, p := range []string{db, db + "-wal", db + "-shm", filepath.Join(dir, "config.yaml")} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	require.NoError(t, removeDatabase(db))

	for _, p := range []string{db, db + "-wal", db + "-shm"} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), "%s should be gone", p)
	}
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))
}

func TestRemoveDatabase_MissingFilesIgnored(t *testing.T) {
	t.Parallel()
	db := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, os.WriteFile(db+"-wal", []byte("x"), 0o644))

	assert.NoError(t, removeDatabase(db))
	assert.NoFileExists(t, db+"-wal")
	assert.NoError(t, removeDatabase(db))
}
