package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/topdeps/internal/grammar"
)

const pySource = `def a():
    return b()

def b():
    return 1
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAnalyzeFile_Python(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "a.py", pySource)

	fa, err := New().AnalyzeFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, fa.Path)
	assert.Equal(t, "python", fa.Language)
	assert.Len(t, fa.Hash, 64)
	require.Len(t, fa.Units, 2)
	require.Len(t, fa.Records, 2)

	assert.Equal(t, []string{"def b():\n    return 1"}, fa.Records[0].Dependencies)
	assert.Equal(t, []int{1}, fa.Records[0].Targets)
	assert.Empty(t, fa.Records[1].Dependencies)
	assert.Equal(t, []string{"def a():\n    return b()", "def b():\n    return 1"}, fa.Texts())
}

func TestAnalyzeFile_Unsupported(t *testing.T) {
	t.Parallel()
	_, err := New().AnalyzeFile(context.Background(), "a.xyz")
	require.Error(t, err)
	assert.ErrorIs(t, err, grammar.ErrUnsupportedLanguage)
	assert.EqualError(t, err, `analyze a.xyz: unsupported language: extension "xyz"`)
	assert.True(t, IsSkippable(err))
}

func TestAnalyzeFile_LanguageFilter(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "a.py", pySource)
	a := New(WithLanguages("go"))

	_, err := a.AnalyzeFile(context.Background(), path)
	assert.ErrorIs(t, err, grammar.ErrUnsupportedLanguage)

	_, ok := a.Supports(path)
	assert.False(t, ok)
	lang, ok := a.Supports("main.go")
	assert.True(t, ok)
	assert.Equal(t, "go", lang)
}

func TestAnalyzeFile_TooLarge(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "a.py", pySource)

	_, err := New(WithMaxFileSize(4)).AnalyzeFile(context.Background(), path)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.True(t, IsSkippable(err))
}

func TestAnalyzeFile_Missing(t *testing.T) {
	t.Parallel()
	_, err := New().AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "gone.py"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAnalyzeSource_CacheHitKeepsPath(t *testing.T) {
	t.Parallel()
	a := New(WithCacheSize(4))
	ctx := context.Background()

	first, err := a.AnalyzeSource(ctx, "one.py", []byte(pySource))
	require.NoError(t, err)
	second, err := a.AnalyzeSource(ctx, "two.py", []byte(pySource))
	require.NoError(t, err)

	assert.Equal(t, "one.py", first.Path)
	assert.Equal(t, "two.py", second.Path)
	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.Hash, second.Hash)
}

func TestAnalyzeSource_KindChangesResult(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	withIdent, err := New().AnalyzeSource(ctx, "a.py", []byte(pySource))
	require.NoError(t, err)
	withBogus, err := New(WithIdentifierKind("no_such_kind")).AnalyzeSource(ctx, "a.py", []byte(pySource))
	require.NoError(t, err)

	assert.NotEmpty(t, withIdent.Records[0].Dependencies)
	assert.Empty(t, withBogus.Records[0].Dependencies)
}

func TestAnalyzeSource_ParallelMatchesSerial(t *testing.T) {
	t.Parallel()
	src := []byte(`def a():
    return b() + c()

def b():
    return c()

def c():
    return a

x = a()
`)
	ctx := context.Background()

	serial, err := New(WithCacheSize(0)).AnalyzeSource(ctx, "m.py", src)
	require.NoError(t, err)
	parallel, err := New(WithCacheSize(0), WithWorkers(4)).AnalyzeSource(ctx, "m.py", src)
	require.NoError(t, err)
	assert.Equal(t, serial.Records, parallel.Records)
}

func TestAnalyzeLanguage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fa, err := New().AnalyzeLanguage(ctx, "python", []byte(pySource))
	require.NoError(t, err)
	assert.Empty(t, fa.Path)
	assert.Len(t, fa.Units, 2)

	_, err = New().AnalyzeLanguage(ctx, "cobol", []byte("x"))
	assert.ErrorIs(t, err, grammar.ErrUnsupportedLanguage)
}

func TestAnalyzeSource_AcquisitionFailure(t *testing.T) {
	t.Parallel()
	reg := grammar.NewRegistry()
	reg.Register("broken", []string{".brk"}, func() (*sitter.Language, error) {
		return nil, errors.New("missing shared object")
	})

	_, err := New(WithRegistry(reg)).AnalyzeSource(context.Background(), "a.brk", []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, grammar.ErrGrammarAcquisition)
	var acqErr *grammar.AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	assert.Equal(t, "broken", acqErr.Language)
	assert.False(t, IsSkippable(err))
}

func TestAnalyzeSource_EmptyFile(t *testing.T) {
	t.Parallel()
	fa, err := New().AnalyzeSource(context.Background(), "empty.py", []byte("\n"))
	require.NoError(t, err)
	assert.Empty(t, fa.Units)
	assert.Empty(t, fa.Records)
}
