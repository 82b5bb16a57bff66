package runtime

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/topdeps/internal/analysis"
	"github.com/jward/topdeps/internal/slogutil"
	"github.com/jward/topdeps/internal/store"
)

const pyTestSource = `def a():
    return b()

def b():
    return 1
`

func writePyFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mod.py")
	require.NoError(t, os.WriteFile(path, []byte(pyTestSource), 0644))
	return path
}

// newIndexedStore builds a store holding mod.py with units a, b and the
// edge a -> b.
func newIndexedStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })

	f := &store.File{Path: "mod.py", Language: "python", Hash: "h", UnitCount: 2, LastIndexed: time.Now()}
	_, err = s.InsertFile(f)
	require.NoError(t, err)
	a := &store.Unit{FileID: f.ID, Ordinal: 0, Kind: "function_definition", Text: "def a():\n    return b()"}
	b := &store.Unit{FileID: f.ID, Ordinal: 1, Kind: "function_definition", Text: "def b():\n    return 1", StartLine: 3, EndLine: 4}
	_, err = s.InsertUnit(a)
	require.NoError(t, err)
	_, err = s.InsertUnit(b)
	require.NoError(t, err)
	_, err = s.InsertDependency(&store.Dependency{UnitID: a.ID, TargetUnitID: b.ID})
	require.NoError(t, err)
	return s
}

// --- Analysis host functions ---

func TestRunSource_AnalyzeSrc(t *testing.T) {
	rt := NewRuntime(nil, "")

	script := `
fa := analyze_src(src, "python")
assert(fa["language"] == "python", 'expected python, got {fa["language"]}')
units := fa["units"]
assert(len(units) == 2, 'expected 2 units, got {len(units)}')

first := units[0]
assert(first["kind"] == "function_definition", 'unexpected kind {first["kind"]}')
assert(len(first["dependencies"]) == 1, 'expected 1 dependency')
assert(first["targets"][0] == 1, 'expected target 1')
assert(len(units[1]["dependencies"]) == 0, 'b depends on nothing')
assert(units[1]["start_line"] == 3, 'b starts on line 3')
`
	err := rt.RunSource(context.Background(), script, map[string]any{"src": pyTestSource})
	require.NoError(t, err)
}

func TestRunSource_AnalyzeFile(t *testing.T) {
	path := writePyFile(t)
	rt := NewRuntime(nil, "")

	script := `
fa := analyze(path)
assert(fa["path"] == path, 'path not echoed')
assert(len(fa["hash"]) == 64, 'expected sha256 hex')
assert(fa["units"][0]["dependencies"][0] == fa["units"][1]["text"], 'a should depend on b')
`
	err := rt.RunSource(context.Background(), script, map[string]any{"path": path})
	require.NoError(t, err)
}

func TestRunSource_AnalyzeUnsupported(t *testing.T) {
	rt := NewRuntime(nil, "")
	err := rt.RunSource(context.Background(), `analyze("notes.xyz")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported language")
}

func TestRunSource_Identifiers(t *testing.T) {
	rt := NewRuntime(nil, "")

	script := `
outer := identifiers(src, "python", 0, true)
assert(len(outer) == 1, 'expected 1 outer identifier, got {len(outer)}')
assert(outer[0] == "a", 'expected a, got {outer[0]}')

full := identifiers(src, "python", 0, false)
assert(len(full) == 2, 'expected 2 identifiers, got {len(full)}')
assert(full[0] == "a", 'expected a, got {full[0]}')
assert(full[1] == "b", 'expected b, got {full[1]}')
`
	err := rt.RunSource(context.Background(), script, map[string]any{"src": pyTestSource})
	require.NoError(t, err)
}

func TestRunSource_IdentifiersOutOfRange(t *testing.T) {
	rt := NewRuntime(nil, "")
	err := rt.RunSource(context.Background(), `identifiers(src, "python", 9, true)`, map[string]any{"src": pyTestSource})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestRunSource_OrderingFunctions(t *testing.T) {
	path := writePyFile(t)
	rt := NewRuntime(nil, "")

	script := `
order := topo_order(path)
assert(len(order) == 2, 'expected 2 entries')
assert(order[0] == 1 && order[1] == 0, 'b must come before a')

ctx := closure(path, 0)
assert(len(ctx) == 1 && ctx[0] == 1, 'a needs b')
assert(len(closure(path, 1)) == 0, 'b needs nothing')

groups := chunks(path, 0)
assert(len(groups) == 1, 'unbounded chunking yields one group')
assert(len(languages()) >= 10, 'expected built-in languages')
`
	err := rt.RunSource(context.Background(), script, map[string]any{"path": path})
	require.NoError(t, err)
}

func TestRunSource_EmitWritesOutput(t *testing.T) {
	var buf bytes.Buffer
	rt := NewRuntime(nil, "", WithOutput(&buf))

	err := rt.RunSource(context.Background(), `emit("units:", 2)`, nil)
	require.NoError(t, err)
	assert.Equal(t, "units: 2\n", buf.String())
}

func TestRunSource_LogUsesSlog(t *testing.T) {
	var buf bytes.Buffer
	rt := NewRuntime(nil, "", WithLogger(slogutil.NewLogger(&buf, slogutil.LevelFromString("info"))))

	err := rt.RunSource(context.Background(), `log.Info("hello from script")`, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `msg="hello from script"`)
	assert.Contains(t, buf.String(), "source=script")
}

func TestRunSource_CustomIdentifierKind(t *testing.T) {
	a := analysis.New(analysis.WithIdentifierKind("no_such_kind"))
	rt := NewRuntime(nil, "", WithAnalyzer(a))

	script := `
fa := analyze_src(src, "python")
assert(len(fa["units"][0]["dependencies"]) == 0, 'no identifiers means no dependencies')
`
	err := rt.RunSource(context.Background(), script, map[string]any{"src": pyTestSource})
	require.NoError(t, err)
}

// --- Store host functions ---

func TestRunSource_StoreFunctions(t *testing.T) {
	s := newIndexedStore(t)
	rt := NewRuntime(s, "")

	script := `
fs := files()
assert(len(fs) == 1, 'expected 1 file')
assert(fs[0]["unit_count"] == 2, 'expected 2 units')

us := units("mod.py")
assert(len(us) == 2, 'expected 2 stored units')
assert(us[1]["ordinal"] == 1, 'ordinal order')

ds := dependents("mod.py", 1)
assert(len(ds) == 1 && ds[0] == 0, 'a depends on b')

rows := db_query("SELECT COUNT(*) AS n FROM dependencies")
assert(rows[0]["n"] == 1, 'expected one edge')

assert(len(units("missing.py")) == 0, 'unknown file has no units')
`
	err := rt.RunSource(context.Background(), script, nil)
	require.NoError(t, err)
}

func TestRunSource_DBQueryRejectsWrites(t *testing.T) {
	s := newIndexedStore(t)
	rt := NewRuntime(s, "")

	err := rt.RunSource(context.Background(), `db_query("DELETE FROM units")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only SELECT")
}

func TestRunSource_DBQueryStaysReadOnly(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"trailing statement", "SELECT 1; DELETE FROM dependencies; DELETE FROM identifiers; DELETE FROM units"},
		{"data-modifying CTE", "WITH x AS (SELECT 1) DELETE FROM files"},
		{"lowercase insert after select", "select 1; insert into metadata (key, value) values ('k', 'v')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newIndexedStore(t)
			rt := NewRuntime(s, "")

			err := rt.RunSource(context.Background(), `db_query(q)`, map[string]any{"q": tt.query})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "readonly")

			var units, files int
			require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM units").Scan(&units))
			require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM files").Scan(&files))
			assert.Equal(t, 2, units)
			assert.Equal(t, 1, files)
		})
	}
}

func TestRunSource_DBQueryConnectionReusableForWrites(t *testing.T) {
	s := newIndexedStore(t)
	rt := NewRuntime(s, "")

	script := `
rows := db_query("SELECT COUNT(*) AS n FROM units")
assert(rows[0]["n"] == 2, 'expected 2 units')
`
	for i := 0; i < 3; i++ {
		require.NoError(t, rt.RunSource(context.Background(), script, nil))
	}
	require.NoError(t, s.SetMetadata("identifier_kind", "identifier"))
	v, err := s.GetMetadata("identifier_kind")
	require.NoError(t, err)
	assert.Equal(t, "identifier", v)
}

func TestRunSource_StoreGlobalsAbsentWithoutStore(t *testing.T) {
	rt := NewRuntime(nil, "")
	err := rt.RunSource(context.Background(), `files()`, nil)
	assert.Error(t, err)
}

// --- Script loading ---

func TestRunScript_LoadsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(`result := 1 + 1`), 0644))

	rt := NewRuntime(nil, dir)
	require.NoError(t, rt.RunScript(context.Background(), "test.risor", nil))
}

func TestRunScript_MissingFile(t *testing.T) {
	rt := NewRuntime(nil, t.TempDir())
	err := rt.RunScript(context.Background(), "nonexistent.risor", nil)
	assert.Error(t, err)
}

func TestLoadScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.risor")
	content := `x := 42`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rt := NewRuntime(nil, dir)
	got, err := rt.LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_FromFSFS(t *testing.T) {
	t.Parallel()

	content := `x := 42`
	mapFS := fstest.MapFS{
		ReportScript: &fstest.MapFile{Data: []byte(content)},
	}

	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript(ReportScript)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_FromFSFS_NotFound(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, "", WithRuntimeFS(fstest.MapFS{}))

	_, err := rt.LoadScript("nonexistent.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestLoadScript_FromFSFS_StripsLeadingSeparator(t *testing.T) {
	t.Parallel()

	content := `y := 99`
	mapFS := fstest.MapFS{
		"lib/helpers.risor": &fstest.MapFile{Data: []byte(content)},
	}

	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("/lib/helpers.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestRunScript_FromFSFS(t *testing.T) {
	mapFS := fstest.MapFS{
		"test.risor": &fstest.MapFile{Data: []byte(`result := 1 + 1`)},
	}

	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))
	require.NoError(t, rt.RunScript(context.Background(), "test.risor", nil))
}

// --- Importer wiring ---

func TestImport_FSImporter(t *testing.T) {
	// FSImporter resolves "lib_helpers" by trying name + ".risor" at the FS root.
	mapFS := fstest.MapFS{
		"lib_helpers.risor": &fstest.MapFile{Data: []byte(`
func greet(name) {
	return "hello " + name
}
`)},
	}

	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	script := `
import lib_helpers

msg := lib_helpers.greet("world")
assert(msg == "hello world", 'expected "hello world", got ' + msg)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestImport_LocalImporter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "math_utils.risor"), []byte(`
func double(x) {
	return x * 2
}
`), 0644))

	rt := NewRuntime(nil, dir)

	script := `
import math_utils

result := math_utils.double(21)
assert(result == 42, 'expected 42, got {result}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestImport_GlobalsAvailableInImportedModules(t *testing.T) {
	// Imported modules compile against the host globals and Risor's builtins,
	// so analyze_src, log and len must all resolve inside them.
	mapFS := fstest.MapFS{
		"helper.risor": &fstest.MapFile{Data: []byte(`
func count_units(src) {
	log.Info("counting")
	return len(analyze_src(src, "python")["units"])
}
`)},
	}

	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	script := `
import helper
n := helper.count_units(src)
assert(n == 2, 'expected 2 units, got {n}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, map[string]any{"src": pyTestSource}))
}

func TestImportGlobalNames_IncludesBuiltins(t *testing.T) {
	t.Parallel()

	names := importGlobalNames(map[string]any{"analyze_src": nil, "len": nil})
	assert.Contains(t, names, "analyze_src")
	assert.Contains(t, names, "len")
	assert.Contains(t, names, "all")
	assert.Contains(t, names, "strings")
	assert.True(t, sort.StringsAreSorted(names))

	seen := map[string]bool{}
	for _, n := range names {
		assert.False(t, seen[n], "duplicate global %q", n)
		seen[n] = true
	}
}

func TestNewRuntime_Defaults(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, "/some/dir")
	require.NotNil(t, rt)
	assert.Nil(t, rt.fsys)
	assert.Equal(t, "/some/dir", rt.scriptsDir)
	assert.NotNil(t, rt.analyzer)
	assert.NotNil(t, rt.logger)
	assert.Equal(t, os.Stdout, rt.out)
}
