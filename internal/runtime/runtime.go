package runtime

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/topdeps/internal/analysis"
	"github.com/jward/topdeps/internal/slogutil"
	"github.com/jward/topdeps/internal/store"
)

// ReportScript is the built-in script run when no script is named.
const ReportScript = "report.risor"

// Runtime embeds a Risor VM and exposes the analysis pipeline and, when a
// Store is attached, the indexed data to scripts.
type Runtime struct {
	store      *store.Store
	analyzer   *analysis.Analyzer
	scriptsDir string
	fsys       fs.FS
	logger     *slog.Logger
	out        io.Writer
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithAnalyzer sets the pipeline behind analyze and friends.
func WithAnalyzer(a *analysis.Analyzer) RuntimeOption {
	return func(r *Runtime) {
		r.analyzer = a
	}
}

// WithLogger routes the script log global to l.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithOutput sets where emit writes. Defaults to os.Stdout.
func WithOutput(w io.Writer) RuntimeOption {
	return func(r *Runtime) {
		r.out = w
	}
}

// NewRuntime creates a Runtime wired to the given Store and scripts directory.
// The Store may be nil, in which case only the analysis globals are exposed.
func NewRuntime(s *store.Store, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		store:      s,
		scriptsDir: scriptsDir,
		out:        os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.analyzer == nil {
		r.analyzer = analysis.New()
	}
	if r.logger == nil {
		r.logger = slogutil.NewDiscardLogger()
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals. Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	r.logger.Debug("running script", "script", label)
	_, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := importGlobalNames(globals)

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// importGlobalNames lists the names an imported module may reference: Risor's
// builtins and default modules plus the host globals, sorted and deduplicated.
func importGlobalNames(globals map[string]any) []string {
	return risor.NewConfig(risor.WithGlobals(globals)).GlobalNames()
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on the embedded filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		// "/report.risor" -> "report.risor"
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"analyze":     makeAnalyzeFn(r.analyzer),
		"analyze_src": makeAnalyzeSrcFn(r.analyzer),
		"identifiers": makeIdentifiersFn(r.analyzer),
		"topo_order":  makeTopoOrderFn(r.analyzer),
		"closure":     makeClosureFn(r.analyzer),
		"chunks":      makeChunksFn(r.analyzer),
		"languages":   makeLanguagesFn(r.analyzer),
		"emit":        makeEmitFn(r.out),
		"log":         mustProxy(&logObject{logger: r.logger}),
	}

	if r.store != nil {
		globals["files"] = makeFilesFn(r.store)
		globals["units"] = makeUnitsFn(r.store)
		globals["dependents"] = makeDependentsFn(r.store)
		globals["db_query"] = makeDBQueryFn(r.store)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
