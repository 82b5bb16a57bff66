package topdeps

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jward/topdeps/internal/analysis"
	"github.com/jward/topdeps/internal/config"
	"github.com/jward/topdeps/internal/deps"
	"github.com/jward/topdeps/internal/runtime"
	"github.com/jward/topdeps/internal/slogutil"
	"github.com/jward/topdeps/internal/store"
)

// Engine orchestrates the topdeps pipeline: file discovery, change
// detection, analysis, persistence and query access.
type Engine struct {
	store    *store.Store
	analyzer *analysis.Analyzer
	runtime  *runtime.Runtime
	logger   *slog.Logger

	scriptsDir string
	scriptsFS  fs.FS
	output     io.Writer

	languages      []string // nil means all languages
	identifierKind string
	cacheSize      int
	maxFileSize    int64
	workers        int

	// useParallel enables the parallel analysis pipeline.
	useParallel bool
	// force reanalyzes files even when their hash is unchanged.
	force bool
}

// Option configures an Engine or, through NewAnalyzer, a standalone Analyzer.
type Option func(*Engine)

// WithLanguages restricts which languages the Engine will process.
func WithLanguages(languages ...string) Option {
	return func(e *Engine) {
		e.languages = languages
	}
}

// WithParallel controls parallel analysis. When true (default), IndexFiles
// uses a worker pool for parsing and inference, with a single writer
// committing batches to SQLite. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers sets the size of the file worker pool. Zero uses one worker
// per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithLogger sets the logger for the engine, its analyzer and scripts.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithIdentifierKind sets the syntax node kind treated as an identifier.
func WithIdentifierKind(kind string) Option {
	return func(e *Engine) {
		e.identifierKind = kind
	}
}

// WithCacheSize sets how many analyses the in-memory cache holds. Zero
// disables it.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

// WithMaxFileSize skips files larger than n bytes. Zero disables the limit.
func WithMaxFileSize(n int64) Option {
	return func(e *Engine) {
		e.maxFileSize = n
	}
}

// WithForce reanalyzes every file, ignoring stored hashes.
func WithForce(force bool) Option {
	return func(e *Engine) {
		e.force = force
	}
}

// WithScriptsDir sets the directory RunScript resolves relative paths and
// imports against.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
	}
}

// WithScriptsFS configures the Engine to load Risor scripts from the given
// filesystem instead of from disk. This enables embedding scripts via
// go:embed.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// WithScriptOutput sets where the emit script global writes.
func WithScriptOutput(w io.Writer) Option {
	return func(e *Engine) {
		e.output = w
	}
}

// WithConfig applies loaded settings. Options given after it override.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		if cfg == nil {
			return
		}
		if len(cfg.Languages) > 0 {
			e.languages = cfg.Languages
		}
		e.identifierKind = cfg.IdentifierKind
		e.maxFileSize = cfg.MaxFileSize
		e.workers = cfg.Workers
		e.cacheSize = cfg.CacheSize
	}
}

func newEngineConfig(opts []Option) *Engine {
	e := &Engine{
		identifierKind: deps.IdentifierKind,
		cacheSize:      256,
		useParallel:    true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slogutil.NewDiscardLogger()
	}
	return e
}

// buildAnalyzer creates the analysis pipeline. rowWorkers > 1 infers one
// file's dependency rows concurrently.
func (e *Engine) buildAnalyzer(rowWorkers int) *analysis.Analyzer {
	return analysis.New(
		analysis.WithIdentifierKind(e.identifierKind),
		analysis.WithLanguages(e.languages...),
		analysis.WithMaxFileSize(e.maxFileSize),
		analysis.WithCacheSize(e.cacheSize),
		analysis.WithWorkers(rowWorkers),
		analysis.WithLogger(e.logger),
	)
}

// NewAnalyzer creates a standalone Analyzer. Only the options that shape
// analysis apply. WithWorkers spreads one file's rows over goroutines here,
// where the Engine spreads files instead.
func NewAnalyzer(opts ...Option) *Analyzer {
	e := newEngineConfig(opts)
	return e.buildAnalyzer(e.workers)
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("topdeps: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("topdeps: migrate: %w", err)
	}

	e := newEngineConfig(opts)
	e.store = s
	e.analyzer = e.buildAnalyzer(1)

	rtOpts := []runtime.RuntimeOption{
		runtime.WithAnalyzer(e.analyzer),
		runtime.WithLogger(e.logger),
	}
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	if e.output != nil {
		rtOpts = append(rtOpts, runtime.WithOutput(e.output))
	}
	e.runtime = runtime.NewRuntime(s, e.scriptsDir, rtOpts...)

	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Analyzer returns the Engine's analysis pipeline.
func (e *Engine) Analyzer() *Analyzer {
	return e.analyzer
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// Analyze runs the pipeline on one file without touching the index.
func (e *Engine) Analyze(ctx context.Context, path string) (*FileAnalysis, error) {
	return e.analyzer.AnalyzeFile(ctx, path)
}

// RunScript executes a Risor script with the analysis and index globals,
// plus any extra globals.
func (e *Engine) RunScript(ctx context.Context, path string, extra map[string]any) error {
	return e.runtime.RunScript(ctx, path, extra)
}

// IndexFiles indexes the given file paths. When WithParallel is enabled,
// uses a worker pool for concurrent analysis with batched SQLite writes.
// Otherwise falls back to the serial path.
//
// For each file:
//  1. Detect language from extension; skip unsupported or filtered-out ones
//  2. Skip unchanged files (same content and identifier kind hash)
//  3. Parse, split into units and infer dependencies
//  4. Replace the file's stored units, identifiers and edges in one transaction
//
// Errors on individual files are collected and processing continues. Every
// call is recorded as a run.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	return e.indexFiles(ctx, "", paths)
}

func (e *Engine) indexFiles(ctx context.Context, root string, paths []string) error {
	run := &store.Run{ID: uuid.New().String(), Root: root, StartedAt: time.Now()}
	if err := e.store.InsertRun(run); err != nil {
		return fmt.Errorf("topdeps: %w", err)
	}
	e.logger.Info("indexing", "run", run.ID, "files", len(paths), "parallel", e.useParallel)

	var (
		indexed int
		errs    []error
	)
	if e.useParallel {
		indexed, errs = e.indexFilesParallel(ctx, paths)
	} else {
		indexed, errs = e.indexFilesSerial(ctx, paths)
	}

	if err := e.store.FinishRun(run.ID, time.Now(), indexed, len(errs)); err != nil {
		errs = append(errs, err)
	}
	if err := e.store.SetMetadata("identifier_kind", e.analyzer.IdentifierKind()); err != nil {
		errs = append(errs, err)
	}
	e.logger.Info("indexed", "run", run.ID, "changed", indexed, "errors", len(errs))

	if len(errs) > 0 {
		return fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

func (e *Engine) indexFilesSerial(ctx context.Context, paths []string) (int, []error) {
	var (
		indexed int
		errs    []error
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		item, skip, err := e.prepareFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
			continue
		}
		if skip {
			continue
		}
		if err := e.analyzeItem(ctx, item); err != nil {
			if analysis.IsSkippable(err) {
				e.logger.Debug("skipped", "path", path, "reason", err)
				continue
			}
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
			continue
		}
		if err := e.store.CommitBatch(item.batch); err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
			continue
		}
		indexed++
	}
	return indexed, errs
}

// writeAnalysis records a file's units, their distinct identifiers and the
// dependency edges into ds. Unit ordinals follow unit indices.
func writeAnalysis(ds store.DataStore, fileID int64, fa *analysis.FileAnalysis, kind string) error {
	ids := make([]int64, len(fa.Units))
	for i, u := range fa.Units {
		n := u.Node
		id, err := ds.InsertUnit(&store.Unit{
			FileID:    fileID,
			Ordinal:   i,
			Kind:      n.Kind,
			Text:      n.Text,
			StartLine: n.Start.Line,
			StartCol:  n.Start.Col,
			EndLine:   n.End.Line,
			EndCol:    n.End.Col,
		})
		if err != nil {
			return fmt.Errorf("unit %d: %w", i, err)
		}
		ids[i] = id

		outer := deps.IdentifierSetOf(n, kind, true)
		seen := make(map[string]bool)
		for name := range deps.Identifiers(n, kind, false) {
			if seen[name] {
				continue
			}
			seen[name] = true
			if _, err := ds.InsertIdentifier(&store.Identifier{UnitID: id, Name: name, Outer: outer.Has(name)}); err != nil {
				return fmt.Errorf("unit %d identifier %q: %w", i, name, err)
			}
		}
	}

	for i, rec := range fa.Records {
		for k, t := range rec.Targets {
			if _, err := ds.InsertDependency(&store.Dependency{
				UnitID:       ids[i],
				TargetUnitID: ids[t],
				Ordinal:      k,
			}); err != nil {
				return fmt.Errorf("unit %d dependency %d: %w", i, t, err)
			}
		}
	}
	return nil
}

// Stale reports whether the index was built with a different identifier
// kind than the Engine's. Stale files are reanalyzed by the next index run.
func (e *Engine) Stale() (bool, error) {
	stored, err := e.store.GetMetadata("identifier_kind")
	if err != nil {
		return false, fmt.Errorf("topdeps: %w", err)
	}
	return stored != "" && stored != e.analyzer.IdentifierKind(), nil
}
