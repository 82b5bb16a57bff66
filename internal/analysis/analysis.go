// Package analysis runs the per-file pipeline: grammar lookup, parse,
// top-level unit split and dependency inference. Results are cached by
// language, identifier kind and content hash.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jward/topdeps/internal/deps"
	"github.com/jward/topdeps/internal/grammar"
	"github.com/jward/topdeps/internal/hashutil"
	"github.com/jward/topdeps/internal/slogutil"
)

// ErrFileTooLarge is returned for files above the configured size limit.
var ErrFileTooLarge = errors.New("file too large")

// FileAnalysis is the result for one file. Units and Records are aligned by
// index. Cached results share their slices, so callers must not modify them.
type FileAnalysis struct {
	Path     string
	Language string
	Hash     string
	Units    []deps.Unit
	Records  []deps.Record
}

// Texts returns each unit's raw text in index order.
func (fa *FileAnalysis) Texts() []string {
	texts := make([]string, len(fa.Units))
	for i, u := range fa.Units {
		texts[i] = u.Text()
	}
	return texts
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	registry    *grammar.Registry
	kind        string
	languages   map[string]bool // nil means all languages
	workers     int
	maxFileSize int64
	logger      *slog.Logger
	cache       *lru.Cache[string, *FileAnalysis]
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRegistry replaces the built-in grammar registry.
func WithRegistry(r *grammar.Registry) Option {
	return func(a *Analyzer) { a.registry = r }
}

// WithIdentifierKind sets the node kind treated as an identifier.
func WithIdentifierKind(kind string) Option {
	return func(a *Analyzer) {
		if kind != "" {
			a.kind = kind
		}
	}
}

// WithLanguages restricts which languages the Analyzer will process.
func WithLanguages(languages ...string) Option {
	return func(a *Analyzer) {
		if len(languages) == 0 {
			a.languages = nil
			return
		}
		a.languages = make(map[string]bool, len(languages))
		for _, lang := range languages {
			a.languages[lang] = true
		}
	}
}

// WithWorkers sets the number of goroutines used to infer one file's
// dependency rows. Values below 2 infer serially.
func WithWorkers(n int) Option {
	return func(a *Analyzer) { a.workers = n }
}

// WithMaxFileSize skips files larger than n bytes. Zero disables the limit.
func WithMaxFileSize(n int64) Option {
	return func(a *Analyzer) { a.maxFileSize = n }
}

// WithLogger sets the logger. Nil restores the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithCacheSize sets the number of cached results. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(a *Analyzer) {
		a.cache = nil
		if n > 0 {
			a.cache, _ = lru.New[string, *FileAnalysis](n)
		}
	}
}

const defaultCacheSize = 256

// New creates an Analyzer over the default grammar registry.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		registry: grammar.Default(),
		kind:     deps.IdentifierKind,
	}
	WithCacheSize(defaultCacheSize)(a)
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slogutil.NewDiscardLogger()
	}
	return a
}

// IdentifierKind returns the configured identifier node kind.
func (a *Analyzer) IdentifierKind() string { return a.kind }

// Registry returns the grammar registry in use.
func (a *Analyzer) Registry() *grammar.Registry { return a.registry }

// Supports reports the language for path, or false when its extension is
// unknown or its language is filtered out.
func (a *Analyzer) Supports(path string) (string, bool) {
	g, err := a.registry.ForFile(path)
	if err != nil {
		return "", false
	}
	if a.languages != nil && !a.languages[g.Name] {
		return "", false
	}
	return g.Name, true
}

// AnalyzeFile reads and analyzes the file at path.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*FileAnalysis, error) {
	g, err := a.grammarFor(path)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", path, err)
	}
	if a.maxFileSize > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("analyze %s: %w", path, err)
		}
		if info.Size() > a.maxFileSize {
			return nil, fmt.Errorf("analyze %s: %w (%d > %d bytes)", path, ErrFileTooLarge, info.Size(), a.maxFileSize)
		}
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: read file: %w", path, err)
	}
	return a.run(ctx, g, path, src)
}

// AnalyzeSource analyzes src, choosing the grammar from name's extension.
func (a *Analyzer) AnalyzeSource(ctx context.Context, name string, src []byte) (*FileAnalysis, error) {
	g, err := a.grammarFor(name)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", name, err)
	}
	return a.run(ctx, g, name, src)
}

// AnalyzeLanguage analyzes src with the named language.
func (a *Analyzer) AnalyzeLanguage(ctx context.Context, language string, src []byte) (*FileAnalysis, error) {
	g, ok := a.registry.Lookup(language)
	if !ok {
		return nil, fmt.Errorf("analyze %s source: %w: language %q", language, grammar.ErrUnsupportedLanguage, language)
	}
	return a.run(ctx, g, "", src)
}

func (a *Analyzer) grammarFor(path string) (*grammar.Grammar, error) {
	g, err := a.registry.ForFile(path)
	if err != nil {
		return nil, err
	}
	if a.languages != nil && !a.languages[g.Name] {
		return nil, fmt.Errorf("%w: language %q is disabled", grammar.ErrUnsupportedLanguage, g.Name)
	}
	return g, nil
}

func (a *Analyzer) run(ctx context.Context, g *grammar.Grammar, path string, src []byte) (*FileAnalysis, error) {
	hash := hashutil.Content(src)
	key := g.Name + "\x00" + a.kind + "\x00" + hash
	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			a.logger.Debug("analysis cache hit", "path", path, "language", g.Name)
			out := *cached
			out.Path = path
			return &out, nil
		}
	}

	roots, err := grammar.ParseTopLevel(ctx, g, src)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", label(path, g), err)
	}
	units := deps.UnitsOf(roots)

	var records []deps.Record
	if a.workers > 1 {
		records, err = deps.InferParallel(ctx, units, a.kind, a.workers)
		if err != nil {
			return nil, fmt.Errorf("analyze %s: %w", label(path, g), err)
		}
	} else {
		records = deps.Infer(units, a.kind)
	}

	fa := &FileAnalysis{
		Path:     path,
		Language: g.Name,
		Hash:     hash,
		Units:    units,
		Records:  records,
	}
	if a.cache != nil {
		a.cache.Add(key, fa)
	}
	a.logger.Debug("analyzed", "path", path, "language", g.Name, "units", len(units))
	return fa, nil
}

func label(path string, g *grammar.Grammar) string {
	if path == "" {
		return g.Name + " source"
	}
	return path
}

// IsSkippable reports whether err means the file was not analyzable for a
// reason that should not count as an indexing failure.
func IsSkippable(err error) bool {
	return errors.Is(err, grammar.ErrUnsupportedLanguage) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, fs.ErrNotExist)
}
