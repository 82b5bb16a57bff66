// Package grammar is the language driver registry: it maps file extensions to
// tree-sitter grammars and turns source bytes into syntax trees.
package grammar

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/topdeps/internal/syntax"
)

var (
	// ErrUnsupportedLanguage means no grammar is registered for an extension.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrGrammarAcquisition matches every *AcquisitionError.
	ErrGrammarAcquisition = errors.New("grammar acquisition failed")

	// ErrMalformedTree means the parser produced no usable root.
	ErrMalformedTree = errors.New("malformed syntax tree")
)

// AcquisitionError reports a grammar that could not be prepared. It is
// distinct from a parse failure and is cached per grammar.
type AcquisitionError struct {
	Language string
	Err      error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("grammar %s: %v", e.Language, e.Err)
}

func (e *AcquisitionError) Unwrap() []error {
	return []error{ErrGrammarAcquisition, e.Err}
}

// Driver produces a syntax tree from source bytes.
type Driver interface {
	Parse(ctx context.Context, src []byte) (*syntax.Node, error)
}

// Loader prepares a tree-sitter language. It runs at most once per Grammar.
type Loader func() (*sitter.Language, error)

// Grammar is a registered language. It satisfies Driver.
type Grammar struct {
	Name       string
	Extensions []string

	load Loader
	once sync.Once
	lang *sitter.Language
	err  error
}

// Language returns the tree-sitter language, running the loader on first use.
func (g *Grammar) Language() (*sitter.Language, error) {
	g.once.Do(func() {
		lang, err := g.load()
		if err == nil && lang == nil {
			err = errors.New("loader returned no language")
		}
		if err != nil {
			g.err = &AcquisitionError{Language: g.Name, Err: err}
			return
		}
		g.lang = lang
	})
	return g.lang, g.err
}

// Parse parses src with a fresh parser. Parsers are not shared, so Parse is
// safe to call from several goroutines.
func (g *Grammar) Parse(ctx context.Context, src []byte) (*syntax.Node, error) {
	lang, err := g.Language()
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", g.Name, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("parse %s: %w", g.Name, ErrMalformedTree)
	}
	return syntax.FromSitter(root, src), nil
}

// Registry maps language names and extensions to grammars.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Grammar
	byExt  map[string]*Grammar
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Grammar),
		byExt:  make(map[string]*Grammar),
	}
}

// Register adds or replaces a language. Extensions may be given with or
// without the leading dot.
func (r *Registry) Register(name string, extensions []string, load Loader) *Grammar {
	g := &Grammar{Name: name, load: load}
	for _, ext := range extensions {
		g.Extensions = append(g.Extensions, NormalizeExtension(ext))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byName[name]; ok {
		for _, ext := range old.Extensions {
			if r.byExt[ext] == old {
				delete(r.byExt, ext)
			}
		}
	}
	r.byName[name] = g
	for _, ext := range g.Extensions {
		r.byExt[ext] = g
	}
	return g
}

// Lookup returns the grammar registered under name.
func (r *Registry) Lookup(name string) (*Grammar, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.byName[name]
	return g, ok
}

// ForExtension resolves an extension such as ".py", "py" or ".PY".
func (r *Registry) ForExtension(ext string) (*Grammar, error) {
	norm := NormalizeExtension(ext)
	r.mu.RLock()
	g, ok := r.byExt[norm]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: extension %q", ErrUnsupportedLanguage, strings.TrimPrefix(norm, "."))
	}
	return g, nil
}

// ForFile resolves the grammar for a path by its extension.
func (r *Registry) ForFile(path string) (*Grammar, error) {
	return r.ForExtension(filepath.Ext(path))
}

// Languages returns the registered language names, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeExtension lowercases ext and ensures a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// ParseTopLevel parses src and returns the root's immediate children, the
// candidate top-level units. On error nothing is returned.
func ParseTopLevel(ctx context.Context, d Driver, src []byte) ([]*syntax.Node, error) {
	root, err := d.Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, ErrMalformedTree
	}
	return root.Children, nil
}
