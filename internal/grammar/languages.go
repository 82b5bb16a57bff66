package grammar

import (
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the process-wide registry of compiled-in grammars. Each
// grammar is loaded lazily on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		RegisterBuiltins(defaultRegistry)
	})
	return defaultRegistry
}

// RegisterBuiltins adds the tree-sitter grammars linked into the binary.
func RegisterBuiltins(r *Registry) {
	r.Register("go", []string{".go"}, static(golang.GetLanguage))
	r.Register("typescript", []string{".ts", ".tsx"}, static(ts.GetLanguage))
	r.Register("javascript", []string{".js", ".jsx", ".mjs"}, static(javascript.GetLanguage))
	r.Register("python", []string{".py"}, static(python.GetLanguage))
	r.Register("rust", []string{".rs"}, static(rust.GetLanguage))
	r.Register("c", []string{".c", ".h"}, static(c.GetLanguage))
	r.Register("cpp", []string{".cpp", ".cc", ".cxx", ".hpp"}, static(cpp.GetLanguage))
	r.Register("java", []string{".java"}, static(java.GetLanguage))
	r.Register("php", []string{".php"}, static(php.GetLanguage))
	r.Register("ruby", []string{".rb"}, static(ruby.GetLanguage))
}

func static(get func() *sitter.Language) Loader {
	return func() (*sitter.Language, error) {
		return get(), nil
	}
}
