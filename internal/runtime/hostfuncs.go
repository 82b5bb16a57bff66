package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/risor-io/risor/object"

	"github.com/jward/topdeps/internal/analysis"
	"github.com/jward/topdeps/internal/deps"
	"github.com/jward/topdeps/internal/order"
)

// makeAnalyzeFn creates the "analyze" host function.
//
// analyze(path) → {path, language, hash, units: [...]}
func makeAnalyzeFn(a *analysis.Analyzer) *object.Builtin {
	return object.NewBuiltin("analyze", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("analyze", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("analyze: path: %v", err)
		}
		fa, err := a.AnalyzeFile(ctx, path)
		if err != nil {
			return object.Errorf("analyze: %v", err)
		}
		return analysisToMap(fa)
	})
}

// makeAnalyzeSrcFn creates "analyze_src", which takes source text directly.
//
// analyze_src(source, language) → same shape as analyze
func makeAnalyzeSrcFn(a *analysis.Analyzer) *object.Builtin {
	return object.NewBuiltin("analyze_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("analyze_src", 2, len(args))
		}
		src, lang, errObj := sourceAndLanguage("analyze_src", args)
		if errObj != nil {
			return errObj
		}
		fa, err := a.AnalyzeLanguage(ctx, lang, []byte(src))
		if err != nil {
			return object.Errorf("analyze_src: %v", err)
		}
		return analysisToMap(fa)
	})
}

// makeIdentifiersFn creates the "identifiers" host function.
//
// identifiers(source, language, index, outer_only) → [string]
func makeIdentifiersFn(a *analysis.Analyzer) *object.Builtin {
	return object.NewBuiltin("identifiers", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 4 {
			return object.NewArgsError("identifiers", 4, len(args))
		}
		src, lang, errObj := sourceAndLanguage("identifiers", args)
		if errObj != nil {
			return errObj
		}
		index, err := toInt64(args[2])
		if err != nil {
			return object.Errorf("identifiers: index: %v", err)
		}
		outerOnly, err := toBool(args[3])
		if err != nil {
			return object.Errorf("identifiers: outer_only: %v", err)
		}

		fa, err := a.AnalyzeLanguage(ctx, lang, []byte(src))
		if err != nil {
			return object.Errorf("identifiers: %v", err)
		}
		if index < 0 || int(index) >= len(fa.Units) {
			return object.Errorf("identifiers: index %d out of range (%d units)", index, len(fa.Units))
		}
		names := deps.CollectIdentifiers(fa.Units[index].Node, a.IdentifierKind(), outerOnly)
		return stringsToList(names)
	})
}

// makeTopoOrderFn creates "topo_order", listing a file's unit indices with
// dependencies before dependents.
//
// topo_order(path) → [int]
func makeTopoOrderFn(a *analysis.Analyzer) *object.Builtin {
	return object.NewBuiltin("topo_order", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("topo_order", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("topo_order: path: %v", err)
		}
		fa, err := a.AnalyzeFile(ctx, path)
		if err != nil {
			return object.Errorf("topo_order: %v", err)
		}
		return intsToList(order.Topological(fa.Records))
	})
}

// closure(path, index) → [int]
func makeClosureFn(a *analysis.Analyzer) *object.Builtin {
	return object.NewBuiltin("closure", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("closure", 2, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("closure: path: %v", err)
		}
		index, err := toInt64(args[1])
		if err != nil {
			return object.Errorf("closure: index: %v", err)
		}
		fa, err := a.AnalyzeFile(ctx, path)
		if err != nil {
			return object.Errorf("closure: %v", err)
		}
		if index < 0 || int(index) >= len(fa.Units) {
			return object.Errorf("closure: index %d out of range (%d units)", index, len(fa.Units))
		}
		return intsToList(order.Closure(fa.Records, int(index)))
	})
}

// chunks(path, max_bytes) → [[int]]
func makeChunksFn(a *analysis.Analyzer) *object.Builtin {
	return object.NewBuiltin("chunks", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("chunks", 2, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("chunks: path: %v", err)
		}
		maxBytes, err := toInt64(args[1])
		if err != nil {
			return object.Errorf("chunks: max_bytes: %v", err)
		}
		fa, err := a.AnalyzeFile(ctx, path)
		if err != nil {
			return object.Errorf("chunks: %v", err)
		}
		groups := order.Chunks(fa.Texts(), fa.Records, int(maxBytes))
		items := make([]object.Object, len(groups))
		for i, g := range groups {
			items[i] = intsToList(g)
		}
		return object.NewList(items)
	})
}

// languages() → [string]
func makeLanguagesFn(a *analysis.Analyzer) *object.Builtin {
	return object.NewBuiltin("languages", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("languages", 0, len(args))
		}
		return stringsToList(a.Registry().Languages())
	})
}

// makeEmitFn creates "emit", which writes its arguments as one line to the
// runtime's output.
func makeEmitFn(w io.Writer) *object.Builtin {
	return object.NewBuiltin("emit", func(ctx context.Context, args ...object.Object) object.Object {
		parts := make([]any, len(args))
		for i, arg := range args {
			if s, ok := arg.(*object.String); ok {
				parts[i] = s.Value()
			} else {
				parts[i] = arg.Inspect()
			}
		}
		if _, err := fmt.Fprintln(w, parts...); err != nil {
			return object.Errorf("emit: %v", err)
		}
		return object.Nil
	})
}

func sourceAndLanguage(name string, args []object.Object) (string, string, object.Object) {
	src, err := toString(args[0])
	if err != nil {
		return "", "", object.Errorf("%s: source: %v", name, err)
	}
	lang, err := toString(args[1])
	if err != nil {
		return "", "", object.Errorf("%s: language: %v", name, err)
	}
	return src, lang, nil
}

// analysisToMap converts a FileAnalysis into the map shape scripts consume.
func analysisToMap(fa *analysis.FileAnalysis) object.Object {
	units := make([]object.Object, len(fa.Units))
	for i, u := range fa.Units {
		rec := fa.Records[i]
		units[i] = object.NewMap(map[string]object.Object{
			"index":        object.NewInt(int64(u.Index)),
			"kind":         object.NewString(u.Node.Kind),
			"text":         object.NewString(u.Text()),
			"start_line":   object.NewInt(int64(u.Node.Start.Line)),
			"end_line":     object.NewInt(int64(u.Node.End.Line)),
			"dependencies": stringsToList(rec.Dependencies),
			"targets":      intsToList(rec.Targets),
		})
	}
	return object.NewMap(map[string]object.Object{
		"path":     object.NewString(fa.Path),
		"language": object.NewString(fa.Language),
		"hash":     object.NewString(fa.Hash),
		"units":    object.NewList(units),
	})
}

// logObject provides log.Debug/Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Debug(msg string) { l.logger.Debug(msg, "source", "script") }

func (l *logObject) Info(msg string) { l.logger.Info(msg, "source", "script") }

func (l *logObject) Warn(msg string) { l.logger.Warn(msg, "source", "script") }

func (l *logObject) Error(msg string) { l.logger.Error(msg, "source", "script") }
