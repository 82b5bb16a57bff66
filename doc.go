// Package topdeps infers which top-level units of a source file depend on
// which other units of the same file, using tree-sitter syntax trees.
//
// A unit is an immediate child of a file's root node: a function, a class, an
// import, a statement. Unit i depends on unit j when one of the identifiers
// anywhere inside i also appears among the outermost identifiers of j. The
// outermost identifiers of a unit are the shallowest level of identifier
// nodes found by a breadth-first walk, which for most declarations is the
// declared name. Supported languages: Go, TypeScript, JavaScript, Python,
// Rust, C, C++, Java, PHP and Ruby.
//
// # Analysis
//
// An [Analyzer] runs the pipeline on one file without persistence:
//
//	a := topdeps.NewAnalyzer()
//	fa, err := a.AnalyzeFile(ctx, "app.py")
//	for i, rec := range fa.Records {
//		fmt.Println(fa.Units[i].Text(), "->", rec.Targets)
//	}
//
// # Indexing
//
// An [Engine] persists analyses to SQLite so they can be queried later:
//
//	e, err := topdeps.New(".topdeps/index.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	err = e.IndexDirectory(ctx, "path/to/project")
//	deps, err := e.Query().DependenciesOf("path/to/project/app.py", 0)
//
// [Engine.IndexFiles] skips files whose content and identifier kind are
// unchanged since the last run. Changed files have their units, identifiers
// and dependency edges replaced in a single transaction.
//
// # Scripts
//
// [Engine.RunScript] executes Risor scripts with the analysis pipeline and the
// index exposed as host functions. See the internal/runtime package for the
// full set of globals.
package topdeps
