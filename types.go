package topdeps

import (
	"github.com/jward/topdeps/internal/analysis"
	"github.com/jward/topdeps/internal/deps"
	"github.com/jward/topdeps/internal/grammar"
	"github.com/jward/topdeps/internal/store"
)

// Public type aliases for internal types used in the Engine and QueryBuilder
// API. External consumers use these names; no conversion is needed.

type Analyzer = analysis.Analyzer
type FileAnalysis = analysis.FileAnalysis
type Unit = deps.Unit
type Record = deps.Record

type Store = store.Store
type File = store.File
type StoredUnit = store.Unit
type Identifier = store.Identifier
type Run = store.Run

type AcquisitionError = grammar.AcquisitionError

var (
	ErrUnsupportedLanguage = grammar.ErrUnsupportedLanguage
	ErrGrammarAcquisition  = grammar.ErrGrammarAcquisition
	ErrMalformedTree       = grammar.ErrMalformedTree
	ErrFileTooLarge        = analysis.ErrFileTooLarge
)
