package topdeps

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/jward/topdeps/internal/analysis"
	"github.com/jward/topdeps/internal/hashutil"
	"github.com/jward/topdeps/internal/store"
)

// workItem holds everything an analysis worker needs for one file.
type workItem struct {
	path    string
	content []byte
	hash    string
	file    *store.File
	batch   *store.BatchedStore

	// replace is set when the file was indexed before.
	replace bool
}

// indexFilesParallel indexes files using a three-phase parallel pipeline:
//
//	Phase A (serial):   Hash check, prepare file records.
//	Phase B (parallel): Parse and infer via worker pool into per-file batches.
//	Phase C (serial):   Commit batches to SQLite.
func (e *Engine) indexFilesParallel(ctx context.Context, paths []string) (int, []error) {
	var errs []error

	// ---- Phase A: Serial file preparation ----
	var items []*workItem
	for _, path := range paths {
		item, skip, err := e.prepareFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip {
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return 0, errs
	}

	// ---- Phase B: Parallel analysis ----
	numWorkers := e.workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = max(min(numWorkers, len(items)), 1)

	workCh := make(chan *workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		item *workItem
		err  error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Each item owns its BatchedStore, so workers never share writes.
			for item := range workCh {
				resultCh <- result{item: item, err: e.analyzeItem(ctx, item)}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: Serial commit ----
	indexed := 0
	for res := range resultCh {
		if res.err != nil {
			if analysis.IsSkippable(res.err) {
				e.logger.Debug("skipped", "path", res.item.path, "reason", res.err)
				continue
			}
			errs = append(errs, fmt.Errorf("index %s: %w", res.item.path, res.err))
			continue
		}
		if err := e.store.CommitBatch(res.item.batch); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", res.item.path, err))
			continue
		}
		indexed++
	}
	return indexed, errs
}

// prepareFile does Phase A work for a single file: hash check and file record.
// Returns (item, skip, error). skip=true means the file is unchanged or unsupported.
func (e *Engine) prepareFile(path string) (*workItem, bool, error) {
	lang, ok := e.analyzer.Supports(path)
	if !ok {
		return nil, true, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read file: %w", err)
	}
	if e.maxFileSize > 0 && int64(len(content)) > e.maxFileSize {
		e.logger.Debug("skipped", "path", path, "reason", analysis.ErrFileTooLarge, "size", len(content))
		return nil, true, nil
	}
	hash := hashutil.Analysis(content, e.analyzer.IdentifierKind())

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return nil, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash && !e.force {
		return nil, true, nil // unchanged
	}

	file := existing
	if file == nil {
		// Insert the file row now so batches carry a real file ID. The hash
		// stays empty until the batch commits, so a failed analysis is retried.
		file = &store.File{Path: path, Language: lang, LastIndexed: time.Now()}
		if _, err := e.store.InsertFile(file); err != nil {
			return nil, false, fmt.Errorf("insert file: %w", err)
		}
	}

	return &workItem{
		path:    path,
		content: content,
		hash:    hash,
		file:    file,
		batch:   store.NewBatchedStore(e.store),
		replace: existing != nil,
	}, false, nil
}

// analyzeItem runs the pipeline for one prepared file and buffers the result
// in its batch.
func (e *Engine) analyzeItem(ctx context.Context, item *workItem) error {
	fa, err := e.analyzer.AnalyzeSource(ctx, item.path, item.content)
	if err != nil {
		return err
	}
	if err := writeAnalysis(item.batch, item.file.ID, fa, e.analyzer.IdentifierKind()); err != nil {
		return fmt.Errorf("buffer analysis: %w", err)
	}

	item.file.Language = fa.Language
	item.file.Hash = item.hash
	item.file.UnitCount = len(fa.Units)
	item.file.LastIndexed = time.Now()
	item.batch.File = item.file
	item.batch.Replace = item.replace
	return nil
}
