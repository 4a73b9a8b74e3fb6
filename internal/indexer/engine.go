// Package indexer owns the index of a data directory: the builder of the
// next generation, the opened generations, and the obsolete sets that hide
// deleted and reindexed documents from queries.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hashicorp/go-multierror"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/docstatus"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/metrics"
)

// Options are the engine settings that do not come from IndexerConfig.
type Options struct {
	// PostingsCacheSize bounds the decoded posting lists cached per generation.
	PostingsCacheSize int
	// ReadOnly engines load and refresh generations written by another
	// process and never write to the data directory.
	ReadOnly bool
	Metrics  *metrics.Metrics
	// OnFlush is called after every successful flush.
	OnFlush func(FlushResult)
	// OnDelete is called after a delete made a flushed document obsolete.
	OnDelete func(DeleteResult)
}

// FlushResult describes a generation written by Flush.
type FlushResult struct {
	Generation string `json:"generation"`
	Docs       int    `json:"docs"`
	Obsoleted  int    `json:"obsoleted"`
}

// DeleteResult describes a delete that changed the obsolete sets of
// flushed generations.
type DeleteResult struct {
	DocumentID  uint64   `json:"document_id"`
	Generations []string `json:"generations"`
}

// Stats is a point-in-time summary of the engine.
type Stats struct {
	Generations  int `json:"generations"`
	Docs         int `json:"docs"`
	ObsoleteDocs int `json:"obsolete_docs"`
	BufferedDocs int `json:"buffered_docs"`
}

type Engine struct {
	cfg      config.IndexerConfig
	opts     Options
	analyzer *tokenizer.Analyzer
	builder  *index.Builder
	writer   *segment.Writer
	status   *docstatus.Store
	logger   *slog.Logger

	// writeMu serializes document writes and flushes.
	writeMu sync.Mutex

	genMu       sync.RWMutex
	generations []*segment.Generation
}

func NewEngine(cfg config.IndexerConfig, opts Options) (*Engine, error) {
	encoding, err := segment.ParseEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	if !opts.ReadOnly {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating index data directory: %w", err)
		}
		if err := segment.RemoveIncomplete(cfg.DataDir); err != nil {
			return nil, err
		}
	}
	e := &Engine{
		cfg:  cfg,
		opts: opts,
		analyzer: tokenizer.New(tokenizer.Options{
			Stem:            cfg.Analyzer.Stem,
			RemoveStopWords: cfg.Analyzer.RemoveStopWords,
			MinTokenLength:  cfg.Analyzer.MinTokenLength,
		}),
		builder: index.NewBuilder(),
		writer:  segment.NewWriter(cfg.DataDir, encoding),
		status:  docstatus.NewStore(cfg.DataDir),
		logger:  slog.Default().With("component", "indexer"),
	}
	if err := e.loadGenerations(); err != nil {
		return nil, fmt.Errorf("loading existing generations: %w", err)
	}
	if !opts.ReadOnly {
		if err := e.reconcile(); err != nil {
			return nil, fmt.Errorf("reconciling obsolete documents: %w", err)
		}
	}
	return e, nil
}

// Analyzer returns the analyzer applied to indexed text. Query values must
// go through the same analyzer.
func (e *Engine) Analyzer() *tokenizer.Analyzer { return e.analyzer }

// Status returns the obsolete-document store of the loaded generations.
func (e *Engine) Status() *docstatus.Store { return e.status }

// Generations returns the loaded generations, oldest first.
func (e *Engine) Generations() []*segment.Generation {
	e.genMu.RLock()
	defer e.genMu.RUnlock()
	gens := make([]*segment.Generation, len(e.generations))
	copy(gens, e.generations)
	return gens
}

func (e *Engine) checkWritable() error {
	if e.opts.ReadOnly {
		return fmt.Errorf("%w: engine is read-only", apperrors.ErrInvalidInput)
	}
	return nil
}

// IndexDocument analyzes and buffers a document. Reindexing an id that is
// already buffered flushes the buffer first; older versions of the document
// become obsolete when the buffer is flushed.
func (e *Engine) IndexDocument(docID uint64, fields map[string]string) error {
	if err := e.checkWritable(); err != nil {
		return err
	}
	for name := range fields {
		if !index.ValidFieldName(name) {
			return fmt.Errorf("%w: field name %q", apperrors.ErrInvalidInput, name)
		}
	}
	tokens := e.analyzer.TokenizeDocument(fields)

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if e.builder.Contains(docID) {
		if err := e.flushLocked(); err != nil {
			return fmt.Errorf("flushing before reindex of %d: %w", docID, err)
		}
	}
	if err := e.builder.AddDocument(docID, tokens); err != nil {
		return err
	}
	if e.opts.Metrics != nil {
		e.opts.Metrics.DocsIndexedTotal.Inc()
	}
	e.logger.Debug("document buffered",
		"doc_id", docID,
		"token_count", len(tokens),
		"buffered", e.builder.DocCount(),
	)
	if reason, full := e.bufferFull(); full {
		e.logger.Info("buffer full, flushing",
			"reason", reason,
			"buffered", e.builder.DocCount(),
			"buffered_bytes", e.builder.Size(),
		)
		if err := e.flushLocked(); err != nil {
			return fmt.Errorf("flushing buffered documents: %w", err)
		}
	}
	return nil
}

func (e *Engine) bufferFull() (string, bool) {
	if e.cfg.MaxBufferedDocs > 0 && e.builder.DocCount() >= e.cfg.MaxBufferedDocs {
		return "max_docs", true
	}
	if e.cfg.MaxBufferedBytes > 0 && e.builder.Size() >= e.cfg.MaxBufferedBytes {
		return "max_bytes", true
	}
	return "", false
}

// Delete makes every stored version of docID obsolete. A buffered version
// is flushed first. It reports whether any version was found.
func (e *Engine) Delete(docID uint64) (bool, error) {
	if err := e.checkWritable(); err != nil {
		return false, err
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if e.builder.Contains(docID) {
		if err := e.flushLocked(); err != nil {
			return false, fmt.Errorf("flushing before delete of %d: %w", docID, err)
		}
	}
	ids := roaring64.BitmapOf(docID)
	var touched []string
	for _, g := range e.Generations() {
		if !g.Contains(docID) {
			continue
		}
		if _, err := e.status.MarkObsolete(g.ID(), ids); err != nil {
			return false, fmt.Errorf("generation %s: %w", g.ID(), err)
		}
		touched = append(touched, g.ID())
	}
	found := len(touched) > 0
	if found && e.opts.Metrics != nil {
		e.opts.Metrics.DocsDeletedTotal.Inc()
	}
	e.logger.Debug("document deleted", "doc_id", docID, "found", found)
	if found && e.opts.OnDelete != nil {
		e.opts.OnDelete(DeleteResult{DocumentID: docID, Generations: touched})
	}
	return found, nil
}

// Flush writes the buffered documents as a new generation.
func (e *Engine) Flush() error {
	if e.opts.ReadOnly {
		return nil
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.flushLocked()
}

func (e *Engine) flushLocked() error {
	snap := e.builder.Seal()
	if snap == nil {
		return nil
	}
	manifest, err := e.writer.Write(snap)
	if err != nil {
		e.countFlush("error")
		return fmt.Errorf("writing generation of %d documents: %w", snap.DocCount(), err)
	}
	gen, err := segment.Open(filepath.Join(e.cfg.DataDir, manifest.ID), e.opts.PostingsCacheSize)
	if err != nil {
		e.countFlush("error")
		return fmt.Errorf("opening new generation: %w", err)
	}
	if err := e.status.Load(gen.ID()); err != nil {
		gen.Close()
		e.countFlush("error")
		return err
	}

	obsoleted := 0
	for _, older := range e.Generations() {
		n, err := e.status.MarkObsolete(older.ID(), roaring64.And(older.Documents(), snap.Docs))
		if err != nil {
			gen.Close()
			e.countFlush("error")
			return fmt.Errorf("generation %s: %w", older.ID(), err)
		}
		obsoleted += n
	}

	e.genMu.Lock()
	e.generations = append(e.generations, gen)
	loaded := len(e.generations)
	e.genMu.Unlock()
	e.countFlush("ok")
	if e.opts.Metrics != nil {
		e.opts.Metrics.GenerationsLoaded.Set(float64(loaded))
	}

	e.logger.Info("generation flushed",
		"generation", manifest.ID,
		"docs", manifest.Docs,
		"fields", len(manifest.Fields),
		"obsoleted", obsoleted,
		"active_generations", loaded,
	)
	if e.opts.OnFlush != nil {
		e.opts.OnFlush(FlushResult{Generation: manifest.ID, Docs: manifest.Docs, Obsoleted: obsoleted})
	}
	return nil
}

func (e *Engine) countFlush(status string) {
	if e.opts.Metrics != nil {
		e.opts.Metrics.GenerationFlushesTotal.WithLabelValues(status).Inc()
	}
}

// Refresh opens generations that appeared in the data directory since the
// last load and rereads the obsolete sets of all loaded generations. It is
// how a read-only engine follows a writer in another process.
func (e *Engine) Refresh() error {
	if err := e.loadGenerations(); err != nil {
		return err
	}
	var result *multierror.Error
	for _, g := range e.Generations() {
		if err := e.status.Load(g.ID()); err != nil {
			result = multierror.Append(result, fmt.Errorf("generation %s: %w", g.ID(), err))
		}
	}
	return result.ErrorOrNil()
}

// Stats summarizes the engine.
func (e *Engine) Stats() Stats {
	s := Stats{BufferedDocs: e.builder.DocCount()}
	for _, g := range e.Generations() {
		s.Generations++
		s.Docs += g.TotalDocs()
		s.ObsoleteDocs += e.status.Count(g.ID())
	}
	return s
}

// StartFlushLoop flushes buffered documents every FlushInterval until ctx
// is cancelled, then flushes one last time.
func (e *Engine) StartFlushLoop(ctx context.Context) {
	if e.opts.ReadOnly || e.cfg.FlushInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if e.builder.DocCount() > 0 {
					if err := e.Flush(); err != nil {
						e.logger.Error("periodic flush failed", "error", err)
					}
				}
			}
		}
	}()
}

// StartRefreshLoop calls Refresh every interval until ctx is cancelled.
func (e *Engine) StartRefreshLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.Refresh(); err != nil {
					e.logger.Error("refresh failed", "error", err)
				}
			}
		}
	}()
}

// Close flushes buffered documents and closes every generation.
func (e *Engine) Close() error {
	var result *multierror.Error
	if err := e.Flush(); err != nil {
		result = multierror.Append(result, fmt.Errorf("final flush: %w", err))
	}
	e.genMu.Lock()
	defer e.genMu.Unlock()
	for _, g := range e.generations {
		if err := g.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing generation %s: %w", g.ID(), err))
		}
		e.status.Forget(g.ID())
	}
	e.generations = nil
	return result.ErrorOrNil()
}

// loadGenerations opens every complete generation not loaded yet. A
// generation that fails to open is logged and skipped.
func (e *Engine) loadGenerations() error {
	ids, err := segment.List(e.cfg.DataDir)
	if err != nil {
		return err
	}
	e.genMu.RLock()
	loaded := make(map[string]struct{}, len(e.generations))
	for _, g := range e.generations {
		loaded[g.ID()] = struct{}{}
	}
	e.genMu.RUnlock()

	var opened []*segment.Generation
	for _, id := range ids {
		if _, ok := loaded[id]; ok {
			continue
		}
		g, err := segment.Open(filepath.Join(e.cfg.DataDir, id), e.opts.PostingsCacheSize)
		if err != nil {
			e.logger.Error("failed to open generation, skipping",
				"generation", id,
				"error", err,
			)
			continue
		}
		if err := e.status.Load(id); err != nil {
			e.logger.Error("failed to load obsolete set, skipping generation",
				"generation", id,
				"error", err,
			)
			g.Close()
			continue
		}
		opened = append(opened, g)
		e.logger.Info("loaded generation",
			"generation", id,
			"docs", g.TotalDocs(),
			"fields", len(g.Manifest().Fields),
		)
	}
	if len(opened) == 0 {
		return nil
	}
	e.genMu.Lock()
	e.generations = append(e.generations, opened...)
	loadedCount := len(e.generations)
	e.genMu.Unlock()
	if e.opts.Metrics != nil {
		e.opts.Metrics.GenerationsLoaded.Set(float64(loadedCount))
	}
	e.logger.Info("generation recovery complete", "generations_loaded", loadedCount)
	return nil
}

// reconcile makes every document obsolete in all generations older than
// the newest one holding it. Flush does this as it goes; reconcile repairs
// the sets after a crash between writing a generation and updating them.
func (e *Engine) reconcile() error {
	gens := e.Generations()
	newer := roaring64.New()
	for i := len(gens) - 1; i >= 0; i-- {
		docs := gens[i].Documents()
		if n, err := e.status.MarkObsolete(gens[i].ID(), roaring64.And(docs, newer)); err != nil {
			return fmt.Errorf("generation %s: %w", gens[i].ID(), err)
		} else if n > 0 {
			e.logger.Warn("repaired obsolete set", "generation", gens[i].ID(), "obsoleted", n)
		}
		newer.Or(docs)
	}
	return nil
}
