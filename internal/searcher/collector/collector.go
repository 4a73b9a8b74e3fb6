// Package collector resolves a multi-clause query against one index
// generation. Each query passes once through four stages: scan (resolve
// every clause to trie words, in parallel), fetch (read and OR-join the
// postings of each clause), score (in parallel, skipping obsolete
// documents), and reduce (fold clause results in clause order).
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/postings"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/trie"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/metrics"
)

// Source is one index generation as seen by a query.
type Source interface {
	ID() string
	// OpenTrie opens a new reader on the trie of field. Fields without a
	// trie yield trie.Empty.
	OpenTrie(field string) (trie.Reader, error)
	ReadPostings(blocks []postings.Block) ([]postings.PostingList, error)
	// DocCount is the number of documents indexed with field.
	DocCount(field string) int
}

// ObsoleteChecker reports documents deleted or superseded after their
// generation was written.
type ObsoleteChecker interface {
	IsObsolete(generation string, documentID uint64) bool
}

// Config controls a Collector.
type Config struct {
	// Workers bounds the scan and score fan-out; zero means GOMAXPROCS.
	Workers  int
	Scorer   ranker.Factory
	Obsolete ObsoleteChecker
	Metrics  *metrics.Metrics
}

// Collector runs queries. It holds no per-query state and is safe for
// concurrent use.
type Collector struct {
	workers  int
	scorer   ranker.Factory
	obsolete ObsoleteChecker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(cfg Config) *Collector {
	c := &Collector{
		workers:  cfg.Workers,
		scorer:   cfg.Scorer,
		obsolete: cfg.Obsolete,
		metrics:  cfg.Metrics,
		logger:   slog.Default().With("component", "collector"),
	}
	if c.workers <= 0 {
		c.workers = runtime.GOMAXPROCS(0)
	}
	if c.scorer == nil {
		c.scorer = ranker.TFIDF
	}
	return c
}

// Collect evaluates clauses against src and returns the reduced scores,
// ordered by document id. A clause that matches nothing contributes an
// empty list; a malformed index file fails the whole collection.
func (c *Collector) Collect(ctx context.Context, src Source, clauses []SubQuery) ([]DocumentScore, error) {
	if len(clauses) == 0 {
		return nil, nil
	}
	contexts := make([]*QueryContext, len(clauses))
	for i, q := range clauses {
		contexts[i] = &QueryContext{SubQuery: q}
	}

	stages := []struct {
		name string
		run  func(context.Context, Source, []*QueryContext) error
	}{
		{"scan", c.scan},
		{"fetch", c.fetch},
		{"score", c.score},
	}
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		if err := stage.run(ctx, src, contexts); err != nil {
			return nil, fmt.Errorf("generation %s: %s: %w", src.ID(), stage.name, err)
		}
		c.observe(stage.name, start)
	}

	start := time.Now()
	result := Reduce(contexts)
	c.observe("reduce", start)

	c.logger.Debug("query collected",
		"generation", src.ID(),
		"clauses", len(clauses),
		"results", len(result),
	)
	return result, nil
}

func (c *Collector) observe(stage string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.CollectorStageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// scan resolves every clause to its trie words, one task per clause. Each
// task opens its own reader.
func (c *Collector) scan(_ context.Context, src Source, contexts []*QueryContext) error {
	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, qc := range contexts {
		g.Go(func() error {
			words, err := resolve(src, qc.SubQuery)
			if err != nil {
				return fmt.Errorf("resolving %s:%q: %w", qc.Field, qc.Value, err)
			}
			qc.Terms = make([]Term, len(words))
			for i, w := range words {
				qc.Terms[i] = Term{Field: qc.Field, Word: w}
			}
			return nil
		})
	}
	return g.Wait()
}

func resolve(src Source, q SubQuery) ([]trie.Word, error) {
	reader, err := src.OpenTrie(q.Field)
	if apperrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	switch {
	case q.Fuzzy:
		return reader.Near(q.Value, q.Edits)
	case q.Prefix:
		return reader.StartsWith(q.Value)
	default:
		w, ok, err := reader.HasWord(q.Value)
		if err != nil || !ok {
			return nil, err
		}
		return []trie.Word{w}, nil
	}
}

// fetch reads the postings of every resolved term and OR-joins them into
// one list per clause.
func (c *Collector) fetch(_ context.Context, src Source, contexts []*QueryContext) error {
	for _, qc := range contexts {
		blocks := make([]postings.Block, 0, len(qc.Terms))
		for _, t := range qc.Terms {
			if !t.Word.Postings.IsZero() {
				blocks = append(blocks, t.Word.Postings)
			}
		}
		if len(blocks) == 0 {
			continue
		}
		lists, err := src.ReadPostings(blocks)
		if err != nil {
			return fmt.Errorf("fetching postings for %s:%q: %w", qc.Field, qc.Value, err)
		}
		qc.Postings = postings.JoinAllOr(lists)
	}
	return nil
}

// score applies the scorer to each clause's postings, one task per clause.
func (c *Collector) score(_ context.Context, src Source, contexts []*QueryContext) error {
	generation := src.ID()
	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, qc := range contexts {
		g.Go(func() error {
			scorer := c.scorer(src.DocCount(qc.Field), len(qc.Postings))
			scores := make([]DocumentScore, 0, len(qc.Postings))
			for _, p := range qc.Postings {
				if c.obsolete != nil && c.obsolete.IsObsolete(generation, p.DocumentID) {
					continue
				}
				scores = append(scores, DocumentScore{
					DocumentID: p.DocumentID,
					Score:      scorer.Score(p.TermFrequency),
					Generation: generation,
				})
			}
			qc.Scores = scores
			return nil
		})
	}
	return g.Wait()
}
