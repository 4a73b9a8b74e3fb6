// Package executor runs parsed queries over every loaded index generation
// and merges the per-generation results.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/searcher/collector"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/metrics"
)

// SearchResult is the answer to one query.
type SearchResult struct {
	Query       string             `json:"query"`
	Normalized  string             `json:"normalized"`
	TotalHits   int                `json:"total_hits"`
	Results     []ranker.ScoredDoc `json:"results"`
	Generations int                `json:"generations"`
	Failed      int                `json:"failed_generations,omitempty"`
}

// Catalog provides the generations a query runs over.
type Catalog interface {
	Generations() []*segment.Generation
}

type Executor struct {
	catalog   Catalog
	collector *collector.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(catalog Catalog, c *collector.Collector, m *metrics.Metrics) *Executor {
	return &Executor{
		catalog:   catalog,
		collector: c,
		metrics:   m,
		logger:    slog.Default().With("component", "query-executor"),
	}
}

type generationResult struct {
	id     string
	scores []collector.DocumentScore
	err    error
}

// Execute runs q over every generation and returns the limit best hits. A
// generation that fails is logged and left out; the query fails only when
// every generation fails.
func (e *Executor) Execute(ctx context.Context, q *parser.Query, limit int) (*SearchResult, error) {
	result := &SearchResult{
		Query:      q.Raw,
		Normalized: q.Normalized(),
		Results:    []ranker.ScoredDoc{},
	}
	if len(q.Clauses) == 0 {
		return result, nil
	}
	if e.metrics != nil {
		e.metrics.QueryClauses.Observe(float64(len(q.Clauses)))
	}
	start := time.Now()

	gens := e.catalog.Generations()
	results := e.fanOut(ctx, gens, q.Clauses)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var merged []collector.DocumentScore
	for _, r := range results {
		if r.err != nil {
			result.Failed++
			if e.metrics != nil {
				e.metrics.GenerationErrorsTotal.Inc()
			}
			e.logger.Error("generation query failed",
				"generation", r.id,
				"error", r.err,
			)
			continue
		}
		merged = append(merged, r.scores...)
	}
	if len(gens) > 0 && result.Failed == len(gens) {
		return nil, fmt.Errorf("all %d generations failed, first error: %w", len(gens), results[0].err)
	}
	result.Generations = len(gens)
	result.TotalHits = len(merged)
	result.Results = ranker.TopK(merged, limit)

	e.logger.Debug("query executed",
		"query", q.Raw,
		"clauses", len(q.Clauses),
		"generations", len(gens),
		"failed", result.Failed,
		"hits", result.TotalHits,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (e *Executor) fanOut(ctx context.Context, gens []*segment.Generation, clauses []collector.SubQuery) []generationResult {
	results := make([]generationResult, len(gens))
	var wg sync.WaitGroup
	for i, g := range gens {
		wg.Add(1)
		go func(idx int, gen *segment.Generation) {
			defer wg.Done()
			scores, err := e.collector.Collect(ctx, gen, clauses)
			results[idx] = generationResult{id: gen.ID(), scores: scores, err: err}
		}(i, g)
	}
	wg.Wait()
	return results
}
