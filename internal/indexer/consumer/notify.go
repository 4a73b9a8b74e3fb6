package consumer

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/kafka"
)

const publishTimeout = 5 * time.Second

// PublishFlushes returns an engine flush hook that announces each new
// generation on the index-complete topic. Publish failures are logged; a
// search process that misses an announcement still finds the generation
// on its next refresh.
func PublishFlushes(pub kafka.Publisher) func(indexer.FlushResult) {
	logger := slog.Default().With("component", "flush-publisher")
	return func(res indexer.FlushResult) {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := pub.Publish(ctx, kafka.Event{Key: res.Generation, Value: res}); err != nil {
			logger.Error("failed to announce generation",
				"generation", res.Generation,
				"error", err,
			)
		}
	}
}

// PublishDeletes returns an engine delete hook that announces deletes of
// flushed documents on the index-complete topic, so search processes drop
// cached results that still hold the document.
func PublishDeletes(pub kafka.Publisher) func(indexer.DeleteResult) {
	logger := slog.Default().With("component", "flush-publisher")
	return func(res indexer.DeleteResult) {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		key := "delete-" + strconv.FormatUint(res.DocumentID, 10)
		if err := pub.Publish(ctx, kafka.Event{Key: key, Value: res}); err != nil {
			logger.Error("failed to announce delete",
				"doc_id", res.DocumentID,
				"error", err,
			)
		}
	}
}

// indexChange holds either kind of announcement on the index-complete topic.
// A delete carries a document id and no generation.
type indexChange struct {
	indexer.FlushResult
	indexer.DeleteResult
}

// Refresher reloads the generations of a read-only engine.
type Refresher interface {
	Refresh() error
}

// Invalidator drops cached query results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// HandleIndexComplete returns a MessageHandler for search processes: each
// announced generation or delete triggers a refresh of idx and, once the
// refresh succeeds, invalidation of the query cache. cache may be nil.
func HandleIndexComplete(idx Refresher, cache Invalidator) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-complete-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		res, err := kafka.DecodeJSON[indexChange](value)
		if err != nil {
			logger.Error("failed to decode index-complete event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if err := idx.Refresh(); err != nil {
			logger.Error("refresh after new generation failed",
				"generation", res.Generation,
				"error", err,
			)
			return nil
		}
		if cache != nil {
			if err := cache.Invalidate(ctx); err != nil {
				logger.Error("cache invalidation failed",
					"generation", res.Generation,
					"error", err,
				)
			}
		}
		if res.Generation == "" {
			logger.Info("picked up delete",
				"doc_id", res.DocumentID,
				"generations", len(res.DeleteResult.Generations),
			)
			return nil
		}
		logger.Info("picked up generation",
			"generation", res.Generation,
			"docs", res.Docs,
			"obsoleted", res.Obsoleted,
		)
		return nil
	}
}
