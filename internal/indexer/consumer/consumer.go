// Package consumer connects the indexer engine to Kafka: it applies ingest
// events to the engine and announces every new generation so that search
// processes can pick it up.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/postgres"
)

// Index is the part of the engine the consumer drives.
type Index interface {
	IndexDocument(docID uint64, fields map[string]string) error
	Delete(docID uint64) (bool, error)
}

// StatusRecorder stores the outcome of each event. postgres.Client
// implements it.
type StatusRecorder interface {
	UpdateStatus(ctx context.Context, docID uint64, status, detail string) error
}

var _ Index = (*indexer.Engine)(nil)

// HandleMessage returns a MessageHandler that applies ingest events to idx.
// Events that cannot be decoded or that the engine rejects as invalid are
// logged and committed; other failures leave the message for redelivery.
// status may be nil.
func HandleMessage(idx Index, status StatusRecorder) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IndexEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		if event.Delete {
			found, err := idx.Delete(event.DocumentID)
			if err != nil {
				return fmt.Errorf("deleting document %d: %w", event.DocumentID, err)
			}
			recordStatus(ctx, status, event.DocumentID, postgres.StatusDeleted, "", logger)
			logger.Info("document deleted", "doc_id", event.DocumentID, "found", found)
			return nil
		}

		if err := idx.IndexDocument(event.DocumentID, event.Fields); err != nil {
			recordStatus(ctx, status, event.DocumentID, postgres.StatusFailed, err.Error(), logger)
			if errors.Is(err, apperrors.ErrInvalidInput) {
				logger.Warn("rejected ingest event",
					"doc_id", event.DocumentID,
					"error", err,
				)
				return nil
			}
			return fmt.Errorf("indexing document %d: %w", event.DocumentID, err)
		}

		recordStatus(ctx, status, event.DocumentID, postgres.StatusIndexed, "", logger)
		logger.Debug("document indexed",
			"doc_id", event.DocumentID,
			"fields", len(event.Fields),
		)
		return nil
	}
}

func recordStatus(ctx context.Context, status StatusRecorder, docID uint64, value, detail string, logger *slog.Logger) {
	if status == nil {
		return
	}
	if err := status.UpdateStatus(ctx, docID, value, detail); err != nil {
		logger.Error("failed to update document status",
			"doc_id", docID,
			"status", value,
			"error", err,
		)
	}
}
