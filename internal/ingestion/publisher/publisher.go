// Package publisher turns accepted documents into ingest events on Kafka.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/resilience"
)

// StatusRecorder stores document statuses. postgres.Client implements it.
type StatusRecorder interface {
	UpdateStatus(ctx context.Context, docID uint64, status, detail string) error
}

// Publisher publishes ingest events through a circuit breaker so that
// requests fail fast while the broker is down.
type Publisher struct {
	producer kafka.Publisher
	status   StatusRecorder
	breaker  *resilience.CircuitBreaker
	logger   *slog.Logger
}

// New creates a Publisher. status may be nil.
func New(producer kafka.Publisher, status StatusRecorder, breaker *resilience.CircuitBreaker) *Publisher {
	return &Publisher{
		producer: producer,
		status:   status,
		breaker:  breaker,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Ingest publishes fields as the new content of docID.
func (p *Publisher) Ingest(ctx context.Context, docID uint64, fields map[string]string) (*ingestion.IngestResponse, error) {
	if err := p.publish(ctx, ingestion.IndexEvent{DocumentID: docID, Fields: fields}); err != nil {
		return nil, err
	}
	return &ingestion.IngestResponse{DocumentID: docID, Status: postgres.StatusPending}, nil
}

// Delete publishes the removal of docID.
func (p *Publisher) Delete(ctx context.Context, docID uint64) (*ingestion.IngestResponse, error) {
	if err := p.publish(ctx, ingestion.IndexEvent{DocumentID: docID, Delete: true}); err != nil {
		return nil, err
	}
	return &ingestion.IngestResponse{DocumentID: docID, Status: postgres.StatusPending}, nil
}

// The document id is the message key so that all events of a document land
// on one partition and are applied in order. The pending status is written
// first so that it cannot overwrite the indexer's outcome.
func (p *Publisher) publish(ctx context.Context, event ingestion.IndexEvent) error {
	p.record(ctx, event.DocumentID, postgres.StatusPending, "")
	err := p.breaker.Execute(func() error {
		return p.producer.Publish(ctx, kafka.Event{
			Key:   strconv.FormatUint(event.DocumentID, 10),
			Value: event,
		})
	})
	if err != nil {
		p.record(ctx, event.DocumentID, postgres.StatusFailed, err.Error())
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return fmt.Errorf("%w: %v", apperrors.ErrUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("publishing event for document %d: %w", event.DocumentID, err)
	}
	return nil
}

func (p *Publisher) record(ctx context.Context, docID uint64, status, detail string) {
	if p.status == nil {
		return
	}
	if err := p.status.UpdateStatus(ctx, docID, status, detail); err != nil {
		p.logger.Error("failed to record document status",
			"doc_id", docID,
			"status", status,
			"error", err,
		)
	}
}
