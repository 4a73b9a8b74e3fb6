package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/resilience"
)

type fakeProducer struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (f *fakeProducer) Publish(_ context.Context, events ...kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, events...)
	return nil
}

type statusLog struct {
	mu      sync.Mutex
	updates []string
}

func (s *statusLog) UpdateStatus(_ context.Context, _ uint64, status, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, status)
	return nil
}

func TestIngestAndDelete(t *testing.T) {
	producer, status := &fakeProducer{}, &statusLog{}
	p := New(producer, status, resilience.NewCircuitBreaker("kafka", resilience.BreakerConfig{}))
	ctx := context.Background()

	resp, err := p.Ingest(ctx, 42, map[string]string{"title": "rambo"})
	require.NoError(t, err)
	assert.Equal(t, &ingestion.IngestResponse{DocumentID: 42, Status: postgres.StatusPending}, resp)

	_, err = p.Delete(ctx, 42)
	require.NoError(t, err)

	require.Len(t, producer.events, 2)
	assert.Equal(t, "42", producer.events[0].Key)
	assert.Equal(t, ingestion.IndexEvent{DocumentID: 42, Fields: map[string]string{"title": "rambo"}}, producer.events[0].Value)
	assert.Equal(t, ingestion.IndexEvent{DocumentID: 42, Delete: true}, producer.events[1].Value)
	assert.Equal(t, []string{postgres.StatusPending, postgres.StatusPending}, status.updates)
}

func TestPublishFailuresOpenTheBreaker(t *testing.T) {
	producer, status := &fakeProducer{err: errors.New("broker down")}, &statusLog{}
	breaker := resilience.NewCircuitBreaker("kafka", resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	p := New(producer, status, breaker)
	ctx := context.Background()

	for range 2 {
		_, err := p.Ingest(ctx, 1, map[string]string{"title": "x"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, apperrors.ErrUnavailable)
	}
	assert.Equal(t, resilience.StateOpen, breaker.State())

	_, err := p.Ingest(ctx, 1, map[string]string{"title": "x"})
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	assert.Equal(t, postgres.StatusFailed, status.updates[len(status.updates)-1])
}

func TestPublishWithoutStatus(t *testing.T) {
	p := New(&fakeProducer{}, nil, resilience.NewCircuitBreaker("kafka", resilience.BreakerConfig{}))
	_, err := p.Delete(context.Background(), 7)
	require.NoError(t, err)
}
