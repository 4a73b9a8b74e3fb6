package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/postgres"
)

type statusLog struct {
	mu       sync.Mutex
	statuses map[uint64]string
}

func (s *statusLog) UpdateStatus(_ context.Context, docID uint64, status, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statuses == nil {
		s.statuses = make(map[uint64]string)
	}
	s.statuses[docID] = status
	return nil
}

func newEngine(t *testing.T, opts indexer.Options) *indexer.Engine {
	t.Helper()
	e, err := indexer.NewEngine(config.IndexerConfig{DataDir: t.TempDir(), Encoding: "binary"}, opts)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func encode(t *testing.T, event ingestion.IndexEvent) []byte {
	t.Helper()
	b, err := json.Marshal(event)
	require.NoError(t, err)
	return b
}

func TestHandleMessageIndexesAndDeletes(t *testing.T) {
	engine := newEngine(t, indexer.Options{})
	status := &statusLog{}
	handle := HandleMessage(engine, status)
	ctx := context.Background()

	require.NoError(t, handle(ctx, nil, encode(t, ingestion.IndexEvent{DocumentID: 1, Fields: map[string]string{"title": "rambo"}})))
	require.NoError(t, handle(ctx, nil, encode(t, ingestion.IndexEvent{DocumentID: 2, Fields: map[string]string{"title": "rocky"}})))
	require.NoError(t, engine.Flush())
	assert.Equal(t, 2, engine.Stats().Docs)

	require.NoError(t, handle(ctx, nil, encode(t, ingestion.IndexEvent{DocumentID: 2, Delete: true})))
	assert.Equal(t, 1, engine.Stats().ObsoleteDocs)

	assert.Equal(t, map[uint64]string{1: postgres.StatusIndexed, 2: postgres.StatusDeleted}, status.statuses)
}

func TestHandleMessageSkipsBadEvents(t *testing.T) {
	engine := newEngine(t, indexer.Options{})
	status := &statusLog{}
	handle := HandleMessage(engine, status)
	ctx := context.Background()

	require.NoError(t, handle(ctx, []byte("k"), []byte("{not json")))
	require.NoError(t, handle(ctx, nil, encode(t, ingestion.IndexEvent{DocumentID: 3, Fields: map[string]string{"bad field": "x"}})))
	assert.Equal(t, postgres.StatusFailed, status.statuses[3])
	assert.Zero(t, engine.Stats().BufferedDocs)
}

func TestHandleMessageWithoutStatus(t *testing.T) {
	engine := newEngine(t, indexer.Options{})
	handle := HandleMessage(engine, nil)
	require.NoError(t, handle(context.Background(), nil, encode(t, ingestion.IndexEvent{DocumentID: 9, Fields: map[string]string{"body": "first blood"}})))
	assert.Equal(t, 1, engine.Stats().BufferedDocs)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func TestPublishFlushesAnnouncesGenerations(t *testing.T) {
	pub := &recordingPublisher{}
	engine := newEngine(t, indexer.Options{OnFlush: PublishFlushes(pub)})

	require.NoError(t, engine.IndexDocument(1, map[string]string{"title": "rambo"}))
	require.NoError(t, engine.Flush())

	require.Len(t, pub.events, 1)
	res, ok := pub.events[0].Value.(indexer.FlushResult)
	require.True(t, ok)
	assert.Equal(t, res.Generation, pub.events[0].Key)
	assert.Equal(t, 1, res.Docs)
}

func TestPublishFlushesToleratesFailures(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	engine := newEngine(t, indexer.Options{OnFlush: PublishFlushes(pub)})
	require.NoError(t, engine.IndexDocument(1, map[string]string{"title": "rambo"}))
	require.NoError(t, engine.Flush())
	assert.Len(t, pub.events, 1)
}

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) Refresh() error {
	f.calls++
	return f.err
}

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) Invalidate(context.Context) error {
	f.calls++
	return nil
}

func TestHandleIndexComplete(t *testing.T) {
	event, err := json.Marshal(indexer.FlushResult{Generation: "g1", Docs: 2})
	require.NoError(t, err)
	ctx := context.Background()

	refresher, cache := &fakeRefresher{}, &fakeInvalidator{}
	handle := HandleIndexComplete(refresher, cache)
	require.NoError(t, handle(ctx, []byte("g1"), event))
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, 1, cache.calls)

	require.NoError(t, handle(ctx, nil, []byte("garbage")))
	assert.Equal(t, 1, refresher.calls)

	refresher.err = errors.New("disk gone")
	require.NoError(t, handle(ctx, nil, event))
	assert.Equal(t, 1, cache.calls, "cache survives a failed refresh")

	require.NoError(t, HandleIndexComplete(&fakeRefresher{}, nil)(ctx, nil, event))
}

func TestIndexCompleteFollowsWriter(t *testing.T) {
	dir := t.TempDir()
	writer, err := indexer.NewEngine(config.IndexerConfig{DataDir: dir, Encoding: "binary"}, indexer.Options{})
	require.NoError(t, err)
	defer writer.Close()
	reader, err := indexer.NewEngine(config.IndexerConfig{DataDir: dir, Encoding: "binary"}, indexer.Options{ReadOnly: true})
	require.NoError(t, err)
	defer reader.Close()

	require.NoError(t, writer.IndexDocument(1, map[string]string{"title": "rocky"}))
	require.NoError(t, writer.Flush())
	assert.Zero(t, reader.Stats().Generations)

	event, err := json.Marshal(indexer.FlushResult{Generation: writer.Generations()[0].ID(), Docs: 1})
	require.NoError(t, err)
	require.NoError(t, HandleIndexComplete(reader, nil)(context.Background(), nil, event))
	assert.Equal(t, 1, reader.Stats().Generations)
}

func TestPublishDeletesAnnouncesFlushedDeletes(t *testing.T) {
	pub := &recordingPublisher{}
	engine := newEngine(t, indexer.Options{OnDelete: PublishDeletes(pub)})

	found, err := engine.Delete(1)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, pub.events, "nothing to announce for an unknown document")

	require.NoError(t, engine.IndexDocument(1, map[string]string{"title": "rambo"}))
	require.NoError(t, engine.Flush())
	found, err = engine.Delete(1)
	require.NoError(t, err)
	assert.True(t, found)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "delete-1", pub.events[0].Key)
	res, ok := pub.events[0].Value.(indexer.DeleteResult)
	require.True(t, ok)
	assert.Equal(t, uint64(1), res.DocumentID)
	assert.Equal(t, []string{engine.Generations()[0].ID()}, res.Generations)
}

func TestDeleteAnnouncementRefreshesReaderAndCache(t *testing.T) {
	dir := t.TempDir()
	cfg := config.IndexerConfig{DataDir: dir, Encoding: "binary"}
	pub := &recordingPublisher{}
	writer, err := indexer.NewEngine(cfg, indexer.Options{OnDelete: PublishDeletes(pub)})
	require.NoError(t, err)
	defer writer.Close()
	require.NoError(t, writer.IndexDocument(1, map[string]string{"title": "rocky"}))
	require.NoError(t, writer.Flush())

	reader, err := indexer.NewEngine(cfg, indexer.Options{ReadOnly: true})
	require.NoError(t, err)
	defer reader.Close()
	gen := reader.Generations()[0].ID()
	assert.False(t, reader.Status().IsObsolete(gen, 1))

	_, err = writer.Delete(1)
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	event, err := json.Marshal(pub.events[0].Value)
	require.NoError(t, err)

	cache := &fakeInvalidator{}
	require.NoError(t, HandleIndexComplete(reader, cache)(context.Background(), []byte(pub.events[0].Key), event))
	assert.True(t, reader.Status().IsObsolete(gen, 1))
	assert.Equal(t, 1, cache.calls)
}
