package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/docstatus"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
)

func testConfig(dir string) config.IndexerConfig {
	return config.IndexerConfig{DataDir: dir, Encoding: "binary"}
}

func newEngine(t *testing.T, cfg config.IndexerConfig, opts Options) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestFlushWritesGeneration(t *testing.T) {
	var flushed []FlushResult
	e := newEngine(t, testConfig(t.TempDir()), Options{
		OnFlush: func(r FlushResult) { flushed = append(flushed, r) },
	})
	require.NoError(t, e.Flush())
	assert.Empty(t, e.Generations())

	require.NoError(t, e.IndexDocument(1, map[string]string{"title": "rambo", "body": "vietnam veteran"}))
	require.NoError(t, e.IndexDocument(2, map[string]string{"title": "rocky"}))
	assert.Equal(t, Stats{BufferedDocs: 2}, e.Stats())

	require.NoError(t, e.Flush())
	gens := e.Generations()
	require.Len(t, gens, 1)
	assert.Equal(t, 2, gens[0].TotalDocs())
	assert.Equal(t, 1, gens[0].DocCount("body"))
	assert.Equal(t, Stats{Generations: 1, Docs: 2}, e.Stats())
	require.Len(t, flushed, 1)
	assert.Equal(t, FlushResult{Generation: gens[0].ID(), Docs: 2}, flushed[0])
}

func TestMaxBufferedDocsTriggersFlush(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.MaxBufferedDocs = 2
	e := newEngine(t, cfg, Options{})

	require.NoError(t, e.IndexDocument(1, map[string]string{"title": "a"}))
	assert.Empty(t, e.Generations())
	require.NoError(t, e.IndexDocument(2, map[string]string{"title": "b"}))
	assert.Len(t, e.Generations(), 1)
	assert.Zero(t, e.Stats().BufferedDocs)
}

func TestMaxBufferedBytesTriggersFlush(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.MaxBufferedBytes = 30
	e := newEngine(t, cfg, Options{})

	require.NoError(t, e.IndexDocument(1, map[string]string{"title": "rambo"}))
	assert.Empty(t, e.Generations())
	require.NoError(t, e.IndexDocument(2, map[string]string{"title": "rocky"}))
	assert.Len(t, e.Generations(), 1)
	assert.Zero(t, e.Stats().BufferedDocs)
}

func TestOverlongTermDoesNotCostTheBatch(t *testing.T) {
	e := newEngine(t, testConfig(t.TempDir()), Options{})
	require.NoError(t, e.IndexDocument(1, map[string]string{"title": "rambo first blood"}))

	err := e.IndexDocument(2, map[string]string{"body": strings.Repeat("a", 70000)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 1, e.Stats().BufferedDocs)

	longest := strings.Repeat("b", index.MaxTermLength)
	require.NoError(t, e.IndexDocument(3, map[string]string{"body": longest}))
	require.NoError(t, e.Flush())

	gens := e.Generations()
	require.Len(t, gens, 1)
	assert.True(t, gens[0].Contains(1))
	assert.False(t, gens[0].Contains(2))
	assert.True(t, gens[0].Contains(3))
	assert.Equal(t, Stats{Generations: 1, Docs: 2}, e.Stats())
}

func TestDeleteCallsHookForFlushedDocuments(t *testing.T) {
	var deleted []DeleteResult
	e := newEngine(t, testConfig(t.TempDir()), Options{
		OnDelete: func(r DeleteResult) { deleted = append(deleted, r) },
	})
	require.NoError(t, e.IndexDocument(1, map[string]string{"title": "rambo"}))
	require.NoError(t, e.Flush())
	require.NoError(t, e.IndexDocument(1, map[string]string{"title": "rocky"}))

	found, err := e.Delete(1)
	require.NoError(t, err)
	assert.True(t, found)
	gens := e.Generations()
	require.Len(t, gens, 2)
	require.Len(t, deleted, 1)
	assert.Equal(t, DeleteResult{DocumentID: 1, Generations: []string{gens[0].ID(), gens[1].ID()}}, deleted[0])

	found, err = e.Delete(42)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Len(t, deleted, 1)
}

func TestReindexMakesOlderVersionObsolete(t *testing.T) {
	e := newEngine(t, testConfig(t.TempDir()), Options{})
	require.NoError(t, e.IndexDocument(1, map[string]string{"title": "rambo"}))
	require.NoError(t, e.IndexDocument(2, map[string]string{"title": "rambo"}))
	require.NoError(t, e.Flush())

	// reindexing a buffered document flushes the buffer first
	require.NoError(t, e.IndexDocument(1, map[string]string{"title": "rocky"}))
	require.NoError(t, e.IndexDocument(1, map[string]string{"title": "creed"}))
	require.NoError(t, e.Flush())

	gens := e.Generations()
	require.Len(t, gens, 3)
	assert.True(t, e.Status().IsObsolete(gens[0].ID(), 1))
	assert.False(t, e.Status().IsObsolete(gens[0].ID(), 2))
	assert.True(t, e.Status().IsObsolete(gens[1].ID(), 1))
	assert.False(t, e.Status().IsObsolete(gens[2].ID(), 1))
	assert.Equal(t, 2, e.Stats().ObsoleteDocs)
}

func TestDelete(t *testing.T) {
	e := newEngine(t, testConfig(t.TempDir()), Options{})
	found, err := e.Delete(1)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, e.IndexDocument(1, map[string]string{"title": "rambo"}))
	found, err = e.Delete(1)
	require.NoError(t, err)
	assert.True(t, found)

	gens := e.Generations()
	require.Len(t, gens, 1)
	assert.True(t, e.Status().IsObsolete(gens[0].ID(), 1))
}

func TestIndexDocumentRejectsInvalidFields(t *testing.T) {
	e := newEngine(t, testConfig(t.TempDir()), Options{})
	err := e.IndexDocument(1, map[string]string{"../title": "rambo"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, e.Stats().BufferedDocs)
}

func TestReopenRestoresGenerationsAndObsoleteSets(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEngine(testConfig(dir), Options{})
	require.NoError(t, err)
	require.NoError(t, e.IndexDocument(1, map[string]string{"title": "rambo"}))
	require.NoError(t, e.Flush())
	require.NoError(t, e.IndexDocument(1, map[string]string{"title": "rocky"}))
	require.NoError(t, e.IndexDocument(2, map[string]string{"title": "creed"}))
	require.NoError(t, e.Close())

	reopened := newEngine(t, testConfig(dir), Options{})
	gens := reopened.Generations()
	require.Len(t, gens, 2)
	assert.True(t, reopened.Status().IsObsolete(gens[0].ID(), 1))
	assert.Equal(t, Stats{Generations: 2, Docs: 3, ObsoleteDocs: 1}, reopened.Stats())
}

func TestReconcileRepairsMissingObsoleteSets(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEngine(testConfig(dir), Options{})
	require.NoError(t, err)
	require.NoError(t, e.IndexDocument(1, map[string]string{"title": "rambo"}))
	require.NoError(t, e.Flush())
	require.NoError(t, e.IndexDocument(1, map[string]string{"title": "rocky"}))
	require.NoError(t, e.Flush())
	first := e.Generations()[0].ID()
	require.NoError(t, e.Close())

	// as if the writer crashed before updating the older generation
	require.NoError(t, os.Remove(filepath.Join(dir, first, docstatus.FileName)))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".leftover.tmp"), 0755))

	reopened := newEngine(t, testConfig(dir), Options{})
	assert.True(t, reopened.Status().IsObsolete(first, 1))
	_, err = os.Stat(filepath.Join(dir, ".leftover.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestReadOnlyEngineFollowsWriter(t *testing.T) {
	dir := t.TempDir()
	writer := newEngine(t, testConfig(dir), Options{})
	reader := newEngine(t, testConfig(dir), Options{ReadOnly: true})

	assert.ErrorIs(t, reader.IndexDocument(1, map[string]string{"title": "x"}), apperrors.ErrInvalidInput)
	_, err := reader.Delete(1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	require.NoError(t, writer.IndexDocument(1, map[string]string{"title": "rambo"}))
	require.NoError(t, writer.Flush())
	assert.Empty(t, reader.Generations())

	require.NoError(t, reader.Refresh())
	require.Len(t, reader.Generations(), 1)

	_, err = writer.Delete(1)
	require.NoError(t, err)
	gen := reader.Generations()[0].ID()
	assert.False(t, reader.Status().IsObsolete(gen, 1))
	require.NoError(t, reader.Refresh())
	assert.True(t, reader.Status().IsObsolete(gen, 1))
}

func TestTextEncoding(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Encoding = "text"
	e := newEngine(t, cfg, Options{})
	require.NoError(t, e.IndexDocument(1, map[string]string{"title": "amélie"}))
	require.NoError(t, e.Flush())

	g := e.Generations()[0]
	_, err := os.Stat(filepath.Join(g.Dir(), segment.TrieFileName("title", segment.EncodingText)))
	require.NoError(t, err)

	r, err := g.OpenTrie("title")
	require.NoError(t, err)
	defer r.Close()
	_, ok, err := r.HasWord("amélie")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFlushLoopFlushesOnCancel(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.FlushInterval = time.Hour
	e := newEngine(t, cfg, Options{})
	require.NoError(t, e.IndexDocument(1, map[string]string{"title": "rambo"}))

	ctx, cancel := context.WithCancel(context.Background())
	e.StartFlushLoop(ctx)
	cancel()
	assert.Eventually(t, func() bool { return len(e.Generations()) == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestObsoleteSetsUseDocumentMembership(t *testing.T) {
	e := newEngine(t, testConfig(t.TempDir()), Options{})
	require.NoError(t, e.IndexDocument(5, map[string]string{"title": "x"}))
	require.NoError(t, e.Flush())
	g := e.Generations()[0]
	assert.Equal(t, roaring64.BitmapOf(5).ToArray(), g.Documents().ToArray())
}
