package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/searcher/ranker"
	pkgredis "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/redis"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	v, ok := s.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = string(value.([]byte))
	return nil
}

func (s *memoryStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func parse(t *testing.T, raw string) *parser.Query {
	t.Helper()
	q, err := parser.New(tokenizer.New(tokenizer.Options{}), "title", 0.8).Parse(raw)
	require.NoError(t, err)
	return q
}

func result(ids ...uint64) *executor.SearchResult {
	r := &executor.SearchResult{TotalHits: len(ids), Results: []ranker.ScoredDoc{}}
	for _, id := range ids {
		r.Results = append(r.Results, ranker.ScoredDoc{DocumentID: id, Score: 1, Generation: "g"})
	}
	return r
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c := New(newMemoryStore(), time.Minute, nil)
	ctx := context.Background()
	calls := 0
	compute := func() (*executor.SearchResult, error) {
		calls++
		return result(1, 2), nil
	}

	got, hit, err := c.GetOrCompute(ctx, parse(t, "rambo"), 10, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, result(1, 2), got)

	got, hit, err = c.GetOrCompute(ctx, parse(t, "RAMBO"), 10, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, result(1, 2), got)
	assert.Equal(t, 1, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestKeysDependOnClauseOrderAndLimit(t *testing.T) {
	a := BuildKey(parse(t, "+rambo -rocky"), 10)
	assert.Equal(t, a, BuildKey(parse(t, "+title:Rambo   -title:rocky"), 10))
	assert.NotEqual(t, a, BuildKey(parse(t, "-rocky +rambo"), 10))
	assert.NotEqual(t, a, BuildKey(parse(t, "+rambo -rocky"), 20))
	assert.True(t, strings.HasPrefix(a, keyPrefix))
}

func TestConcurrentMissesComputeOnce(t *testing.T) {
	c := New(newMemoryStore(), time.Minute, nil)
	q := parse(t, "rambo")
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return result(1), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), q, 10, compute)
			assert.NoError(t, err)
		}()
	}
	assert.Eventually(t, func() bool {
		_, misses := c.Stats()
		return misses == 8
	}, 5*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestComputeErrorIsNotCached(t *testing.T) {
	store := newMemoryStore()
	c := New(store, time.Minute, nil)
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute(context.Background(), parse(t, "rambo"), 10, func() (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestStoreErrorsAreMisses(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection refused")
	c := New(store, time.Minute, nil)

	_, ok := c.Get(context.Background(), parse(t, "rambo"), 10)
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	store := newMemoryStore()
	store.data["other"] = "kept"
	c := New(store, time.Minute, nil)
	ctx := context.Background()
	c.Set(ctx, parse(t, "rambo"), 10, result(1))
	require.Len(t, store.data, 2)

	require.NoError(t, c.Invalidate(ctx))
	assert.Equal(t, map[string]string{"other": "kept"}, store.data)
	_, ok := c.Get(ctx, parse(t, "rambo"), 10)
	assert.False(t, ok)
}
