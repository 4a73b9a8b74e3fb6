package docstatus

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, generations ...string) *Store {
	t.Helper()
	dir := t.TempDir()
	for _, g := range generations {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, g), 0755))
	}
	return NewStore(dir)
}

func TestMarkObsoletePersists(t *testing.T) {
	s := newStore(t, "g1", "g2")
	require.NoError(t, s.Load("g1"))
	assert.False(t, s.IsObsolete("g1", 5))

	n, err := s.MarkObsolete("g1", roaring64.BitmapOf(5, 9))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, s.IsObsolete("g1", 5))
	assert.True(t, s.IsObsolete("g1", 9))
	assert.False(t, s.IsObsolete("g2", 5))
	assert.Equal(t, 2, s.Count("g1"))

	reopened := NewStore(s.dataDir)
	require.NoError(t, reopened.Load("g1"))
	assert.True(t, reopened.IsObsolete("g1", 9))
	assert.Equal(t, 2, reopened.Count("g1"))

	_, err = os.Stat(filepath.Join(s.dataDir, "g1", FileName+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestMarkObsoleteIsIdempotent(t *testing.T) {
	s := newStore(t, "g1")
	_, err := s.MarkObsolete("g1", roaring64.BitmapOf(1))
	require.NoError(t, err)

	n, err := s.MarkObsolete("g1", roaring64.BitmapOf(1))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.MarkObsolete("g1", roaring64.BitmapOf(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMarkObsoleteOnMissingGenerationFails(t *testing.T) {
	s := newStore(t)
	_, err := s.MarkObsolete("gone", roaring64.BitmapOf(1))
	require.Error(t, err)
	assert.False(t, s.IsObsolete("gone", 1))
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	s := newStore(t, "g1")
	path := filepath.Join(s.dataDir, "g1", FileName)
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0644))
	err := s.Load("g1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestForget(t *testing.T) {
	s := newStore(t, "g1")
	_, err := s.MarkObsolete("g1", roaring64.BitmapOf(3))
	require.NoError(t, err)
	s.Forget("g1")
	assert.False(t, s.IsObsolete("g1", 3))
	assert.Zero(t, s.Count("g1"))
}

func TestConcurrentLookups(t *testing.T) {
	s := newStore(t, "g1")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.IsObsolete("g1", uint64(j))
			}
		}(i)
	}
	for i := 0; i < 10; i++ {
		_, err := s.MarkObsolete("g1", roaring64.BitmapOf(uint64(i)))
		require.NoError(t, err)
	}
	wg.Wait()
	assert.Equal(t, 10, s.Count("g1"))
}
