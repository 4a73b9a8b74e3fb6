// Package docstatus tracks documents that are obsolete in a generation
// because they were deleted or reindexed after the generation was written.
// Each generation keeps its set in an obsolete.roaring file next to its
// other files.
package docstatus

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// FileName is the obsolete set file inside a generation directory.
const FileName = "obsolete.roaring"

// Store holds the obsolete sets of the loaded generations. It is safe for
// concurrent use; lookups never block on disk writes of other generations.
type Store struct {
	dataDir string
	mu      sync.RWMutex
	sets    map[string]*roaring64.Bitmap
}

// NewStore creates a Store for generations under dataDir.
func NewStore(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
		sets:    make(map[string]*roaring64.Bitmap),
	}
}

func (s *Store) path(generation string) string {
	return filepath.Join(s.dataDir, generation, FileName)
}

// Load reads the obsolete set of generation from disk, replacing any set
// already held. A missing file means nothing is obsolete.
func (s *Store) Load(generation string) error {
	bm := roaring64.New()
	f, err := os.Open(s.path(generation))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return fmt.Errorf("opening obsolete set: %w", err)
	default:
		defer f.Close()
		if _, err := bm.ReadFrom(bufio.NewReader(f)); err != nil {
			return fmt.Errorf("reading %s: %w", f.Name(), err)
		}
	}
	s.mu.Lock()
	s.sets[generation] = bm
	s.mu.Unlock()
	return nil
}

// IsObsolete reports whether documentID is obsolete in generation.
func (s *Store) IsObsolete(generation string, documentID uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bm, ok := s.sets[generation]
	return ok && bm.Contains(documentID)
}

// Count returns the number of obsolete documents in generation.
func (s *Store) Count(generation string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if bm, ok := s.sets[generation]; ok {
		return int(bm.GetCardinality())
	}
	return 0
}

// MarkObsolete adds ids to the obsolete set of generation and persists the
// set. The file is replaced atomically; readers in other processes see
// either the old or the new set. Marking ids that are already obsolete
// does not touch the disk.
func (s *Store) MarkObsolete(generation string, ids *roaring64.Bitmap) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sets[generation]
	if !ok {
		current = roaring64.New()
	}
	added := roaring64.AndNot(ids, current)
	if added.IsEmpty() {
		return 0, nil
	}
	next := roaring64.Or(current, added)
	next.RunOptimize()
	if err := s.persist(generation, next); err != nil {
		return 0, err
	}
	s.sets[generation] = next
	return int(added.GetCardinality()), nil
}

func (s *Store) persist(generation string, bm *roaring64.Bitmap) error {
	final := s.path(generation)
	tmp := final + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating obsolete set: %w", err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	if _, err := bm.WriteTo(bw); err != nil {
		return fmt.Errorf("writing obsolete set: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing obsolete set: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing obsolete set: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing obsolete set: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("renaming obsolete set: %w", err)
	}
	return nil
}

// Forget drops the set of generation from memory.
func (s *Store) Forget(generation string) {
	s.mu.Lock()
	delete(s.sets, generation)
	s.mu.Unlock()
}
