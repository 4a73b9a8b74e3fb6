package segment

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/postings"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/trie"
	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
)

// Generation is a read-only, opened index generation. Trie readers are
// opened per call; the postings file stays open until Close. A Generation
// is safe for concurrent use.
type Generation struct {
	dir      string
	manifest *Manifest
	docs     *roaring64.Bitmap
	file     *os.File
	postings *postings.Reader
}

// Open opens the generation stored in dir. cacheSize bounds the number of
// decoded posting lists kept in memory.
func Open(dir string, cacheSize int) (*Generation, error) {
	manifest, err := ReadManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	docs, err := readBitmap(filepath.Join(dir, DocsFile))
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, PostingsFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	reader, err := postings.NewReader(f, info.Size(), path, cacheSize)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Generation{
		dir:      dir,
		manifest: manifest,
		docs:     docs,
		file:     f,
		postings: reader,
	}, nil
}

func readBitmap(path string) (*roaring64.Bitmap, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	bm := roaring64.New()
	if _, err := bm.ReadFrom(bufio.NewReader(f)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrMalformedRecord, path, err)
	}
	return bm, nil
}

func (g *Generation) ID() string { return g.manifest.ID }

func (g *Generation) Dir() string { return g.dir }

// Manifest returns the generation's manifest. Callers must not modify it.
func (g *Generation) Manifest() *Manifest { return g.manifest }

// OpenTrie opens a new reader on the trie of field, preferring the binary
// file over the text one. A field without a trie file yields trie.Empty.
func (g *Generation) OpenTrie(field string) (trie.Reader, error) {
	if _, ok := g.manifest.Fields[field]; !ok {
		return trie.Empty, nil
	}
	r, err := trie.OpenBinary(filepath.Join(g.dir, TrieFileName(field, EncodingBinary)))
	if err == nil {
		return r, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}
	r, err = trie.OpenText(filepath.Join(g.dir, TrieFileName(field, EncodingText)))
	if err == nil {
		return r, nil
	}
	if apperrors.IsNotFound(err) {
		return trie.Empty, nil
	}
	return nil, err
}

func (g *Generation) ReadPostings(blocks []postings.Block) ([]postings.PostingList, error) {
	return g.postings.ReadAll(blocks)
}

// DocCount returns the number of documents indexed with field.
func (g *Generation) DocCount(field string) int {
	return g.manifest.Fields[field].Docs
}

// TotalDocs returns the number of documents in the generation.
func (g *Generation) TotalDocs() int {
	return g.manifest.Docs
}

// Contains reports whether the generation holds a version of docID.
func (g *Generation) Contains(docID uint64) bool {
	return g.docs.Contains(docID)
}

// Documents returns a copy of the set of document ids in the generation.
func (g *Generation) Documents() *roaring64.Bitmap {
	return g.docs.Clone()
}

func (g *Generation) Close() error {
	var result *multierror.Error
	if err := g.file.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing %s: %w", g.file.Name(), err))
	}
	return result.ErrorOrNil()
}

// List returns the ids of the complete generations in dataDir, oldest
// first.
func List(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := uuid.Parse(entry.Name()); err != nil {
			continue
		}
		ids = append(ids, entry.Name())
	}
	sort.Strings(ids)
	return ids, nil
}
