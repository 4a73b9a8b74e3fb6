// Package index accumulates analyzed documents into the per-field tries of
// the next index generation.
package index

import (
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/postings"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/trie"
	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
)

// MaxTermLength is the longest term, in runes, a generation can store: the
// last rune of a term sits at depth MaxTermLength-1 of its trie.
const MaxTermLength = trie.MaxDepth + 1

// Field is the build state of one field: its trie and the number of
// documents that contributed at least one token to it.
type Field struct {
	Trie *trie.Trie
	Docs int
}

// Snapshot is the sealed content of a Builder, ready to be written as a
// generation. A Snapshot is never modified after Seal returns it.
type Snapshot struct {
	Fields map[string]*Field
	Docs   *roaring64.Bitmap
}

// FieldNames returns the names of the snapshot's fields in sorted order.
func (s *Snapshot) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DocCount returns the number of documents in the snapshot.
func (s *Snapshot) DocCount() int {
	return int(s.Docs.GetCardinality())
}

// Builder is the in-memory index of documents not yet flushed. It is safe
// for concurrent use.
type Builder struct {
	mu     sync.RWMutex
	fields map[string]*Field
	docs   *roaring64.Bitmap
	size   int64
}

func NewBuilder() *Builder {
	return &Builder{
		fields: make(map[string]*Field),
		docs:   roaring64.New(),
	}
}

// ValidFieldName reports whether name can be used as a field. Field names
// become file names inside a generation, so only ASCII letters, digits,
// '_' and '-' are allowed.
func ValidFieldName(name string) bool {
	if name == "" || len(name) > 128 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

// AddDocument adds the tokens of one document. A document id can be added
// once per builder; re-adding requires sealing first. A document with a
// term longer than MaxTermLength is rejected and leaves the builder as is.
func (b *Builder) AddDocument(docID uint64, tokens []tokenizer.Token) error {
	type key struct{ field, term string }
	freqs := make(map[key]int)
	for _, tok := range tokens {
		if !ValidFieldName(tok.Field) {
			return fmt.Errorf("%w: field name %q", apperrors.ErrInvalidInput, tok.Field)
		}
		if n := utf8.RuneCountInString(tok.Term); n > MaxTermLength {
			return fmt.Errorf("%w: term of %d characters in field %q exceeds %d",
				apperrors.ErrInvalidInput, n, tok.Field, MaxTermLength)
		}
		freqs[key{tok.Field, tok.Term}]++
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.docs.Contains(docID) {
		return fmt.Errorf("%w: document %d is already buffered", apperrors.ErrInvalidInput, docID)
	}
	seen := make(map[string]struct{})
	for k, tf := range freqs {
		f, ok := b.fields[k.field]
		if !ok {
			f = &Field{Trie: trie.New()}
			b.fields[k.field] = f
		}
		if _, counted := seen[k.field]; !counted {
			seen[k.field] = struct{}{}
			f.Docs++
		}
		f.Trie.Insert(k.term, postings.DocumentPosting{DocumentID: docID, TermFrequency: tf})
		b.size += int64(len(k.term) + 16)
	}
	b.docs.Add(docID)
	return nil
}

// Contains reports whether docID is buffered.
func (b *Builder) Contains(docID uint64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.docs.Contains(docID)
}

// DocCount returns the number of buffered documents.
func (b *Builder) DocCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return int(b.docs.GetCardinality())
}

// Size is a rough estimate of the memory held by buffered postings.
func (b *Builder) Size() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Seal hands the buffered content over as a Snapshot and resets the
// builder. It returns nil when nothing is buffered.
func (b *Builder) Seal() *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.docs.IsEmpty() {
		return nil
	}
	snap := &Snapshot{Fields: b.fields, Docs: b.docs}
	b.fields = make(map[string]*Field)
	b.docs = roaring64.New()
	b.size = 0
	return snap
}
