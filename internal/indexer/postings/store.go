package postings

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	lru "github.com/hashicorp/golang-lru"

	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
)

// prefixSize is the length prefix written before every posting list.
const prefixSize = 4

// Writer appends length-prefixed posting lists to an underlying stream and
// hands back the Block of each one.
type Writer struct {
	w      io.Writer
	offset int64
	buf    []byte
}

// NewWriter creates a Writer whose first block starts at offset 0 of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write appends list and returns its block. The list must be sorted by
// document id and carry only positive frequencies.
func (w *Writer) Write(list PostingList) (Block, error) {
	mustBeSorted(list)
	w.buf = w.buf[:0]
	w.buf = append(w.buf, 0, 0, 0, 0)
	w.buf = binary.AppendUvarint(w.buf, uint64(len(list)))
	var prev uint64
	for _, p := range list {
		w.buf = binary.AppendUvarint(w.buf, p.DocumentID-prev)
		w.buf = binary.AppendUvarint(w.buf, uint64(p.TermFrequency))
		prev = p.DocumentID
	}
	binary.LittleEndian.PutUint32(w.buf[:prefixSize], uint32(len(w.buf)-prefixSize))
	n, err := w.w.Write(w.buf)
	if err != nil {
		return Block{}, fmt.Errorf("writing posting list: %w", err)
	}
	block := Block{Offset: w.offset, Length: uint32(n)}
	w.offset += int64(n)
	return block, nil
}

// Offset returns the number of bytes written so far.
func (w *Writer) Offset() int64 {
	return w.offset
}

// Reader fetches posting lists by block from a random-access source. It is
// safe for concurrent use; decoded blocks are kept in an LRU cache keyed by
// block and must not be modified by callers.
type Reader struct {
	r     io.ReaderAt
	size  int64
	path  string
	cache *lru.Cache
}

// NewReader wraps r, which holds size bytes of the postings file at path.
// A cacheSize of zero or less disables block caching.
func NewReader(r io.ReaderAt, size int64, path string, cacheSize int) (*Reader, error) {
	reader := &Reader{r: r, size: size, path: path}
	if cacheSize > 0 {
		c, err := lru.New(cacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating postings cache: %w", err)
		}
		reader.cache = c
	}
	return reader, nil
}

// Read fetches the posting list stored at b.
func (r *Reader) Read(b Block) (PostingList, error) {
	if b.IsZero() {
		return nil, nil
	}
	if r.cache != nil {
		if v, ok := r.cache.Get(b); ok {
			return v.(PostingList), nil
		}
	}
	if b.Offset < 0 || b.Offset+int64(b.Length) > r.size || b.Length < prefixSize {
		return nil, fmt.Errorf("%w: %s: block %s outside file of %d bytes", apperrors.ErrMalformedRecord, r.path, b, r.size)
	}
	data := make([]byte, b.Length)
	if _, err := r.r.ReadAt(data, b.Offset); err != nil {
		return nil, fmt.Errorf("%w: %s: reading block %s: %v", apperrors.ErrMalformedRecord, r.path, b, err)
	}
	list, err := decodeList(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: block %s: %v", apperrors.ErrMalformedRecord, r.path, b, err)
	}
	if r.cache != nil {
		r.cache.Add(b, list)
	}
	return list, nil
}

// ReadAll fetches every block in order.
func (r *Reader) ReadAll(blocks []Block) ([]PostingList, error) {
	lists := make([]PostingList, 0, len(blocks))
	for _, b := range blocks {
		list, err := r.Read(b)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	return lists, nil
}

func decodeList(data []byte) (PostingList, error) {
	payload := binary.LittleEndian.Uint32(data[:prefixSize])
	if int(payload) != len(data)-prefixSize {
		return nil, fmt.Errorf("length prefix %d does not match block payload %d", payload, len(data)-prefixSize)
	}
	data = data[prefixSize:]
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("bad posting count")
	}
	data = data[n:]
	if count > uint64(len(data)) {
		return nil, fmt.Errorf("posting count %d exceeds payload", count)
	}
	list := make(PostingList, 0, count)
	var prev uint64
	for i := uint64(0); i < count; i++ {
		delta, n := binary.Uvarint(data)
		if n <= 0 {
			return nil, fmt.Errorf("bad document id at posting %d", i)
		}
		data = data[n:]
		tf, n := binary.Uvarint(data)
		if n <= 0 || tf == 0 || tf > math.MaxInt {
			return nil, fmt.Errorf("bad term frequency at posting %d", i)
		}
		data = data[n:]
		if i > 0 && delta == 0 {
			return nil, fmt.Errorf("duplicate document id at posting %d", i)
		}
		if prev+delta < prev {
			return nil, fmt.Errorf("document id overflows at posting %d", i)
		}
		prev += delta
		list = append(list, DocumentPosting{DocumentID: prev, TermFrequency: int(tf)})
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("%d trailing bytes", len(data))
	}
	return list, nil
}
