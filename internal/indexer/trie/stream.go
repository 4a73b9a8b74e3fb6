package trie

import (
	"errors"
	"fmt"
	"io"

	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
)

// nodeStream is a pre-order record stream that can be rewound and can
// advance past records without returning them.
type nodeStream interface {
	reset() error
	// next returns io.EOF once every record has been read.
	next() (SerializedNode, error)
	skip(n int) error
	name() string
	io.Closer
}

// StreamReader implements Reader over an encoded record stream. Lookups
// never materialize the tree: mismatched subtrees are passed over using
// the Weight of their root record.
type StreamReader struct {
	s nodeStream
}

func (r *StreamReader) Close() error {
	return r.s.Close()
}

func (r *StreamReader) malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", apperrors.ErrMalformedRecord, r.s.name(), fmt.Sprintf(format, args...))
}

// mustNext reads a record that the previous record promised to exist.
func (r *StreamReader) mustNext() (SerializedNode, error) {
	rec, err := r.s.next()
	if errors.Is(err, io.EOF) {
		return rec, r.malformed("stream ends before a promised record")
	}
	return rec, err
}

// walkTo positions the stream just after the record ending path and
// returns that record.
func (r *StreamReader) walkTo(path []rune) (SerializedNode, bool, error) {
	if err := r.s.reset(); err != nil {
		return SerializedNode{}, false, err
	}
	rec, err := r.s.next()
	if errors.Is(err, io.EOF) {
		return SerializedNode{}, false, nil
	}
	if err != nil {
		return SerializedNode{}, false, err
	}
	depth := 0
	for {
		if rec.Depth != depth {
			return SerializedNode{}, false, r.malformed("record at depth %d, expected %d", rec.Depth, depth)
		}
		switch {
		case rec.Value == path[depth]:
			if depth == len(path)-1 {
				return rec, true, nil
			}
			if !rec.HasChild {
				return SerializedNode{}, false, nil
			}
			depth++
		case rec.Value > path[depth] || !rec.HasSibling:
			return SerializedNode{}, false, nil
		default:
			if err := r.s.skip(rec.Weight - 1); err != nil {
				return SerializedNode{}, false, err
			}
		}
		if rec, err = r.mustNext(); err != nil {
			return SerializedNode{}, false, err
		}
	}
}

func (r *StreamReader) HasWord(term string) (Word, bool, error) {
	if term == "" {
		return Word{}, false, nil
	}
	rec, ok, err := r.walkTo([]rune(term))
	if err != nil || !ok || !rec.EndOfWord {
		return Word{}, false, err
	}
	return Word{Value: term, Postings: rec.Postings}, true, nil
}

func (r *StreamReader) StartsWith(prefix string) ([]Word, error) {
	path := []rune(prefix)
	var words []Word
	remaining := -1
	if len(path) > 0 {
		rec, ok, err := r.walkTo(path)
		if err != nil || !ok {
			return nil, err
		}
		if rec.EndOfWord {
			words = append(words, Word{Value: prefix, Postings: rec.Postings})
		}
		remaining = rec.Weight - 1
	} else if err := r.s.reset(); err != nil {
		return nil, err
	}
	base := len(path)
	for remaining != 0 {
		rec, err := r.s.next()
		if errors.Is(err, io.EOF) && remaining < 0 {
			break
		}
		if errors.Is(err, io.EOF) {
			return nil, r.malformed("stream ends inside a subtree")
		}
		if err != nil {
			return nil, err
		}
		if rec.Depth < base || rec.Depth > len(path) {
			return nil, r.malformed("record at depth %d outside path of length %d", rec.Depth, len(path))
		}
		path = append(path[:rec.Depth], rec.Value)
		if rec.EndOfWord {
			words = append(words, Word{Value: string(path), Postings: rec.Postings})
		}
		remaining--
	}
	return words, nil
}

func (r *StreamReader) Near(word string, maxEdits int) ([]Word, error) {
	if maxEdits < 0 {
		return nil, nil
	}
	if err := r.s.reset(); err != nil {
		return nil, err
	}
	query := []rune(word)
	dist := newRows(query)
	var words []Word
	var path []rune
	for {
		rec, err := r.s.next()
		if errors.Is(err, io.EOF) {
			return words, nil
		}
		if err != nil {
			return nil, err
		}
		if rec.Depth > len(path) {
			return nil, r.malformed("record at depth %d below path of length %d", rec.Depth, len(path))
		}
		row := dist.extend(rec.Depth, rec.Value)
		path = append(path[:rec.Depth], rec.Value)
		if rec.EndOfWord && row[len(query)] <= maxEdits {
			words = append(words, Word{Value: string(path), Postings: rec.Postings})
		}
		if rec.HasChild && rowMin(row) > maxEdits {
			if err := r.s.skip(rec.Weight - 1); err != nil {
				return nil, err
			}
		}
	}
}
