package trie

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
)

// textStream reads the line encoding sequentially. Skipping consumes the
// skipped lines without decoding them.
type textStream struct {
	src    io.ReadSeeker
	buf    *bufio.Reader
	closer io.Closer
	path   string
	line   int
}

// OpenText opens a text trie file.
func OpenText(path string) (*StreamReader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, path)
		}
		return nil, fmt.Errorf("opening trie file: %w", err)
	}
	r := NewTextReader(f, path)
	r.s.(*textStream).closer = f
	return r, nil
}

// NewTextReader reads a text trie from src. name is used in error messages.
func NewTextReader(src io.ReadSeeker, name string) *StreamReader {
	return &StreamReader{s: &textStream{
		src:  src,
		buf:  bufio.NewReader(src),
		path: name,
	}}
}

func (s *textStream) name() string { return s.path }

func (s *textStream) reset() error {
	if _, err := s.src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding %s: %w", s.path, err)
	}
	s.buf.Reset(s.src)
	s.line = 0
	return nil
}

// readLine returns the character of the next line and the rest of it,
// without the newline.
func (s *textStream) readLine() (rune, string, error) {
	value, size, err := s.buf.ReadRune()
	if errors.Is(err, io.EOF) {
		return 0, "", io.EOF
	}
	if err != nil {
		return 0, "", fmt.Errorf("reading %s: %w", s.path, err)
	}
	s.line++
	if value == utf8.RuneError && size == 1 {
		return 0, "", fmt.Errorf("%w: %s: line %d: invalid character", apperrors.ErrMalformedRecord, s.path, s.line)
	}
	rest, err := s.buf.ReadString('\n')
	if err != nil {
		return 0, "", fmt.Errorf("%w: %s: line %d: truncated record", apperrors.ErrMalformedRecord, s.path, s.line)
	}
	return value, strings.TrimSuffix(rest, "\n"), nil
}

func (s *textStream) next() (SerializedNode, error) {
	value, rest, err := s.readLine()
	if err != nil {
		return SerializedNode{}, err
	}
	n, err := ParseText(value, rest)
	if err != nil {
		return SerializedNode{}, fmt.Errorf("%w: %s: line %d: %v", apperrors.ErrMalformedRecord, s.path, s.line, err)
	}
	return n, nil
}

func (s *textStream) skip(n int) error {
	for i := 0; i < n; i++ {
		if _, _, err := s.readLine(); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: %s: skip of %d passes end after line %d", apperrors.ErrMalformedRecord, s.path, n, s.line)
			}
			return err
		}
	}
	return nil
}

func (s *textStream) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
