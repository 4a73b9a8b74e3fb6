package trie

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
)

// binaryStream reads fixed-width records through a ReaderAt. Skips are
// served from the read buffer when possible and otherwise by seeking, so a
// pruned subtree is never read.
type binaryStream struct {
	src    *io.SectionReader
	buf    *bufio.Reader
	closer io.Closer
	path   string
	count  int64
	pos    int64
	rec    [RecordSize]byte
}

// OpenBinary opens a binary trie file for random-access reading. Several
// readers may be open on the same file at once.
func OpenBinary(path string) (*StreamReader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, path)
		}
		return nil, fmt.Errorf("opening trie file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat trie file: %w", err)
	}
	r, err := NewBinaryReader(f, info.Size(), path)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.s.(*binaryStream).closer = f
	return r, nil
}

// NewBinaryReader reads a binary trie of size bytes from src. name is used
// in error messages.
func NewBinaryReader(src io.ReaderAt, size int64, name string) (*StreamReader, error) {
	var h [HeaderSize]byte
	if size < HeaderSize {
		return nil, fmt.Errorf("%w: %s: file of %d bytes has no header", apperrors.ErrMalformedRecord, name, size)
	}
	if _, err := src.ReadAt(h[:], 0); err != nil {
		return nil, fmt.Errorf("%w: %s: reading header: %v", apperrors.ErrMalformedRecord, name, err)
	}
	if magic := binary.LittleEndian.Uint32(h[0:4]); magic != BinaryMagic {
		return nil, fmt.Errorf("%w: %s: bad magic bytes %x", apperrors.ErrMalformedRecord, name, magic)
	}
	if version := binary.LittleEndian.Uint32(h[4:8]); version != BinaryVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", apperrors.ErrMalformedRecord, name, version)
	}
	count := int64(binary.LittleEndian.Uint64(h[8:16]))
	if count < 0 || size != HeaderSize+count*RecordSize {
		return nil, fmt.Errorf("%w: %s: %d records do not fit %d bytes", apperrors.ErrMalformedRecord, name, count, size)
	}
	section := io.NewSectionReader(src, HeaderSize, count*RecordSize)
	return &StreamReader{s: &binaryStream{
		src:   section,
		buf:   bufio.NewReaderSize(section, 64*RecordSize),
		path:  name,
		count: count,
	}}, nil
}

func (s *binaryStream) name() string { return s.path }

func (s *binaryStream) reset() error {
	if _, err := s.src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding %s: %w", s.path, err)
	}
	s.buf.Reset(s.src)
	s.pos = 0
	return nil
}

func (s *binaryStream) next() (SerializedNode, error) {
	if s.pos >= s.count {
		return SerializedNode{}, io.EOF
	}
	if _, err := io.ReadFull(s.buf, s.rec[:]); err != nil {
		return SerializedNode{}, fmt.Errorf("%w: %s: record %d: %v", apperrors.ErrMalformedRecord, s.path, s.pos, err)
	}
	n, err := DecodeBinary(s.rec[:])
	if err != nil {
		return SerializedNode{}, fmt.Errorf("%w: %s: record %d: %v", apperrors.ErrMalformedRecord, s.path, s.pos, err)
	}
	s.pos++
	return n, nil
}

func (s *binaryStream) skip(n int) error {
	if n <= 0 {
		return nil
	}
	if s.pos+int64(n) > s.count {
		return fmt.Errorf("%w: %s: skip of %d from record %d passes end of %d", apperrors.ErrMalformedRecord, s.path, n, s.pos, s.count)
	}
	bytes := n * RecordSize
	if bytes <= s.buf.Buffered() {
		if _, err := s.buf.Discard(bytes); err != nil {
			return fmt.Errorf("skipping in %s: %w", s.path, err)
		}
	} else {
		if _, err := s.src.Seek((s.pos+int64(n))*RecordSize, io.SeekStart); err != nil {
			return fmt.Errorf("seeking in %s: %w", s.path, err)
		}
		s.buf.Reset(s.src)
	}
	s.pos += int64(n)
	return nil
}

func (s *binaryStream) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
