package trie

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/postings"
)

// SerializedNode is the on-disk record of one trie node. Records are stored
// in pre-order, so the descendants of a node are exactly the Weight-1
// records that follow it.
type SerializedNode struct {
	Value      rune
	HasSibling bool
	HasChild   bool
	EndOfWord  bool
	Depth      int
	Weight     int
	Postings   postings.Block
}

// Encoder writes serialized nodes in stream order.
type Encoder interface {
	Encode(n SerializedNode) error
	Flush() error
}

// Binary layout. Every record is RecordSize bytes, little endian:
//
//	0  uint32 value
//	4  uint8  flags
//	5  uint8  reserved
//	6  uint16 depth
//	8  uint32 weight
//	12 uint64 postings offset
//	20 uint32 postings length
const (
	BinaryMagic   uint32 = 0x54524945
	BinaryVersion uint32 = 1
	HeaderSize           = 16
	RecordSize           = 24

	MaxDepth = math.MaxUint16
)

const (
	flagSibling byte = 1 << iota
	flagChild
	flagEndOfWord
	flagPostings

	flagMask = flagSibling | flagChild | flagEndOfWord | flagPostings
)

// BinaryEncoder writes the fixed-width encoding: a header carrying the
// record count followed by RecordSize-byte records.
type BinaryEncoder struct {
	w       *bufio.Writer
	count   uint64
	written uint64
	header  bool
	rec     [RecordSize]byte
}

// NewBinaryEncoder creates an encoder for a stream of exactly count records.
func NewBinaryEncoder(w io.Writer, count int) *BinaryEncoder {
	return &BinaryEncoder{w: bufio.NewWriter(w), count: uint64(count)}
}

func (e *BinaryEncoder) writeHeader() error {
	if e.header {
		return nil
	}
	var h [HeaderSize]byte
	binary.LittleEndian.PutUint32(h[0:4], BinaryMagic)
	binary.LittleEndian.PutUint32(h[4:8], BinaryVersion)
	binary.LittleEndian.PutUint64(h[8:16], e.count)
	if _, err := e.w.Write(h[:]); err != nil {
		return fmt.Errorf("writing trie header: %w", err)
	}
	e.header = true
	return nil
}

func (e *BinaryEncoder) Encode(n SerializedNode) error {
	if err := e.writeHeader(); err != nil {
		return err
	}
	if e.written == e.count {
		return fmt.Errorf("trie encoder: more than %d records", e.count)
	}
	if n.Depth < 0 || n.Depth > MaxDepth {
		return fmt.Errorf("trie encoder: depth %d out of range", n.Depth)
	}
	if n.Weight < 1 || uint64(n.Weight) > math.MaxUint32 {
		return fmt.Errorf("trie encoder: weight %d out of range", n.Weight)
	}
	EncodeBinary(e.rec[:], n)
	if _, err := e.w.Write(e.rec[:]); err != nil {
		return fmt.Errorf("writing trie record: %w", err)
	}
	e.written++
	return nil
}

func (e *BinaryEncoder) Flush() error {
	if err := e.writeHeader(); err != nil {
		return err
	}
	if e.written != e.count {
		return fmt.Errorf("trie encoder: wrote %d of %d records", e.written, e.count)
	}
	return e.w.Flush()
}

// EncodeBinary fills dst, which must hold RecordSize bytes, with n.
func EncodeBinary(dst []byte, n SerializedNode) {
	var flags byte
	if n.HasSibling {
		flags |= flagSibling
	}
	if n.HasChild {
		flags |= flagChild
	}
	if n.EndOfWord {
		flags |= flagEndOfWord
	}
	if !n.Postings.IsZero() {
		flags |= flagPostings
	}
	binary.LittleEndian.PutUint32(dst[0:4], uint32(n.Value))
	dst[4] = flags
	dst[5] = 0
	binary.LittleEndian.PutUint16(dst[6:8], uint16(n.Depth))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(n.Weight))
	binary.LittleEndian.PutUint64(dst[12:20], uint64(n.Postings.Offset))
	binary.LittleEndian.PutUint32(dst[20:24], n.Postings.Length)
}

// DecodeBinary parses one RecordSize-byte record.
func DecodeBinary(src []byte) (SerializedNode, error) {
	if len(src) != RecordSize {
		return SerializedNode{}, fmt.Errorf("record is %d bytes, want %d", len(src), RecordSize)
	}
	value := rune(binary.LittleEndian.Uint32(src[0:4]))
	if !utf8.ValidRune(value) {
		return SerializedNode{}, fmt.Errorf("invalid character %#x", uint32(value))
	}
	flags := src[4]
	if flags&^flagMask != 0 || src[5] != 0 {
		return SerializedNode{}, fmt.Errorf("invalid flags %#x", flags)
	}
	n := SerializedNode{
		Value:      value,
		HasSibling: flags&flagSibling != 0,
		HasChild:   flags&flagChild != 0,
		EndOfWord:  flags&flagEndOfWord != 0,
		Depth:      int(binary.LittleEndian.Uint16(src[6:8])),
		Weight:     int(binary.LittleEndian.Uint32(src[8:12])),
	}
	if n.Weight < 1 || (!n.HasChild && n.Weight != 1) {
		return SerializedNode{}, fmt.Errorf("invalid weight %d", n.Weight)
	}
	if flags&flagPostings != 0 {
		n.Postings = postings.Block{
			Offset: int64(binary.LittleEndian.Uint64(src[12:20])),
			Length: binary.LittleEndian.Uint32(src[20:24]),
		}
		if n.Postings.Offset < 0 || n.Postings.IsZero() {
			return SerializedNode{}, fmt.Errorf("invalid postings block %s", n.Postings)
		}
	}
	return n, nil
}

// Text layout, one record per line:
//
//	<char><sibling><child><eow>|<depth:6>|<weight:10>|<offset>:<length>
//
// Flags are the digits 0 or 1, depth and weight are zero padded, and the
// postings field is "-" when the node has no block. The character is read
// as a single rune before the rest of the line, so any character may be
// stored, including the separators.
const (
	textDepthWidth  = 6
	textWeightWidth = 10
	noPostings      = "-"
)

// TextEncoder writes the delimited line encoding.
type TextEncoder struct {
	w *bufio.Writer
}

func NewTextEncoder(w io.Writer) *TextEncoder {
	return &TextEncoder{w: bufio.NewWriter(w)}
}

func (e *TextEncoder) Encode(n SerializedNode) error {
	if n.Depth < 0 || n.Depth > MaxDepth {
		return fmt.Errorf("trie encoder: depth %d out of range", n.Depth)
	}
	if _, err := e.w.WriteString(FormatText(n)); err != nil {
		return fmt.Errorf("writing trie line: %w", err)
	}
	return nil
}

func (e *TextEncoder) Flush() error {
	return e.w.Flush()
}

// FormatText renders n as one newline-terminated line.
func FormatText(n SerializedNode) string {
	var b strings.Builder
	b.WriteRune(n.Value)
	b.WriteByte(flagDigit(n.HasSibling))
	b.WriteByte(flagDigit(n.HasChild))
	b.WriteByte(flagDigit(n.EndOfWord))
	fmt.Fprintf(&b, "|%0*d|%0*d|", textDepthWidth, n.Depth, textWeightWidth, n.Weight)
	if n.Postings.IsZero() {
		b.WriteString(noPostings)
	} else {
		fmt.Fprintf(&b, "%d:%d", n.Postings.Offset, n.Postings.Length)
	}
	b.WriteByte('\n')
	return b.String()
}

func flagDigit(v bool) byte {
	if v {
		return '1'
	}
	return '0'
}

// ParseText parses the part of a line following its character. rest must
// not include the trailing newline.
func ParseText(value rune, rest string) (SerializedNode, error) {
	parts := strings.Split(rest, "|")
	if len(parts) != 4 || len(parts[0]) != 3 {
		return SerializedNode{}, fmt.Errorf("expected 3 flags and 3 fields, got %q", rest)
	}
	n := SerializedNode{Value: value}
	flags := []*bool{&n.HasSibling, &n.HasChild, &n.EndOfWord}
	for i, dst := range flags {
		switch parts[0][i] {
		case '0':
		case '1':
			*dst = true
		default:
			return SerializedNode{}, fmt.Errorf("invalid flag %q", parts[0][i])
		}
	}
	if len(parts[1]) != textDepthWidth || len(parts[2]) != textWeightWidth {
		return SerializedNode{}, fmt.Errorf("depth or weight not zero padded in %q", rest)
	}
	depth, err := strconv.Atoi(parts[1])
	if err != nil || depth < 0 {
		return SerializedNode{}, fmt.Errorf("invalid depth %q", parts[1])
	}
	weight, err := strconv.Atoi(parts[2])
	if err != nil || weight < 1 || (!n.HasChild && weight != 1) {
		return SerializedNode{}, fmt.Errorf("invalid weight %q", parts[2])
	}
	n.Depth, n.Weight = depth, weight
	if parts[3] != noPostings {
		off, length, ok := strings.Cut(parts[3], ":")
		if !ok {
			return SerializedNode{}, fmt.Errorf("invalid postings block %q", parts[3])
		}
		o, err := strconv.ParseInt(off, 10, 64)
		if err != nil || o < 0 {
			return SerializedNode{}, fmt.Errorf("invalid postings offset %q", off)
		}
		l, err := strconv.ParseUint(length, 10, 32)
		if err != nil || l == 0 {
			return SerializedNode{}, fmt.Errorf("invalid postings length %q", length)
		}
		n.Postings = postings.Block{Offset: o, Length: uint32(l)}
	}
	return n, nil
}
