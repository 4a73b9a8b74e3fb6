package trie

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/postings"
)

var sampleRecords = []SerializedNode{
	{Value: 'a', HasSibling: true, HasChild: true, Depth: 0, Weight: 7},
	{Value: 'é', HasChild: true, EndOfWord: true, Depth: 3, Weight: 2, Postings: postings.Block{Offset: 1 << 40, Length: 17}},
	{Value: '|', EndOfWord: true, Depth: 12, Weight: 1, Postings: postings.Block{Offset: 0, Length: 9}},
	{Value: '\n', HasSibling: true, Depth: 1, Weight: 1},
	{Value: '日', Depth: MaxDepth, Weight: 1},
}

func TestBinaryRecordRoundTrip(t *testing.T) {
	buf := make([]byte, RecordSize)
	for _, want := range sampleRecords {
		EncodeBinary(buf, want)
		got, err := DecodeBinary(buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestTextRecordRoundTrip(t *testing.T) {
	for _, want := range sampleRecords {
		line := FormatText(want)
		require.True(t, strings.HasSuffix(line, "\n"))
		value, size := utf8.DecodeRuneInString(line)
		got, err := ParseText(value, strings.TrimSuffix(line[size:], "\n"))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestFormatTextLayout(t *testing.T) {
	line := FormatText(SerializedNode{Value: 'r', HasChild: true, EndOfWord: true, Depth: 2, Weight: 5, Postings: postings.Block{Offset: 40, Length: 8}})
	assert.Equal(t, "r011|000002|0000000005|40:8\n", line)

	line = FormatText(SerializedNode{Value: 'x', HasSibling: true, Weight: 1})
	assert.Equal(t, "x100|000000|0000000001|-\n", line)
}

func TestDecodeBinaryRejectsInvalidRecords(t *testing.T) {
	buf := make([]byte, RecordSize)
	EncodeBinary(buf, SerializedNode{Value: 'a', Weight: 1})

	_, err := DecodeBinary(buf[:RecordSize-1])
	assert.Error(t, err, "short record")

	bad := append([]byte(nil), buf...)
	bad[4] = 0x80
	_, err = DecodeBinary(bad)
	assert.Error(t, err, "unknown flag")

	bad = append([]byte(nil), buf...)
	bad[8] = 3
	_, err = DecodeBinary(bad)
	assert.Error(t, err, "leaf with weight above one")

	bad = append([]byte(nil), buf...)
	bad[3] = 0xff
	_, err = DecodeBinary(bad)
	assert.Error(t, err, "invalid rune")
}

func TestParseTextRejectsInvalidLines(t *testing.T) {
	cases := map[string]string{
		"missing fields":  "010|000001",
		"bad flag":        "020|000001|0000000001|-",
		"unpadded depth":  "000|1|0000000001|-",
		"zero weight":     "000|000001|0000000000|-",
		"leaf weight":     "000|000001|0000000004|-",
		"bad block":       "000|000001|0000000001|12",
		"empty block":     "000|000001|0000000001|12:0",
		"negative offset": "000|000001|0000000001|-1:4",
	}
	for name, rest := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseText('a', rest)
			assert.Error(t, err)
		})
	}
}

type recordingEncoder struct {
	records []SerializedNode
}

func (e *recordingEncoder) Encode(n SerializedNode) error {
	e.records = append(e.records, n)
	return nil
}

func (e *recordingEncoder) Flush() error { return nil }

func TestWriteEmitsPreOrderWithSubtreeWeights(t *testing.T) {
	tr := New()
	for _, w := range []string{"b", "ac", "ab"} {
		tr.Insert(w)
	}
	enc := &recordingEncoder{}
	require.NoError(t, Write(tr, enc))

	assert.Equal(t, []SerializedNode{
		{Value: 'a', HasSibling: true, HasChild: true, Depth: 0, Weight: 3},
		{Value: 'b', HasSibling: true, EndOfWord: true, Depth: 1, Weight: 1},
		{Value: 'c', EndOfWord: true, Depth: 1, Weight: 1},
		{Value: 'b', EndOfWord: true, Depth: 0, Weight: 1},
	}, enc.records)
}

func TestBinaryEncoderChecksRecordCount(t *testing.T) {
	var buf bytes.Buffer
	enc := NewBinaryEncoder(&buf, 2)
	require.NoError(t, enc.Encode(SerializedNode{Value: 'a', Weight: 1}))
	assert.Error(t, enc.Flush())

	enc = NewBinaryEncoder(&buf, 0)
	assert.Error(t, enc.Encode(SerializedNode{Value: 'a', Weight: 1}))
}

func TestWriteBinaryFileSize(t *testing.T) {
	tr := New()
	for _, w := range []string{"rambo", "rocky", "raiders", "rain", "man"} {
		tr.Insert(w)
	}
	var buf bytes.Buffer
	require.NoError(t, WriteBinary(tr, &buf))
	assert.Equal(t, HeaderSize+tr.Len()*RecordSize, buf.Len())
}
