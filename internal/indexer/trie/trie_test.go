package trie

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/postings"
)

func TestInsertAndContains(t *testing.T) {
	tr := New()
	for _, w := range []string{"rambo", "rocky", "raiders", "rain", "man"} {
		tr.Insert(w)
	}

	assert.True(t, tr.Contains("rain"))
	assert.True(t, tr.Contains("raiders"))
	assert.False(t, tr.Contains("rai"), "inner node is not a word")
	assert.False(t, tr.Contains("rainy"))
	assert.False(t, tr.Contains(""))
	assert.Equal(t, 5, tr.Words())
}

func TestInsertSharesPrefixes(t *testing.T) {
	tr := New()
	tr.Insert("rain")
	tr.Insert("raiders")
	// r-a-i shared, then n and d-e-r-s
	assert.Equal(t, 8, tr.Len())

	tr.Insert("rain")
	assert.Equal(t, 8, tr.Len())
	assert.Equal(t, 2, tr.Words())
}

func TestSiblingsStayOrdered(t *testing.T) {
	tr := New()
	for _, w := range []string{"d", "b", "e", "a", "c"} {
		tr.Insert(w)
	}
	var got []rune
	for c := tr.nodes[root].child; c != none; c = tr.nodes[c].sibling {
		got = append(got, tr.nodes[c].value)
	}
	assert.Equal(t, []rune("abcde"), got)
}

func TestInsertAccumulatesPostingsUnderOneNode(t *testing.T) {
	tr := New()
	tr.Insert("rambo", postings.DocumentPosting{DocumentID: 1, TermFrequency: 1})
	tr.Insert("rambo", postings.DocumentPosting{DocumentID: 0, TermFrequency: 2})
	tr.Insert("rambo", postings.DocumentPosting{DocumentID: 1, TermFrequency: 1})

	assert.Equal(t, 5, tr.Len())
	assert.Equal(t, postings.PostingList{
		{DocumentID: 0, TermFrequency: 2},
		{DocumentID: 1, TermFrequency: 2},
	}, tr.Pending("rambo"))
}

func TestAttachPostingsAssignsBlocks(t *testing.T) {
	tr := New()
	tr.Insert("b", postings.DocumentPosting{DocumentID: 3, TermFrequency: 1})
	tr.Insert("a", postings.DocumentPosting{DocumentID: 1, TermFrequency: 4})
	tr.Insert("ab")

	var buf bytes.Buffer
	require.NoError(t, tr.AttachPostings(postings.NewWriter(&buf)))

	pr, err := postings.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()), "postings", 0)
	require.NoError(t, err)

	r := tr.Reader()
	a, ok, err := r.HasWord("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(0), a.Postings.Offset, "pre-order puts a first")

	list, err := pr.Read(a.Postings)
	require.NoError(t, err)
	assert.Equal(t, postings.PostingList{{DocumentID: 1, TermFrequency: 4}}, list)

	ab, ok, err := r.HasWord("ab")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, ab.Postings.IsZero())
}
