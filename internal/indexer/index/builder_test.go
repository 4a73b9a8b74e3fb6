package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/postings"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
)

func analyze(fields map[string]string) []tokenizer.Token {
	return tokenizer.New(tokenizer.Options{}).TokenizeDocument(fields)
}

func TestAddDocumentCountsFrequenciesPerField(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddDocument(7, analyze(map[string]string{
		"title": "rambo rambo",
		"body":  "rambo",
	})))
	require.NoError(t, b.AddDocument(3, analyze(map[string]string{"title": "rambo"})))

	snap := b.Seal()
	require.NotNil(t, snap)
	assert.Equal(t, []string{"body", "title"}, snap.FieldNames())
	assert.Equal(t, 2, snap.DocCount())
	assert.Equal(t, 2, snap.Fields["title"].Docs)
	assert.Equal(t, 1, snap.Fields["body"].Docs)
	assert.Equal(t, postings.PostingList{
		{DocumentID: 3, TermFrequency: 1},
		{DocumentID: 7, TermFrequency: 2},
	}, snap.Fields["title"].Trie.Pending("rambo"))
}

func TestSealResetsBuilder(t *testing.T) {
	b := NewBuilder()
	assert.Nil(t, b.Seal())

	require.NoError(t, b.AddDocument(1, analyze(map[string]string{"title": "rocky"})))
	assert.True(t, b.Contains(1))
	assert.Equal(t, 1, b.DocCount())
	assert.Positive(t, b.Size())

	require.NotNil(t, b.Seal())
	assert.False(t, b.Contains(1))
	assert.Zero(t, b.DocCount())
	assert.Zero(t, b.Size())
	assert.Nil(t, b.Seal())
}

func TestDocumentWithoutTokensIsStillBuffered(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddDocument(9, nil))
	snap := b.Seal()
	require.NotNil(t, snap)
	assert.Empty(t, snap.Fields)
	assert.True(t, snap.Docs.Contains(9))
}

func TestAddDocumentRejectsDuplicatesAndBadFields(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddDocument(1, analyze(map[string]string{"title": "rocky"})))

	err := b.AddDocument(1, analyze(map[string]string{"title": "rocky"}))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	err = b.AddDocument(2, analyze(map[string]string{"../etc": "rocky"}))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.False(t, b.Contains(2))
}

func TestAddDocumentRejectsTermsTooLongForTrie(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddDocument(1, analyze(map[string]string{"title": "rambo"})))

	long := strings.Repeat("a", MaxTermLength+1)
	err := b.AddDocument(2, analyze(map[string]string{"title": "rocky", "body": long}))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.False(t, b.Contains(2))
	assert.Equal(t, 1, b.DocCount())

	require.NoError(t, b.AddDocument(3, analyze(map[string]string{"body": long[1:]})))
	snap := b.Seal()
	require.NotNil(t, snap)
	assert.Equal(t, []string{"body", "title"}, snap.FieldNames())
	assert.Empty(t, snap.Fields["title"].Trie.Pending("rocky"))
}

func TestValidFieldName(t *testing.T) {
	for _, name := range []string{"title", "body_text", "tag-2", "X"} {
		assert.True(t, ValidFieldName(name), name)
	}
	for _, name := range []string{"", "a/b", "a.b", "tïtle", "has space"} {
		assert.False(t, ValidFieldName(name), name)
	}
}
