package postings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func list(pairs ...int) PostingList {
	l := make(PostingList, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		l = append(l, DocumentPosting{DocumentID: uint64(pairs[i]), TermFrequency: pairs[i+1]})
	}
	return l
}

func TestJoinAnd(t *testing.T) {
	a := list(1, 1, 3, 2, 5, 1)
	b := list(3, 4, 4, 1, 5, 5)
	assert.Equal(t, list(3, 6, 5, 6), JoinAnd(a, b))
	assert.Empty(t, JoinAnd(a, nil))
}

func TestJoinOr(t *testing.T) {
	a := list(1, 1, 3, 2)
	b := list(2, 1, 3, 4, 9, 1)
	assert.Equal(t, list(1, 1, 2, 1, 3, 6, 9, 1), JoinOr(a, b))
	assert.Equal(t, a, JoinOr(a, nil))
	assert.Equal(t, a, JoinOr(nil, a))
}

func TestJoinOrWithItselfSumsFrequencies(t *testing.T) {
	a := list(1, 1, 3, 2)
	assert.Equal(t, list(1, 2, 3, 4), JoinOr(a, a))
}

func TestJoinsAreAssociative(t *testing.T) {
	a := list(1, 1, 2, 2, 3, 1, 7, 1)
	b := list(2, 1, 3, 3, 7, 2, 8, 1)
	c := list(0, 1, 2, 5, 7, 1)

	assert.Equal(t, JoinAnd(a, JoinAnd(b, c)), JoinAnd(JoinAnd(a, b), c))
	assert.Equal(t, JoinOr(a, JoinOr(b, c)), JoinOr(JoinOr(a, b), c))
	assert.Equal(t, list(2, 8, 7, 4), JoinAnd(JoinAnd(a, b), c))
}

func TestJoinAllOr(t *testing.T) {
	got := JoinAllOr([]PostingList{list(1, 1), list(0, 2, 1, 1), nil, list(4, 1)})
	assert.Equal(t, list(0, 2, 1, 2, 4, 1), got)
	assert.Empty(t, JoinAllOr(nil))
}

func TestJoinPanicsOnUnsortedInput(t *testing.T) {
	assert.Panics(t, func() { JoinAnd(list(3, 1, 1, 1), list(1, 1)) })
	assert.Panics(t, func() { JoinOr(list(1, 1), list(2, 1, 2, 1)) })
	assert.Panics(t, func() { JoinOr(list(1, 0), nil) })
}

func TestCombine(t *testing.T) {
	got := Combine(DocumentPosting{DocumentID: 4, TermFrequency: 2}, DocumentPosting{DocumentID: 4, TermFrequency: 3})
	assert.Equal(t, DocumentPosting{DocumentID: 4, TermFrequency: 5}, got)
	assert.Panics(t, func() {
		Combine(DocumentPosting{DocumentID: 1, TermFrequency: 1}, DocumentPosting{DocumentID: 2, TermFrequency: 1})
	})
}

func TestNormalize(t *testing.T) {
	raw := []DocumentPosting{{5, 1}, {1, 2}, {5, 3}, {2, 1}}
	assert.Equal(t, list(1, 2, 2, 1, 5, 4), Normalize(raw))
	assert.Equal(t, DocumentPosting{5, 1}, raw[0], "input left untouched")
}
