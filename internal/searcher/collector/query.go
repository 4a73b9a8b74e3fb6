package collector

import (
	"math"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/postings"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/trie"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/searcher/ranker"
)

// Operator is how a clause combines with the clauses before it.
type Operator int

const (
	OpOr Operator = iota
	OpAnd
	OpNot
)

func (o Operator) String() string {
	switch o {
	case OpAnd:
		return "AND"
	case OpNot:
		return "NOT"
	default:
		return "OR"
	}
}

// SubQuery is one field:value clause of a parsed query.
type SubQuery struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	And    bool   `json:"and,omitempty"`
	Not    bool   `json:"not,omitempty"`
	Prefix bool   `json:"prefix,omitempty"`
	Fuzzy  bool   `json:"fuzzy,omitempty"`
	// Similarity is the ratio a fuzzy clause was written with; Edits is
	// the maximum edit distance it resolves to.
	Similarity float64 `json:"similarity,omitempty"`
	Edits      int     `json:"edits,omitempty"`
}

// Operator returns the boolean operator of the clause. NOT wins over AND.
func (q SubQuery) Operator() Operator {
	switch {
	case q.Not:
		return OpNot
	case q.And:
		return OpAnd
	default:
		return OpOr
	}
}

// EditsForSimilarity converts a similarity ratio in [0, 1] into a maximum
// edit distance for value: floor(len(value) * (1 - similarity)).
func EditsForSimilarity(value string, similarity float64) int {
	similarity = math.Max(0, math.Min(1, similarity))
	return int(math.Floor(float64(utf8.RuneCountInString(value)) * (1 - similarity)))
}

// Term is a word resolved from the trie of a field.
type Term struct {
	Field string    `json:"field"`
	Word  trie.Word `json:"word"`
}

// DocumentScore is the score of one document in one index generation.
type DocumentScore = ranker.ScoredDoc

// QueryContext carries one clause through the stages of a collection.
type QueryContext struct {
	SubQuery
	Terms    []Term
	Postings postings.PostingList
	Scores   []DocumentScore
}
