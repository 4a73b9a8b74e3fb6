// Package parser turns a query string into the clauses evaluated by the
// collector. A query is a whitespace-separated list of clauses:
//
//	[+|-][field:]value[*|~[similarity]]
//
// A clause without a sign is OR-ed with the clauses before it, '+' makes
// it an AND and '-' a NOT. A trailing '*' matches every word starting with
// value, and '~' every word within the edit distance the similarity allows.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/searcher/collector"
	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
)

// Query is a parsed query string.
type Query struct {
	Raw     string
	Clauses []collector.SubQuery
}

// Normalized renders the clauses in canonical form. Two queries with the
// same normalized form return the same results.
func (q *Query) Normalized() string {
	parts := make([]string, len(q.Clauses))
	for i, c := range q.Clauses {
		var b strings.Builder
		switch c.Operator() {
		case collector.OpAnd:
			b.WriteByte('+')
		case collector.OpNot:
			b.WriteByte('-')
		}
		b.WriteString(c.Field)
		b.WriteByte(':')
		b.WriteString(c.Value)
		switch {
		case c.Prefix:
			b.WriteByte('*')
		case c.Fuzzy:
			fmt.Fprintf(&b, "~%d", c.Edits)
		}
		parts[i] = b.String()
	}
	return strings.Join(parts, " ")
}

// Parser parses query strings. It is safe for concurrent use.
type Parser struct {
	analyzer          *tokenizer.Analyzer
	defaultField      string
	defaultSimilarity float64
}

// New creates a Parser. Values are normalized with analyzer, the analyzer
// the index was built with.
func New(analyzer *tokenizer.Analyzer, defaultField string, defaultSimilarity float64) *Parser {
	return &Parser{
		analyzer:          analyzer,
		defaultField:      defaultField,
		defaultSimilarity: defaultSimilarity,
	}
}

// Parse parses raw. Exact values that analyze into several words become one
// clause per word with the same operator; values that analyze into nothing
// (stop words) are dropped.
func (p *Parser) Parse(raw string) (*Query, error) {
	q := &Query{Raw: raw}
	for _, word := range strings.Fields(raw) {
		clauses, err := p.parseClause(word)
		if err != nil {
			return nil, err
		}
		q.Clauses = append(q.Clauses, clauses...)
	}
	return q, nil
}

func (p *Parser) parseClause(word string) ([]collector.SubQuery, error) {
	var base collector.SubQuery
	switch word[0] {
	case '+':
		base.And = true
		word = word[1:]
	case '-':
		base.Not = true
		word = word[1:]
	}

	base.Field = p.defaultField
	if field, value, ok := strings.Cut(word, ":"); ok {
		if !index.ValidFieldName(field) {
			return nil, fmt.Errorf("%w: invalid field %q", apperrors.ErrInvalidInput, field)
		}
		base.Field = field
		word = value
	}

	switch {
	case strings.HasSuffix(word, "*"):
		base.Prefix = true
		word = strings.TrimSuffix(word, "*")
	case strings.Contains(word, "~"):
		value, sim, _ := strings.Cut(word, "~")
		similarity := p.defaultSimilarity
		if sim != "" {
			parsed, err := strconv.ParseFloat(sim, 64)
			if err != nil || parsed < 0 || parsed > 1 {
				return nil, fmt.Errorf("%w: similarity %q must be a number within [0, 1]", apperrors.ErrInvalidInput, sim)
			}
			similarity = parsed
		}
		base.Fuzzy = true
		base.Similarity = similarity
		word = value
	}
	if word == "" {
		return nil, fmt.Errorf("%w: clause without a value", apperrors.ErrInvalidInput)
	}

	if base.Prefix || base.Fuzzy {
		base.Value = strings.ToLower(word)
		if base.Fuzzy {
			base.Edits = collector.EditsForSimilarity(base.Value, base.Similarity)
		}
		return []collector.SubQuery{base}, nil
	}

	tokens := p.analyzer.Tokenize(base.Field, word)
	clauses := make([]collector.SubQuery, 0, len(tokens))
	for _, tok := range tokens {
		c := base
		c.Value = tok.Term
		clauses = append(clauses, c)
	}
	return clauses, nil
}
