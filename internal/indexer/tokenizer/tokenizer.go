// Package tokenizer provides text analysis for the indexer and the query
// parser. It lower-cases input, splits on non-alphanumeric boundaries, and
// optionally removes stop-words, drops short tokens, and applies the
// Snowball English stemmer.
package tokenizer

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Options controls an Analyzer. The zero value keeps every token as is,
// lower-cased.
type Options struct {
	Stem            bool
	RemoveStopWords bool
	MinTokenLength  int
}

// Token is a single normalised term of a field and its position among the
// kept tokens of that field.
type Token struct {
	Field    string
	Term     string
	Position int
}

// Analyzer turns field text into tokens. It holds no mutable state and is
// safe for concurrent use.
type Analyzer struct {
	opts Options
}

// New creates an Analyzer with the given options.
func New(opts Options) *Analyzer {
	return &Analyzer{opts: opts}
}

// Tokenize breaks the text of one field into tokens.
func (a *Analyzer) Tokenize(field, text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		term, ok := a.normalize(word)
		if !ok {
			continue
		}
		tokens = append(tokens, Token{Field: field, Term: term, Position: pos})
		pos++
	}
	return tokens
}

// TokenizeDocument analyzes every field of a document. Fields are visited
// in name order so the output is deterministic.
func (a *Analyzer) TokenizeDocument(fields map[string]string) []Token {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	var tokens []Token
	for _, name := range names {
		tokens = append(tokens, a.Tokenize(name, fields[name])...)
	}
	return tokens
}

// Term normalizes a single query word the same way indexed words are. It
// returns "" when the word would not have been indexed.
func (a *Analyzer) Term(word string) string {
	term, ok := a.normalize(strings.ToLower(word))
	if !ok {
		return ""
	}
	return term
}

func (a *Analyzer) normalize(word string) (string, bool) {
	if word == "" || utf8.RuneCountInString(word) < a.opts.MinTokenLength {
		return "", false
	}
	if a.opts.RemoveStopWords {
		if _, isStop := stopWords[word]; isStop {
			return "", false
		}
	}
	if a.opts.Stem {
		word = english.Stem(word, false)
		if word == "" {
			return "", false
		}
	}
	return word, true
}
