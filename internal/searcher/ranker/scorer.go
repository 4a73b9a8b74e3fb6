// Package ranker scores posting lists with a tf-idf weighting and selects
// the top documents of a result set for paging.
package ranker

import "math"

// Scorer turns the frequency of a term in a document into a score. Scorers
// are stateless and safe for concurrent use.
type Scorer interface {
	Score(termFrequency int) float64
}

// Factory creates a Scorer for a term that occurs in docsWithTerm of the
// docsInCorpus documents of a field.
type Factory func(docsInCorpus, docsWithTerm int) Scorer

// TFIDF weights the square root of the term frequency by the inverse
// document frequency 1 + ln(N / (df + 1)).
func TFIDF(docsInCorpus, docsWithTerm int) Scorer {
	return tfidf{idf: idf(docsInCorpus, docsWithTerm)}
}

// Null scores every document 0, for unranked boolean retrieval.
func Null(int, int) Scorer {
	return nullScorer{}
}

type tfidf struct {
	idf float64
}

func (s tfidf) Score(termFrequency int) float64 {
	if termFrequency <= 0 {
		return 0
	}
	return math.Sqrt(float64(termFrequency)) * s.idf
}

func idf(docsInCorpus, docsWithTerm int) float64 {
	docsInCorpus = max(docsInCorpus, docsWithTerm, 1)
	return 1 + math.Log(float64(docsInCorpus)/float64(docsWithTerm+1))
}

type nullScorer struct{}

func (nullScorer) Score(int) float64 { return 0 }
