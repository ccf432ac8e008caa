// Package ranker scores documents against a query with TF-IDF.
//
//	tf(t, d)  = count(t, d) / total(d), or 0 when d has no terms
//	idf(t)    = log10(N / df(t)), df defaulting to 1 for unseen terms
//	score(q,d) = sum of tf(t, d) * idf(t) over every query token t
//
// Repeated query tokens contribute once per occurrence. All functions are
// pure and safe for concurrent use on a shared model.
package ranker

import (
	"math"
	"slices"

	"github.com/gerdreiss/seroost/internal/indexer/index"
	"github.com/gerdreiss/seroost/internal/indexer/tokenizer"
)

// ScoredDoc is one ranked document.
type ScoredDoc struct {
	Document string  `json:"document"`
	Score    float64 `json:"score"`
}

// TF is the share of doc's term occurrences that are term.
func TF(term, doc string, m *index.Model) float64 {
	total := m.Total(doc)
	if total == 0 {
		return 0
	}
	return float64(m.Count(doc, term)) / float64(total)
}

// IDF is log10(N/df). It is 0 for an empty model.
func IDF(term string, m *index.Model) float64 {
	n := m.Len()
	if n == 0 {
		return 0
	}
	df, ok := m.DocFreq(term)
	if !ok || df < 1 {
		df = 1
	}
	return math.Log10(float64(n) / float64(df))
}

// Score sums tf*idf over terms for doc.
func Score(terms []string, doc string, m *index.Model) float64 {
	var s float64
	for _, t := range terms {
		s += TF(t, doc, m) * IDF(t, m)
	}
	return s
}

// Rank tokenizes query and returns every document with a positive score,
// highest first. Equal scores keep ascending document order. The full set is
// returned; truncation is up to the caller.
func Rank(query string, m *index.Model) []ScoredDoc {
	return RankTerms(tokenizer.Tokenize(query), m)
}

// RankTerms is Rank for an already tokenized query.
func RankTerms(terms []string, m *index.Model) []ScoredDoc {
	results := []ScoredDoc{}
	if len(terms) == 0 {
		return results
	}

	idf := make(map[string]float64, len(terms))
	for _, t := range terms {
		if _, ok := idf[t]; !ok {
			idf[t] = IDF(t, m)
		}
	}
	for _, doc := range m.Documents() {
		total := m.Total(doc)
		if total == 0 {
			continue
		}
		var s float64
		for _, t := range terms {
			s += float64(m.Count(doc, t)) / float64(total) * idf[t]
		}
		if s > 0 {
			results = append(results, ScoredDoc{Document: doc, Score: s})
		}
	}
	slices.SortStableFunc(results, func(a, b ScoredDoc) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return results
}
