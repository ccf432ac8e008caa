// Package index holds the TF-IDF frequency model: per-document term counts,
// the corpus-wide document frequency table, and the builder that produces
// them.
package index

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// TermFreq maps a term to its occurrence count in one document. Counts are
// always >= 1; absent terms have count 0.
type TermFreq map[string]int

// DocFreq maps a term to the number of documents containing it.
type DocFreq map[string]int

// CorpusIndex maps a document identifier to its TermFreq.
type CorpusIndex map[string]TermFreq

// Model is an immutable snapshot of a corpus. It is safe for concurrent
// readers; a refresh builds a new Model instead of changing this one.
type Model struct {
	tf     CorpusIndex
	df     DocFreq
	totals map[string]int
	docs   []string

	fpOnce      sync.Once
	fingerprint string
}

// NewModel wraps tf and df, taking ownership of both maps. If df is nil it
// is derived from tf. The result is validated before it is returned.
func NewModel(tf CorpusIndex, df DocFreq) (*Model, error) {
	if tf == nil {
		tf = CorpusIndex{}
	}
	if df == nil {
		df = DeriveDocFreq(tf)
	}
	m := newModel(tf, df)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func newModel(tf CorpusIndex, df DocFreq) *Model {
	m := &Model{
		tf:     tf,
		df:     df,
		totals: make(map[string]int, len(tf)),
		docs:   slices.Sorted(maps.Keys(tf)),
	}
	for doc, terms := range tf {
		total := 0
		for _, n := range terms {
			total += n
		}
		m.totals[doc] = total
	}
	return m
}

// Len is the number of documents, N.
func (m *Model) Len() int { return len(m.tf) }

// Vocabulary is the number of distinct terms in the corpus.
func (m *Model) Vocabulary() int { return len(m.df) }

// Documents returns the document identifiers in ascending order. The slice
// is shared and must not be modified.
func (m *Model) Documents() []string { return m.docs }

// Terms returns the TermFreq of doc. The map is shared and must not be
// modified.
func (m *Model) Terms(doc string) (TermFreq, bool) {
	t, ok := m.tf[doc]
	return t, ok
}

// Count returns how often term occurs in doc.
func (m *Model) Count(doc, term string) int {
	return m.tf[doc][term]
}

// Total returns the sum of all term counts of doc.
func (m *Model) Total(doc string) int {
	return m.totals[doc]
}

// DocFreq returns the number of documents containing term.
func (m *Model) DocFreq(term string) (int, bool) {
	n, ok := m.df[term]
	return n, ok
}

// DocFreqs iterates the document frequency table in ascending term order.
func (m *Model) DocFreqs() iter.Seq2[string, int] {
	return func(yield func(string, int) bool) {
		for _, term := range slices.Sorted(maps.Keys(m.df)) {
			if !yield(term, m.df[term]) {
				return
			}
		}
	}
}

// Tables exposes the underlying maps for serialization. Both are shared and
// must not be modified.
func (m *Model) Tables() (CorpusIndex, DocFreq) {
	return m.tf, m.df
}

// Fingerprint is a content hash of the model. Two models with identical
// documents and counts share a fingerprint.
func (m *Model) Fingerprint() string {
	m.fpOnce.Do(func() {
		h := xxhash.New()
		var buf []byte
		for _, doc := range m.docs {
			buf = append(buf[:0], 'D')
			buf = append(buf, doc...)
			buf = append(buf, 0)
			terms := m.tf[doc]
			for _, term := range slices.Sorted(maps.Keys(terms)) {
				buf = append(buf, term...)
				buf = append(buf, 0)
				buf = strconv.AppendInt(buf, int64(terms[term]), 10)
				buf = append(buf, 0)
			}
			_, _ = h.Write(buf)
		}
		m.fingerprint = strconv.FormatUint(h.Sum64(), 16)
	})
	return m.fingerprint
}

// Validate checks that every count is positive and that the document
// frequency of each term equals the number of documents containing it.
func (m *Model) Validate() error {
	want := make(DocFreq, len(m.df))
	for doc, terms := range m.tf {
		for term, n := range terms {
			if n < 1 {
				return fmt.Errorf("document %q: term %q has count %d", doc, term, n)
			}
			want[term]++
		}
	}
	if len(want) != len(m.df) {
		return fmt.Errorf("document frequency table has %d terms, documents contain %d", len(m.df), len(want))
	}
	for term, n := range want {
		if got := m.df[term]; got != n {
			return fmt.Errorf("term %q: document frequency %d, found in %d documents", term, got, n)
		}
	}
	return nil
}

// DeriveDocFreq computes the document frequency table of tf.
func DeriveDocFreq(tf CorpusIndex) DocFreq {
	df := make(DocFreq)
	for _, terms := range tf {
		for term := range terms {
			df[term]++
		}
	}
	return df
}
