package index

import "iter"

// Builder accumulates documents into a Model. It is not safe for concurrent
// use.
type Builder struct {
	tf CorpusIndex
	df DocFreq
}

func NewBuilder() *Builder {
	return &Builder{tf: make(CorpusIndex), df: make(DocFreq)}
}

// Count folds a term sequence into a TermFreq.
func Count(terms iter.Seq[string]) TermFreq {
	tf := make(TermFreq)
	for t := range terms {
		tf[t]++
	}
	return tf
}

// Add counts terms and stores them under doc. Re-adding doc replaces the
// earlier table.
func (b *Builder) Add(doc string, terms iter.Seq[string]) {
	b.AddTable(doc, Count(terms))
}

// AddTable stores tf under doc and takes ownership of it. Terms with a
// non-positive count are dropped.
func (b *Builder) AddTable(doc string, tf TermFreq) {
	if old, ok := b.tf[doc]; ok {
		for term := range old {
			if b.df[term]--; b.df[term] <= 0 {
				delete(b.df, term)
			}
		}
	}
	for term, n := range tf {
		if n < 1 {
			delete(tf, term)
			continue
		}
		b.df[term]++
	}
	b.tf[doc] = tf
}

// Len is the number of documents added so far.
func (b *Builder) Len() int { return len(b.tf) }

// Build returns the Model and resets the Builder.
func (b *Builder) Build() *Model {
	m := newModel(b.tf, b.df)
	b.tf = make(CorpusIndex)
	b.df = make(DocFreq)
	return m
}
