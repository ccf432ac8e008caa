package index

import (
	"iter"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(terms ...string) iter.Seq[string] {
	return slices.Values(terms)
}

func catCorpus() *Model {
	b := NewBuilder()
	b.Add("a.xhtml", seq("THE", "CAT", "SAT"))
	b.Add("b.xhtml", seq("THE", "CAT", "RAN", "AWAY"))
	return b.Build()
}

func TestBuilderCountsAndDocFreq(t *testing.T) {
	m := catCorpus()

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"a.xhtml", "b.xhtml"}, m.Documents())
	assert.Equal(t, 3, m.Total("a.xhtml"))
	assert.Equal(t, 4, m.Total("b.xhtml"))
	assert.Equal(t, 1, m.Count("a.xhtml", "SAT"))
	assert.Equal(t, 0, m.Count("b.xhtml", "SAT"))

	df, ok := m.DocFreq("CAT")
	assert.True(t, ok)
	assert.Equal(t, 2, df)
	df, _ = m.DocFreq("SAT")
	assert.Equal(t, 1, df)
	_, ok = m.DocFreq("DOG")
	assert.False(t, ok)

	assert.Equal(t, 5, m.Vocabulary())
	require.NoError(t, m.Validate())
}

func TestBuilderRepeatedTermsCountOnceInDocFreq(t *testing.T) {
	b := NewBuilder()
	b.Add("d", seq("A", "A", "A", "B"))
	m := b.Build()

	assert.Equal(t, 3, m.Count("d", "A"))
	df, _ := m.DocFreq("A")
	assert.Equal(t, 1, df)
}

func TestBuilderLastWriteWins(t *testing.T) {
	b := NewBuilder()
	b.Add("d", seq("OLD", "SHARED"))
	b.Add("e", seq("SHARED"))
	b.Add("d", seq("NEW"))
	m := b.Build()

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 0, m.Count("d", "OLD"))
	_, ok := m.DocFreq("OLD")
	assert.False(t, ok, "terms only in the replaced table disappear")
	df, _ := m.DocFreq("SHARED")
	assert.Equal(t, 1, df)
	require.NoError(t, m.Validate())
}

func TestBuildResetsBuilder(t *testing.T) {
	b := NewBuilder()
	b.Add("d", seq("X"))
	first := b.Build()
	assert.Equal(t, 0, b.Len())

	b.Add("e", seq("Y"))
	b.Build()
	assert.Equal(t, 1, first.Len(), "earlier model is not affected by later adds")
	assert.Equal(t, 1, first.Count("d", "X"))
}

func TestEmptyDocumentIsKept(t *testing.T) {
	b := NewBuilder()
	b.Add("empty", seq())
	m := b.Build()

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 0, m.Total("empty"))
	require.NoError(t, m.Validate())
}

func TestNewModelDerivesDocFreq(t *testing.T) {
	m, err := NewModel(CorpusIndex{
		"a": {"X": 2, "Y": 1},
		"b": {"X": 1},
	}, nil)
	require.NoError(t, err)

	df, _ := m.DocFreq("X")
	assert.Equal(t, 2, df)
	assert.Equal(t, 3, m.Total("a"))
}

func TestNewModelRejectsInconsistentInput(t *testing.T) {
	tests := []struct {
		name string
		tf   CorpusIndex
		df   DocFreq
	}{
		{"zero count", CorpusIndex{"a": {"X": 0}}, nil},
		{"negative count", CorpusIndex{"a": {"X": -1}}, DocFreq{"X": 1}},
		{"df too high", CorpusIndex{"a": {"X": 1}}, DocFreq{"X": 2}},
		{"df missing term", CorpusIndex{"a": {"X": 1, "Y": 1}}, DocFreq{"X": 1}},
		{"df extra term", CorpusIndex{"a": {"X": 1}}, DocFreq{"X": 1, "Z": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModel(tt.tf, tt.df)
			assert.Error(t, err)
		})
	}
}

func TestDocFreqsSorted(t *testing.T) {
	var terms []string
	for term := range catCorpus().DocFreqs() {
		terms = append(terms, term)
	}
	assert.Equal(t, []string{"AWAY", "CAT", "RAN", "SAT", "THE"}, terms)
}

func TestFingerprint(t *testing.T) {
	a := catCorpus()
	b := catCorpus()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	builder := NewBuilder()
	builder.Add("a.xhtml", seq("THE", "CAT", "SAT", "SAT"))
	builder.Add("b.xhtml", seq("THE", "CAT", "RAN", "AWAY"))
	assert.NotEqual(t, a.Fingerprint(), builder.Build().Fingerprint())

	empty, err := NewModel(nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, empty.Fingerprint())
}
