package tfidf

import (
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/affinity-clustering-service/pkg/sparse"
)

// Word 3 occurs in every document and is filtered by MaxDF; document 3 only
// contains word 3 and ends up empty.
const corpusText = `4 3
1 1
1 1
1 2
1 3
2 1
2 3
3 3
4 2
4 2
4 2
4 3
`

func TestReadCorpus(t *testing.T) {
	c, err := ReadCorpus(strings.NewReader(corpusText))
	require.NoError(t, err)

	assert.Equal(t, 4, c.DocCount)
	assert.Equal(t, 3, c.WordCount)
	assert.Equal(t, 2, c.TermFrequency(0, 0))
	assert.Equal(t, 3, c.TermFrequency(3, 1))
	assert.Equal(t, 2, c.DocumentFrequency(0))
	assert.Equal(t, 2, c.DocumentFrequency(1))
	assert.Equal(t, 4, c.DocumentFrequency(2))
}

func TestWeights(t *testing.T) {
	c, err := ReadCorpus(strings.NewReader(corpusText))
	require.NoError(t, err)

	m, err := c.Weights(Options{MinDF: 1, MaxDF: 3})
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Equal(t, sparse.CSR, m.Layout)
	assert.Equal(t, []int{0, 2, 3, 3, 4}, m.Ptr)
	assert.Equal(t, []int{0, 1, 0, 1}, m.Indices)
	assert.InDeltaSlice(t, []float64{2.0 / 3, 1.0 / 3, 1, 1}, m.Values, 1e-12)
}

func TestWeights_MinDF(t *testing.T) {
	c, err := ReadCorpus(strings.NewReader(corpusText))
	require.NoError(t, err)

	m, err := c.Weights(Options{MinDF: 3, MaxDF: 3})
	require.NoError(t, err)
	assert.Zero(t, m.NNZ())
	assert.Equal(t, []int{0, 0, 0, 0, 0}, m.Ptr)
}

func TestWeights_NonPositiveSum(t *testing.T) {
	c := NewCorpus(2, 1)
	require.NoError(t, c.AddWord(0, 0))
	require.NoError(t, c.AddWord(1, 0))

	// ln(2/2) = 0 leaves nothing to normalise by.
	_, err := c.Weights(Options{MinDF: 1, MaxDF: 2})
	var numErr *sparse.NumericalInstabilityError
	require.True(t, errors.As(err, &numErr))
	assert.Equal(t, "tfidf", numErr.Phase)
	assert.Equal(t, 0, numErr.Index)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions(125, 5, 0.1)
	assert.Equal(t, Options{MinDF: 5, MaxDF: 12}, opts)
	assert.Error(t, Options{MinDF: -1}.Validate())
}

func TestReadCorpus_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		section string
		target  error
	}{
		{"Empty", "", "header", sparse.ErrTruncated},
		{"Negative", "-1 4", "header", sparse.ErrNegativeSize},
		{"OddPair", "2 2\n1 1\n2", "occurrences", ErrOddPair},
		{"DocOutOfRange", "2 2\n3 1", "occurrences", sparse.ErrIndexRange},
		{"ZeroBasedWord", "2 2\n1 0", "occurrences", sparse.ErrIndexRange},
		{"TooManyDocuments", "67000000 2\n1 1", "header", sparse.ErrTooLarge},
		{"TooManyWords", "2 67000000\n1 1", "header", sparse.ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCorpus(strings.NewReader(tt.input))
			var inErr *sparse.InputFormatError
			require.True(t, errors.As(err, &inErr), "got %v", err)
			assert.Equal(t, tt.section, inErr.Section)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	_, err := ReadCorpus(strings.NewReader("2 2\n1 x"))
	var inErr *sparse.InputFormatError
	require.True(t, errors.As(err, &inErr))
	assert.Equal(t, "occurrences", inErr.Section)
}

func TestReadCorpus_SparseStorage(t *testing.T) {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	c, err := ReadCorpus(strings.NewReader("10000000 10000000\n1 1\n10000000 10000000\n"))
	runtime.ReadMemStats(&after)
	require.NoError(t, err)

	// Declared dimensions reserve nothing up front.
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
	assert.Equal(t, 1, c.TermFrequency(0, 0))
	assert.Equal(t, 1, c.DocumentFrequency(9999999))
	assert.Zero(t, c.TermFrequency(5, 5))
}
