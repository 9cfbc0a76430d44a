package evaluation

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/affinity-clustering-service/pkg/sparse"
)

// blocks returns a CSC matrix over items {0,1,2} and {3,4} with no similarity
// between the two groups.
func blocks() *sparse.Matrix {
	// column k lists s(i, k)
	return &sparse.Matrix{
		Rows:    5,
		Cols:    5,
		Layout:  sparse.CSC,
		Values:  []float64{-1, -1, -2, -2, -0.5, -0.5},
		Indices: []int{1, 0, 2, 1, 4, 3},
		Ptr:     []int{0, 1, 3, 4, 5, 6},
	}
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(blocks(), []int{1, 1, 1, 3, 3})
	require.NoError(t, err)

	assert.Equal(t, 5, s.NumItems)
	assert.Equal(t, 2, s.NumClusters)
	assert.Equal(t, []int{1, 3}, s.Exemplars)
	assert.Equal(t, []int{3, 2}, s.ClusterSizes)
	assert.InDelta(t, 2.5, s.MeanSize, 1e-12)
	assert.InDelta(t, math.Sqrt(0.5), s.StdDevSize, 1e-12)
	assert.Equal(t, 3, s.LargestSize)
	assert.Zero(t, s.Singletons)

	assert.InDelta(t, -3.5, s.NetSimilarity, 1e-12)
	assert.Zero(t, s.MissingEdges)
	assert.True(t, s.Consistent)
	assert.Empty(t, s.Inconsistent)

	assert.Equal(t, 2, s.Components)
	assert.Greater(t, s.ExemplarRank, 0.0)
	assert.Less(t, s.ExemplarRank, 1.0)
}

func TestSummarize_Inconsistent(t *testing.T) {
	s, err := Summarize(blocks(), []int{2, 1, 1, 3, 3})
	require.NoError(t, err)

	assert.False(t, s.Consistent)
	assert.Equal(t, []int{0}, s.Inconsistent)
	assert.Equal(t, 1, s.MissingEdges)
	assert.InDelta(t, -2.5, s.NetSimilarity, 1e-12)
}

func TestSummarize_Singletons(t *testing.T) {
	s, err := Summarize(blocks(), []int{0, 1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 5, s.NumClusters)
	assert.Equal(t, 5, s.Singletons)
	assert.Zero(t, s.StdDevSize)
	assert.InDelta(t, 1.0, s.ExemplarRank, 1e-6)
}

func TestSummarize_CSRMatchesCSC(t *testing.T) {
	csr := blocks().Transpose()
	csr.Layout = sparse.CSR
	csr.Rows, csr.Cols = 5, 5

	want, err := Summarize(blocks(), []int{1, 1, 1, 3, 3})
	require.NoError(t, err)
	got, err := Summarize(csr, []int{1, 1, 1, 3, 3})
	require.NoError(t, err)
	assert.Equal(t, want.NetSimilarity, got.NetSimilarity)
	assert.Equal(t, want.Components, got.Components)
}

func TestSummarize_Errors(t *testing.T) {
	_, err := Summarize(blocks(), []int{0, 1})
	assert.ErrorIs(t, err, ErrAssignmentLength)

	_, err = Summarize(blocks(), []int{0, 1, 2, 3, 9})
	var inErr *sparse.InputFormatError
	require.True(t, errors.As(err, &inErr))
	assert.Equal(t, 4, inErr.Index)

	_, err = Summarize(&sparse.Matrix{Rows: 2, Cols: 3, Ptr: []int{0, 0, 0, 0}}, []int{0, 1})
	assert.Error(t, err)
}

// ring links every item to both neighbours. A dense PageRank over this many
// items would need gigabytes; the sparse one is linear in the edges.
func ring(n int) *sparse.Matrix {
	m := &sparse.Matrix{Rows: n, Cols: n, Layout: sparse.CSC, Ptr: make([]int, n+1)}
	for k := 0; k < n; k++ {
		lo, hi := (k+n-1)%n, (k+1)%n
		if lo > hi {
			lo, hi = hi, lo
		}
		m.Values = append(m.Values, -1, -1)
		m.Indices = append(m.Indices, lo, hi)
		m.Ptr[k+1] = len(m.Values)
	}
	return m
}

func TestSummarize_LargeSparseGraph(t *testing.T) {
	const n = 20000
	sim := ring(n)
	require.NoError(t, sim.Validate())

	exemplars := make([]int, n)
	for i := range exemplars {
		exemplars[i] = i - i%2
	}

	s, err := Summarize(sim, exemplars)
	require.NoError(t, err)
	assert.Equal(t, n/2, s.NumClusters)
	assert.Equal(t, 1, s.Components)
	assert.True(t, s.Consistent)
	assert.Zero(t, s.MissingEdges)
	assert.Equal(t, -float64(n/2), s.NetSimilarity)
	// Every item of a ring ranks the same.
	assert.InDelta(t, 0.5, s.ExemplarRank, 1e-6)
}
