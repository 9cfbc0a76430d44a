package sparse

import (
	"math"
	"sort"
)

// Layout tells which dimension Ptr runs over.
type Layout int

const (
	// CSC stores columns contiguously: Ptr has Cols+1 offsets, Indices are rows.
	CSC Layout = iota
	// CSR stores rows contiguously: Ptr has Rows+1 offsets, Indices are columns.
	CSR
)

func (l Layout) String() string {
	if l == CSR {
		return "csr"
	}
	return "csc"
}

// Matrix is a compressed sparse matrix.
type Matrix struct {
	Rows    int       `json:"rows"`
	Cols    int       `json:"cols"`
	Layout  Layout    `json:"layout"`
	Values  []float64 `json:"values"`
	Indices []int     `json:"indices"`
	Ptr     []int     `json:"ptr"`
}

// NewMatrix creates an empty matrix with all offsets at zero.
func NewMatrix(rows, cols int, layout Layout) *Matrix {
	m := &Matrix{Rows: rows, Cols: cols, Layout: layout}
	m.Ptr = make([]int, m.Major()+1)
	return m
}

// NNZ returns the number of stored entries.
func (m *Matrix) NNZ() int { return len(m.Values) }

// Major returns the length of the compressed dimension.
func (m *Matrix) Major() int {
	if m.Layout == CSR {
		return m.Rows
	}
	return m.Cols
}

// Minor returns the length of the indexed dimension.
func (m *Matrix) Minor() int {
	if m.Layout == CSR {
		return m.Cols
	}
	return m.Rows
}

// Slice returns the indices and values stored for one major position.
func (m *Matrix) Slice(major int) ([]int, []float64) {
	lo, hi := m.Ptr[major], m.Ptr[major+1]
	return m.Indices[lo:hi], m.Values[lo:hi]
}

// Validate checks structural consistency of the compressed arrays.
func (m *Matrix) Validate() error {
	if m.Rows < 0 || m.Cols < 0 {
		return &InputFormatError{Section: "header", Index: -1, Err: ErrNegativeSize}
	}
	nnz := len(m.Values)
	if len(m.Indices) != nnz {
		return &InputFormatError{Section: "indices", Index: -1, Err: ErrLength}
	}
	if len(m.Ptr) != m.Major()+1 {
		return &InputFormatError{Section: "pointers", Index: -1, Err: ErrLength}
	}
	if m.Ptr[0] != 0 {
		return &InputFormatError{Section: "pointers", Index: 0, Err: ErrPointerOrder}
	}
	for i := 1; i < len(m.Ptr); i++ {
		if m.Ptr[i] < m.Ptr[i-1] {
			return &InputFormatError{Section: "pointers", Index: i, Err: ErrPointerOrder}
		}
	}
	if m.Ptr[len(m.Ptr)-1] != nnz {
		return &InputFormatError{Section: "pointers", Index: len(m.Ptr) - 1, Err: ErrPointerOrder}
	}
	minor := m.Minor()
	for k, idx := range m.Indices {
		if idx < 0 || idx >= minor {
			return &InputFormatError{Section: "indices", Index: k, Err: ErrIndexRange}
		}
	}
	for k, v := range m.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InputFormatError{Section: "values", Index: k, Err: ErrNonFinite}
		}
	}
	return nil
}

// Transpose returns the transposed matrix in the same layout, so the former
// minor dimension becomes the compressed one. Entries inside each major slice
// come out ordered by their new index.
func (m *Matrix) Transpose() *Matrix {
	major, minor := m.Major(), m.Minor()
	t := &Matrix{
		Rows:    m.Cols,
		Cols:    m.Rows,
		Layout:  m.Layout,
		Values:  make([]float64, len(m.Values)),
		Indices: make([]int, len(m.Indices)),
		Ptr:     make([]int, minor+1),
	}

	freq := make([]int, minor)
	for _, idx := range m.Indices {
		freq[idx]++
	}
	for i := 0; i < minor; i++ {
		t.Ptr[i+1] = t.Ptr[i] + freq[i]
	}
	for i := range freq {
		freq[i] = 0
	}
	for j := 0; j < major; j++ {
		for k := m.Ptr[j]; k < m.Ptr[j+1]; k++ {
			idx := m.Indices[k]
			pos := t.Ptr[idx] + freq[idx]
			t.Values[pos] = m.Values[k]
			t.Indices[pos] = j
			freq[idx]++
		}
	}
	return t
}

// SortIndices orders the entries of every major slice by minor index.
func (m *Matrix) SortIndices() {
	for j := 0; j < m.Major(); j++ {
		lo, hi := m.Ptr[j], m.Ptr[j+1]
		sort.Sort(sliceSorter{idx: m.Indices[lo:hi], val: m.Values[lo:hi]})
	}
}

type sliceSorter struct {
	idx []int
	val []float64
}

func (s sliceSorter) Len() int           { return len(s.idx) }
func (s sliceSorter) Less(i, j int) bool { return s.idx[i] < s.idx[j] }
func (s sliceSorter) Swap(i, j int) {
	s.idx[i], s.idx[j] = s.idx[j], s.idx[i]
	s.val[i], s.val[j] = s.val[j], s.val[i]
}
