package sparse

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// tokenReader walks whitespace separated tokens, remembering which section it
// is in so errors can point at the offending entry.
type tokenReader struct {
	sc *bufio.Scanner
}

func newTokenReader(r io.Reader) *tokenReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)
	return &tokenReader{sc: sc}
}

func (t *tokenReader) next(section string, index int) (string, error) {
	if !t.sc.Scan() {
		if err := t.sc.Err(); err != nil {
			return "", &InputFormatError{Section: section, Index: index, Err: err}
		}
		return "", &InputFormatError{Section: section, Index: index, Err: ErrTruncated}
	}
	return t.sc.Text(), nil
}

func (t *tokenReader) readInt(section string, index int) (int, error) {
	tok, err := t.next(section, index)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, &InputFormatError{Section: section, Index: index, Err: err}
	}
	return v, nil
}

func (t *tokenReader) readFloat(section string, index int) (float64, error) {
	tok, err := t.next(section, index)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, &InputFormatError{Section: section, Index: index, Err: err}
	}
	return v, nil
}

// MaxDimension is the largest row or column count the readers accept.
const MaxDimension = 1 << 24

// maxPrealloc bounds the capacity reserved from an untrusted header. Larger
// sections grow as their tokens arrive.
const maxPrealloc = 1 << 20

func prealloc(n int) int {
	if n > maxPrealloc {
		return maxPrealloc
	}
	return n
}

// readBody reads nnz values, nnz indices and major+1 offsets into m.
func (t *tokenReader) readBody(m *Matrix, nnz int) error {
	m.Values = make([]float64, 0, prealloc(nnz))
	for k := 0; k < nnz; k++ {
		v, err := t.readFloat("values", k)
		if err != nil {
			return err
		}
		m.Values = append(m.Values, v)
	}
	m.Indices = make([]int, 0, prealloc(nnz))
	for k := 0; k < nnz; k++ {
		v, err := t.readInt("indices", k)
		if err != nil {
			return err
		}
		m.Indices = append(m.Indices, v)
	}
	m.Ptr = make([]int, 0, prealloc(m.Major()+1))
	for k := 0; k <= m.Major(); k++ {
		v, err := t.readInt("pointers", k)
		if err != nil {
			return err
		}
		m.Ptr = append(m.Ptr, v)
	}
	return m.Validate()
}

// ReadSimilarity parses a square similarity matrix in compressed-sparse-column
// form: a header "n nnz", nnz values, nnz source (row) indices and n+1 column
// offsets. Column j holds the similarities s(i, j) towards destination j.
// Nothing is returned unless the whole matrix parses and validates.
func ReadSimilarity(r io.Reader) (*Matrix, error) {
	t := newTokenReader(r)
	n, err := t.readInt("header", 0)
	if err != nil {
		return nil, err
	}
	nnz, err := t.readInt("header", 1)
	if err != nil {
		return nil, err
	}
	if n < 0 || nnz < 0 {
		return nil, &InputFormatError{Section: "header", Index: -1, Err: ErrNegativeSize}
	}
	if n > MaxDimension {
		return nil, &InputFormatError{Section: "header", Index: 0, Err: ErrTooLarge}
	}
	m := &Matrix{Rows: n, Cols: n, Layout: CSC}
	if err := t.readBody(m, nnz); err != nil {
		return nil, err
	}
	return m, nil
}

// ReadWeights parses a weighted term matrix in compressed-sparse-row form:
// a header "rows cols nnz", nnz values, nnz column indices and rows+1 row
// offsets.
func ReadWeights(r io.Reader) (*Matrix, error) {
	t := newTokenReader(r)
	var header [3]int
	for i := range header {
		v, err := t.readInt("header", i)
		if err != nil {
			return nil, err
		}
		header[i] = v
	}
	rows, cols, nnz := header[0], header[1], header[2]
	if rows < 0 || cols < 0 || nnz < 0 {
		return nil, &InputFormatError{Section: "header", Index: -1, Err: ErrNegativeSize}
	}
	for i, dim := range header[:2] {
		if dim > MaxDimension {
			return nil, &InputFormatError{Section: "header", Index: i, Err: ErrTooLarge}
		}
	}
	m := &Matrix{Rows: rows, Cols: cols, Layout: CSR}
	if err := t.readBody(m, nnz); err != nil {
		return nil, err
	}
	return m, nil
}

// WriteSimilarity writes m in the format accepted by ReadSimilarity.
func WriteSimilarity(w io.Writer, m *Matrix) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d\n\n", m.Cols, m.NNZ())
	writeBody(bw, m)
	return bw.Flush()
}

// WriteWeights writes m in the format accepted by ReadWeights.
func WriteWeights(w io.Writer, m *Matrix) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d %d\n\n", m.Rows, m.Cols, m.NNZ())
	writeBody(bw, m)
	return bw.Flush()
}

func writeBody(bw *bufio.Writer, m *Matrix) {
	for _, v := range m.Values {
		bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		bw.WriteByte('\n')
	}
	bw.WriteByte('\n')
	for _, idx := range m.Indices {
		bw.WriteString(strconv.Itoa(idx))
		bw.WriteByte('\n')
	}
	bw.WriteByte('\n')
	for _, p := range m.Ptr {
		bw.WriteString(strconv.Itoa(p))
		bw.WriteByte('\n')
	}
}
