package apcluster

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/gilchrisn/affinity-clustering-service/pkg/sparse"
)

// WriteExemplars writes the item count, a blank line, and one exemplar index
// per line.
func WriteExemplars(w io.Writer, exemplars []int) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n\n", len(exemplars))
	for _, ex := range exemplars {
		bw.WriteString(strconv.Itoa(ex))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// ReadExemplars parses the output of WriteExemplars.
func ReadExemplars(r io.Reader) ([]int, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	readInt := func(section string, index int) (int, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return 0, &InputFormatError{Section: section, Index: index, Err: err}
			}
			return 0, &InputFormatError{Section: section, Index: index, Err: sparse.ErrTruncated}
		}
		v, err := strconv.Atoi(sc.Text())
		if err != nil {
			return 0, &InputFormatError{Section: section, Index: index, Err: err}
		}
		return v, nil
	}

	n, err := readInt("header", 0)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, &InputFormatError{Section: "header", Index: 0, Err: sparse.ErrNegativeSize}
	}
	exemplars := make([]int, n)
	for i := range exemplars {
		v, err := readInt("exemplars", i)
		if err != nil {
			return nil, err
		}
		if v < 0 || v >= n {
			return nil, &InputFormatError{Section: "exemplars", Index: i, Err: sparse.ErrIndexRange}
		}
		exemplars[i] = v
	}
	return exemplars, nil
}
