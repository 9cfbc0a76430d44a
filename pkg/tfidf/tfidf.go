// Package tfidf turns a bag-of-words corpus into row-normalised tf-idf weights.
package tfidf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/gilchrisn/affinity-clustering-service/pkg/sparse"
)

// ErrOddPair is returned when the occurrence list ends in the middle of a pair.
var ErrOddPair = errors.New("tfidf: occurrence list ends with an unpaired document id")

// Corpus counts term occurrences per document.
type Corpus struct {
	DocCount  int
	WordCount int

	// Both grow with the occurrences seen, not with the declared dimensions.
	tf map[int]map[int]int // document -> word -> occurrences
	df map[int]int         // word -> documents containing it
}

// NewCorpus creates an empty corpus of the given dimensions.
func NewCorpus(docCount, wordCount int) *Corpus {
	return &Corpus{
		DocCount:  docCount,
		WordCount: wordCount,
		tf:        make(map[int]map[int]int),
		df:        make(map[int]int),
	}
}

// AddWord records one occurrence of wordID in docID, both 0-based.
func (c *Corpus) AddWord(docID, wordID int) error {
	if docID < 0 || docID >= c.DocCount || wordID < 0 || wordID >= c.WordCount {
		return sparse.ErrIndexRange
	}
	counts, ok := c.tf[docID]
	if !ok {
		counts = make(map[int]int)
		c.tf[docID] = counts
	}
	if counts[wordID] == 0 {
		c.df[wordID]++
	}
	counts[wordID]++
	return nil
}

// DocumentFrequency returns the number of documents that contain wordID.
func (c *Corpus) DocumentFrequency(wordID int) int { return c.df[wordID] }

// TermFrequency returns how often wordID occurs in docID.
func (c *Corpus) TermFrequency(docID, wordID int) int { return c.tf[docID][wordID] }

// ReadCorpus parses a header "docCount wordCount" followed by 1-based
// "docId wordId" pairs, one per occurrence, until end of input. Dimensions
// above sparse.MaxDimension fail with sparse.ErrTooLarge.
func ReadCorpus(r io.Reader) (*Corpus, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	pos := 0
	next := func(section string) (int, bool, error) {
		if !sc.Scan() {
			return 0, false, sc.Err()
		}
		v, err := strconv.Atoi(sc.Text())
		if err != nil {
			return 0, false, &sparse.InputFormatError{Section: section, Index: pos, Err: err}
		}
		return v, true, nil
	}

	var header [2]int
	for i := range header {
		v, ok, err := next("header")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &sparse.InputFormatError{Section: "header", Index: i, Err: sparse.ErrTruncated}
		}
		header[i] = v
		pos++
	}
	if header[0] < 0 || header[1] < 0 {
		return nil, &sparse.InputFormatError{Section: "header", Index: -1, Err: sparse.ErrNegativeSize}
	}
	for i, dim := range header {
		if dim > sparse.MaxDimension {
			return nil, &sparse.InputFormatError{Section: "header", Index: i, Err: sparse.ErrTooLarge}
		}
	}

	c := NewCorpus(header[0], header[1])
	for pair := 0; ; pair++ {
		pos = pair
		docID, ok, err := next("occurrences")
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		wordID, ok, err := next("occurrences")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &sparse.InputFormatError{Section: "occurrences", Index: pair, Err: ErrOddPair}
		}
		if err := c.AddWord(docID-1, wordID-1); err != nil {
			return nil, &sparse.InputFormatError{Section: "occurrences", Index: pair, Err: err}
		}
	}
	return c, nil
}

// Options bound the document frequency of the terms that are kept.
type Options struct {
	MinDF int
	MaxDF int
}

// DefaultOptions keeps terms found in at least minDF documents and in at most
// maxDFRatio of all documents.
func DefaultOptions(docCount, minDF int, maxDFRatio float64) Options {
	return Options{MinDF: minDF, MaxDF: int(float64(docCount) * maxDFRatio)}
}

// Validate reports inconsistent bounds.
func (o Options) Validate() error {
	if o.MinDF < 0 || o.MaxDF < 0 {
		return fmt.Errorf("tfidf: document frequency bounds must be non-negative (min %d, max %d)", o.MinDF, o.MaxDF)
	}
	return nil
}

// Weights computes tf(d,w)*ln(DocCount/df(w)) for every kept term and scales
// each document to sum one. Rows are documents and columns are words, with
// column indices ascending inside every row. A document without kept terms
// stays empty; one whose kept weights do not sum to a positive finite value
// fails with a NumericalInstabilityError.
func (c *Corpus) Weights(opts Options) (*sparse.Matrix, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	m := sparse.NewMatrix(c.DocCount, c.WordCount, sparse.CSR)
	words := make([]int, 0)
	weights := make([]float64, 0)
	for doc := 0; doc < c.DocCount; doc++ {
		words = words[:0]
		for word := range c.tf[doc] {
			if df := c.df[word]; opts.MinDF <= df && df <= opts.MaxDF {
				words = append(words, word)
			}
		}
		sort.Ints(words)

		weights = weights[:0]
		for _, word := range words {
			idf := math.Log(float64(c.DocCount) / float64(c.df[word]))
			weights = append(weights, float64(c.tf[doc][word])*idf)
		}
		if len(weights) > 0 {
			sum := floats.Sum(weights)
			if !(sum > 0) || math.IsInf(sum, 0) {
				return nil, &sparse.NumericalInstabilityError{Phase: "tfidf", Iteration: -1, Index: doc, Value: sum}
			}
			floats.Scale(1/sum, weights)
		}

		m.Indices = append(m.Indices, words...)
		m.Values = append(m.Values, weights...)
		m.Ptr[doc+1] = len(m.Values)
	}
	return m, nil
}
