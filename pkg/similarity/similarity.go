// Package similarity derives a document similarity matrix from term weights.
package similarity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gilchrisn/affinity-clustering-service/pkg/sparse"
)

// Options controls the inner-product computation.
type Options struct {
	// MinSimilarity drops every pair scoring below it.
	MinSimilarity float64
	// Workers computes document rows concurrently when above one.
	Workers int
	// ProgressEvery logs progress after this many documents; zero disables it.
	ProgressEvery int
}

// DefaultOptions returns the options used by the command line pipeline.
func DefaultOptions() Options {
	return Options{MinSimilarity: 0.1, Workers: 1, ProgressEvery: 1000}
}

type row struct {
	docs []int
	sims []float64
}

// InnerProduct computes s(d, d') = sum over w of x(d,w)*x(d',w) for the rows of
// a CSR weight matrix and keeps the pairs scoring at least MinSimilarity. The
// result is a square CSC matrix whose column d lists the documents similar to
// d in ascending order. A document's similarity to itself is kept like any
// other pair.
func InnerProduct(ctx context.Context, weights *sparse.Matrix, opts Options, logger zerolog.Logger) (*sparse.Matrix, error) {
	if weights.Layout != sparse.CSR {
		return nil, fmt.Errorf("similarity: weights must be CSR, got %s", weights.Layout)
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	docCount := weights.Rows
	byWord := weights.Transpose()

	logger.Info().
		Int("documents", docCount).
		Int("words", weights.Cols).
		Int("nnz", weights.NNZ()).
		Float64("min_similarity", opts.MinSimilarity).
		Msg("Computing inner-product similarity")

	rows := make([]row, docCount)
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	chunk := (docCount + workers - 1) / workers
	for lo := 0; docCount > 0 && lo < docCount; lo += chunk {
		lo, hi := lo, lo+chunk
		if hi > docCount {
			hi = docCount
		}
		g.Go(func() error {
			s := newScratch(docCount)
			for doc := lo; doc < hi; doc++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				rows[doc] = s.scoreRow(weights, byWord, doc, opts.MinSimilarity)
				if opts.ProgressEvery > 0 && (doc+1-lo)%opts.ProgressEvery == 0 {
					logger.Debug().
						Int("document", doc).
						Int("documents", docCount).
						Msg("Similarity progress")
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sim := sparse.NewMatrix(docCount, docCount, sparse.CSC)
	for doc, r := range rows {
		sim.Indices = append(sim.Indices, r.docs...)
		sim.Values = append(sim.Values, r.sims...)
		sim.Ptr[doc+1] = len(sim.Values)
	}

	logger.Info().
		Int("nnz", sim.NNZ()).
		Dur("duration", time.Since(start)).
		Msg("Similarity computed")
	return sim, nil
}

// scratch is the per-worker accumulator reused across documents.
type scratch struct {
	acc     []float64
	seen    []bool
	touched []int
}

func newScratch(n int) *scratch {
	return &scratch{acc: make([]float64, n), seen: make([]bool, n)}
}

// scoreRow accumulates the inner products of doc with every document sharing
// a word and leaves the scratch space cleared.
func (s *scratch) scoreRow(weights, byWord *sparse.Matrix, doc int, minSim float64) row {
	s.touched = s.touched[:0]
	words, x := weights.Slice(doc)
	for k, word := range words {
		docs, y := byWord.Slice(word)
		for j, other := range docs {
			if !s.seen[other] {
				s.seen[other] = true
				s.touched = append(s.touched, other)
			}
			s.acc[other] += x[k] * y[j]
		}
	}
	sort.Ints(s.touched)

	var r row
	for _, other := range s.touched {
		if s.acc[other] >= minSim {
			r.docs = append(r.docs, other)
			r.sims = append(r.sims, s.acc[other])
		}
		s.acc[other] = 0
		s.seen[other] = false
	}
	return r
}
