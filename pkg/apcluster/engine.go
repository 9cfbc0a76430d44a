package apcluster

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
)

// IterationStats holds the diagnostics of one iteration.
type IterationStats struct {
	Iteration   int     `json:"iteration"`
	Changed     int     `json:"changed"`
	Churn       float64 `json:"churn"`
	LargeDeltas int     `json:"large_deltas"`
	NumClusters int     `json:"num_clusters"`
}

// accumulator collects per-chunk diagnostics; chunks are merged after the
// phase barrier.
type accumulator struct {
	threshold float64
	churn     float64
	large     int
	changed   int
}

func (acc *accumulator) update(variable *float64, newValue, damping float64) {
	delta := math.Abs(newValue - *variable)
	if delta > acc.threshold {
		acc.large++
	}
	acc.churn += delta
	*variable = Damp(*variable, newValue, damping)
}

func (acc *accumulator) merge(other *accumulator) {
	acc.churn += other.churn
	acc.large += other.large
	acc.changed += other.changed
}

// Damp returns the exponentially smoothed value damping*variable + (1-damping)*newValue.
func Damp(variable, newValue, damping float64) float64 {
	return damping*variable + (1.0-damping)*newValue
}

// Engine performs the responsibility and availability updates on a graph.
type Engine struct {
	graph     *Graph
	damping   float64
	threshold float64
	workers   int
	chunkSize int
}

// NewEngine creates a sequential engine.
func NewEngine(graph *Graph, damping, largeDeltaThreshold float64) *Engine {
	return &Engine{
		graph:     graph,
		damping:   damping,
		threshold: largeDeltaThreshold,
		workers:   1,
		chunkSize: graph.NumNodes,
	}
}

// WithParallelism splits every phase into chunks of chunkSize items run by up
// to workers goroutines.
func (e *Engine) WithParallelism(workers, chunkSize int) *Engine {
	if workers > 0 {
		e.workers = workers
	}
	if chunkSize > 0 {
		e.chunkSize = chunkSize
	}
	return e
}

// forEachItem runs fn over [0, NumNodes) in chunks and returns the merged
// accumulator. Returning is the barrier: every chunk has finished. Chunk
// accumulators are merged in chunk order so sums do not depend on scheduling.
func (e *Engine) forEachItem(ctx context.Context, fn func(item int, acc *accumulator)) (accumulator, error) {
	n := e.graph.NumNodes
	total := accumulator{threshold: e.threshold}
	if e.workers <= 1 || e.chunkSize >= n {
		for i := 0; i < n; i++ {
			fn(i, &total)
		}
		return total, nil
	}

	numChunks := (n + e.chunkSize - 1) / e.chunkSize
	parts := make([]accumulator, numChunks)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for c := 0; c < numChunks; c++ {
		c := c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lo := c * e.chunkSize
			hi := lo + e.chunkSize
			if hi > n {
				hi = n
			}
			acc := &parts[c]
			acc.threshold = e.threshold
			for i := lo; i < hi; i++ {
				fn(i, acc)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}
	for c := range parts {
		total.merge(&parts[c])
	}
	return total, nil
}

// updateResponsibility sets r(i,k) = s(i,k) - max_{k'!=k} [s(i,k') + a(i,k')]
// for every out-edge of i using one scan for the best and second best values.
func (e *Engine) updateResponsibility(i int, acc *accumulator) {
	edges := e.graph.Edges
	out := e.graph.OutEdges[i]
	max1, max2 := math.Inf(-1), math.Inf(-1)
	argmax1 := -1
	for pos, id := range out {
		value := edges[id].S + edges[id].A
		if value > max1 {
			value, max1 = max1, value
			argmax1 = pos
		}
		if value > max2 {
			max2 = value
		}
	}
	// An item whose only out-edge is its preference has no competitor.
	if len(out) == 1 {
		max2 = 0
	}
	for pos, id := range out {
		if pos != argmax1 {
			acc.update(&edges[id].R, edges[id].S-max1, e.damping)
		} else {
			acc.update(&edges[id].R, edges[id].S-max2, e.damping)
		}
	}
}

// updateAvailability sets a(i,k) for every in-edge of k. The self edge is the
// last in-edge and receives the unclamped sum of positive responsibilities.
func (e *Engine) updateAvailability(k int, acc *accumulator) {
	edges := e.graph.Edges
	in := e.graph.InEdges[k]
	m := len(in)

	sum := 0.0
	for _, id := range in[:m-1] {
		sum += math.Max(0, edges[id].R)
	}
	rkk := edges[in[m-1]].R
	for _, id := range in[:m-1] {
		acc.update(&edges[id].A, math.Min(0, rkk+sum-math.Max(0, edges[id].R)), e.damping)
	}
	acc.update(&edges[in[m-1]].A, sum, e.damping)
}

// UpdateResponsibilities runs the responsibility phase over all items.
func (e *Engine) UpdateResponsibilities(ctx context.Context) (churn float64, largeDeltas int, err error) {
	acc, err := e.forEachItem(ctx, e.updateResponsibility)
	return acc.churn, acc.large, err
}

// UpdateAvailabilities runs the availability phase over all items.
func (e *Engine) UpdateAvailabilities(ctx context.Context) (churn float64, largeDeltas int, err error) {
	acc, err := e.forEachItem(ctx, e.updateAvailability)
	return acc.churn, acc.large, err
}

// Iterate runs one full iteration: every responsibility, then every
// availability, then exemplar extraction into assignment. A non-finite churn
// in either phase aborts with NumericalInstabilityError.
func (e *Engine) Iterate(ctx context.Context, iteration int, assignment []int) (IterationStats, error) {
	stats := IterationStats{Iteration: iteration}

	churn, large, err := e.UpdateResponsibilities(ctx)
	if err != nil {
		return stats, err
	}
	if !isFinite(churn) {
		return stats, &NumericalInstabilityError{Phase: "responsibility", Iteration: iteration, Index: -1, Value: churn}
	}
	stats.Churn += churn
	stats.LargeDeltas += large

	churn, large, err = e.UpdateAvailabilities(ctx)
	if err != nil {
		return stats, err
	}
	if !isFinite(churn) {
		return stats, &NumericalInstabilityError{Phase: "availability", Iteration: iteration, Index: -1, Value: churn}
	}
	stats.Churn += churn
	stats.LargeDeltas += large

	changed, err := e.Extract(ctx, assignment)
	if err != nil {
		return stats, err
	}
	stats.Changed = changed
	stats.NumClusters = countClusters(assignment)
	return stats, nil
}

// Extract recomputes every item's exemplar into assignment and returns the
// number of items whose exemplar changed.
func (e *Engine) Extract(ctx context.Context, assignment []int) (int, error) {
	acc, err := e.forEachItem(ctx, func(i int, acc *accumulator) {
		ex := exemplarOf(e.graph, i)
		if assignment[i] != ex {
			assignment[i] = ex
			acc.changed++
		}
	})
	return acc.changed, err
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
