// Package evaluation reports on an exemplar assignment against the similarity
// matrix it was computed from.
package evaluation

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/affinity-clustering-service/pkg/sparse"
)

const (
	pageRankDamping   = 0.85
	pageRankTolerance = 1e-8
)

// ErrAssignmentLength is returned when the assignment does not cover every item.
var ErrAssignmentLength = errors.New("evaluation: assignment length differs from item count")

// Summary describes a clustering.
type Summary struct {
	NumItems    int   `json:"num_items"`
	NumClusters int   `json:"num_clusters"`
	Exemplars   []int `json:"exemplars"`
	// ClusterSizes[i] is the size of the cluster around Exemplars[i].
	ClusterSizes []int   `json:"cluster_sizes"`
	MeanSize     float64 `json:"mean_size"`
	StdDevSize   float64 `json:"stddev_size"`
	LargestSize  int     `json:"largest_size"`
	Singletons   int     `json:"singletons"`

	// NetSimilarity sums s(i, e(i)) over non-exemplar items whose edge exists.
	NetSimilarity float64 `json:"net_similarity"`
	// MissingEdges counts items assigned to an exemplar they share no edge with.
	MissingEdges int `json:"missing_edges"`

	// Consistent is true when every exemplar is its own exemplar.
	Consistent   bool  `json:"consistent"`
	Inconsistent []int `json:"inconsistent,omitempty"`

	// Components is the number of connected components of the similarity graph.
	Components int `json:"components"`
	// ExemplarRank is the share of PageRank held by the exemplars.
	ExemplarRank float64 `json:"exemplar_rank"`
}

// Summarize computes the summary of exemplars over the square similarity
// matrix sim.
func Summarize(sim *sparse.Matrix, exemplars []int) (*Summary, error) {
	if err := sim.Validate(); err != nil {
		return nil, err
	}
	if sim.Rows != sim.Cols {
		return nil, fmt.Errorf("evaluation: similarity matrix is %dx%d, want square", sim.Rows, sim.Cols)
	}
	n := sim.Rows
	if len(exemplars) != n {
		return nil, fmt.Errorf("%w: %d assignments for %d items", ErrAssignmentLength, len(exemplars), n)
	}
	for i, ex := range exemplars {
		if ex < 0 || ex >= n {
			return nil, &sparse.InputFormatError{Section: "exemplars", Index: i, Err: sparse.ErrIndexRange}
		}
	}

	s := &Summary{NumItems: n, Consistent: true}

	sizes := make(map[int]int)
	for i, ex := range exemplars {
		sizes[ex]++
		if exemplars[ex] != ex {
			s.Consistent = false
			s.Inconsistent = append(s.Inconsistent, i)
		}
	}
	for ex := range sizes {
		s.Exemplars = append(s.Exemplars, ex)
	}
	sort.Ints(s.Exemplars)
	s.NumClusters = len(s.Exemplars)

	sizeValues := make([]float64, 0, len(s.Exemplars))
	for _, ex := range s.Exemplars {
		size := sizes[ex]
		s.ClusterSizes = append(s.ClusterSizes, size)
		sizeValues = append(sizeValues, float64(size))
		if size > s.LargestSize {
			s.LargestSize = size
		}
		if size == 1 {
			s.Singletons++
		}
	}
	if len(sizeValues) > 1 {
		s.MeanSize, s.StdDevSize = stat.MeanStdDev(sizeValues, nil)
	} else if len(sizeValues) == 1 {
		s.MeanSize = sizeValues[0]
	}

	s.NetSimilarity, s.MissingEdges = netSimilarity(sim, exemplars)
	s.Components, s.ExemplarRank = graphMeasures(sim, s.Exemplars)
	return s, nil
}

// netSimilarity looks up s(i, e(i)) for every item that is not an exemplar.
func netSimilarity(sim *sparse.Matrix, exemplars []int) (float64, int) {
	net, missing := 0.0, 0
	for i, ex := range exemplars {
		if i == ex {
			continue
		}
		value, ok := lookup(sim, i, ex)
		if !ok {
			missing++
			continue
		}
		net += value
	}
	return net, missing
}

// lookup returns s(src, dst) if it is stored.
func lookup(sim *sparse.Matrix, src, dst int) (float64, bool) {
	major, minor := dst, src
	if sim.Layout == sparse.CSR {
		major, minor = src, dst
	}
	indices, values := sim.Slice(major)
	for k, idx := range indices {
		if idx == minor {
			return values[k], true
		}
	}
	return 0, false
}

// graphMeasures counts connected components of the similarity graph and the
// PageRank share of the exemplars on its directed form.
func graphMeasures(sim *sparse.Matrix, exemplars []int) (int, float64) {
	n := sim.Rows
	undirected := simple.NewUndirectedGraph()
	directed := simple.NewDirectedGraph()
	for i := 0; i < n; i++ {
		undirected.AddNode(simple.Node(int64(i)))
		directed.AddNode(simple.Node(int64(i)))
	}

	for major := 0; major < sim.Major(); major++ {
		indices, _ := sim.Slice(major)
		for _, idx := range indices {
			src, dst := idx, major
			if sim.Layout == sparse.CSR {
				src, dst = major, idx
			}
			if src == dst {
				continue
			}
			from, to := simple.Node(int64(src)), simple.Node(int64(dst))
			if !undirected.HasEdgeBetween(from.ID(), to.ID()) {
				undirected.SetEdge(undirected.NewEdge(from, to))
			}
			directed.SetEdge(directed.NewEdge(from, to))
		}
	}

	components := len(topo.ConnectedComponents(undirected))
	if n == 0 {
		return components, 0
	}

	ranks := network.PageRankSparse(directed, pageRankDamping, pageRankTolerance)
	total := 0.0
	for _, r := range ranks {
		total += r
	}
	if total <= 0 {
		return components, 0
	}
	share := 0.0
	for _, ex := range exemplars {
		share += ranks[int64(ex)]
	}
	return components, share / total
}
