package apcluster

import "math"

// exemplarOf returns argmax over the out-edges of i of a(i,k) + r(i,k). The
// self edge competes like any other out-edge; ties keep the earliest edge.
func exemplarOf(g *Graph, i int) int {
	maxValue := math.Inf(-1)
	argmax := i
	for _, id := range g.OutEdges[i] {
		e := &g.Edges[id]
		if value := e.A + e.R; value > maxValue {
			maxValue = value
			argmax = e.Dst
		}
	}
	return argmax
}

// ExtractExemplars computes the current exemplar of every item from the
// messages on g. It does not modify g.
func ExtractExemplars(g *Graph) []int {
	exemplars := make([]int, g.NumNodes)
	for i := range exemplars {
		exemplars[i] = exemplarOf(g, i)
	}
	return exemplars
}

// NewAssignment returns an assignment in which no item has an exemplar yet,
// so the first extraction reports every item as changed.
func NewAssignment(n int) []int {
	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = -1
	}
	return assignment
}

func countClusters(assignment []int) int {
	seen := make(map[int]struct{})
	for _, ex := range assignment {
		if ex >= 0 {
			seen[ex] = struct{}{}
		}
	}
	return len(seen)
}
