package apcluster

import "fmt"

// Edge is a directed similarity relation from Src to Dst carrying the two
// messages exchanged along it. Src == Dst is the item's preference edge.
type Edge struct {
	Src int
	Dst int
	S   float64 // similarity s(src, dst)
	R   float64 // responsibility r(src, dst)
	A   float64 // availability a(src, dst)
}

// Graph owns every edge in a single arena. OutEdges and InEdges hold arena
// indices; InEdges[k] always ends with the self edge of k.
type Graph struct {
	NumNodes int
	Edges    []Edge
	OutEdges [][]int
	InEdges  [][]int

	// Preference is the statistic chosen for self-similarity before noise.
	// It is nil when the builder was given per-item preferences.
	Preference *float64
}

// NewGraph creates an empty graph with capacity for numEdges edges.
func NewGraph(numNodes, numEdges int) *Graph {
	return &Graph{
		NumNodes: numNodes,
		Edges:    make([]Edge, 0, numEdges),
		OutEdges: make([][]int, numNodes),
		InEdges:  make([][]int, numNodes),
	}
}

// AddEdge appends an edge to the arena and to both adjacency lists.
func (g *Graph) AddEdge(src, dst int, s float64) error {
	if src < 0 || src >= g.NumNodes || dst < 0 || dst >= g.NumNodes {
		return fmt.Errorf("node index out of range: src=%d, dst=%d, numNodes=%d", src, dst, g.NumNodes)
	}
	id := len(g.Edges)
	g.Edges = append(g.Edges, Edge{Src: src, Dst: dst, S: s})
	g.OutEdges[src] = append(g.OutEdges[src], id)
	g.InEdges[dst] = append(g.InEdges[dst], id)
	return nil
}

// SelfEdge returns the arena index of item k's preference edge.
func (g *Graph) SelfEdge(k int) int {
	in := g.InEdges[k]
	return in[len(in)-1]
}

// NumEdges returns the number of edges including preference edges.
func (g *Graph) NumEdges() int { return len(g.Edges) }

// Validate checks the self-edge invariants the message updates rely on.
func (g *Graph) Validate() error {
	if g.NumNodes <= 0 {
		return fmt.Errorf("graph must have positive number of nodes")
	}
	for k := 0; k < g.NumNodes; k++ {
		selfOut := 0
		for _, id := range g.OutEdges[k] {
			e := g.Edges[id]
			if e.Src != k {
				return fmt.Errorf("out-edge %d of node %d has source %d", id, k, e.Src)
			}
			if e.Dst == k {
				selfOut++
			}
		}
		if selfOut != 1 {
			return fmt.Errorf("node %d has %d self out-edges, want 1", k, selfOut)
		}

		in := g.InEdges[k]
		if len(in) == 0 {
			return fmt.Errorf("node %d has no in-edges", k)
		}
		for pos, id := range in {
			e := g.Edges[id]
			if e.Dst != k {
				return fmt.Errorf("in-edge %d of node %d has destination %d", id, k, e.Dst)
			}
			isSelf := e.Src == k
			if isSelf != (pos == len(in)-1) {
				return fmt.Errorf("self edge of node %d is not last in its in-edges", k)
			}
		}
	}
	return nil
}

// Release drops all edge storage. The graph must not be used afterwards.
func (g *Graph) Release() {
	g.Edges = nil
	g.OutEdges = nil
	g.InEdges = nil
}
