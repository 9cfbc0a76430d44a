package apcluster

import (
	"math"
	"math/rand"
	"time"

	"github.com/gilchrisn/affinity-clustering-service/pkg/sparse"
)

const (
	// Tie-breaking noise added to every similarity: (relative*|s| + absolute) * U[0,1).
	noiseRelative = 1e-16
	noiseAbsolute = 1e-300
)

// Builder turns a sparse similarity matrix into a message-passing graph.
type Builder struct {
	// Mode selects the preference statistic. Ignored when Preferences is set.
	Mode PreferenceMode
	// Preferences optionally fixes the self-similarity of each item.
	Preferences []float64
	// Rand supplies the tie-breaking noise. A time-seeded source is used if nil.
	Rand *rand.Rand
}

// NewBuilder creates a builder for the given preference mode and noise seed.
func NewBuilder(mode PreferenceMode, seed int64) *Builder {
	return &Builder{Mode: mode, Rand: rand.New(rand.NewSource(seed))}
}

// Build creates the graph. Similarity edges are added in storage order and
// preference edges after all of them, which places every item's self edge
// last in its in-edge list. Diagonal entries of the input are skipped; the
// preference edge is the only self edge.
func (b *Builder) Build(m *sparse.Matrix) (*Graph, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Rows != m.Cols {
		return nil, &InputFormatError{Section: "header", Index: -1, Err: ErrNotSquare}
	}
	n := m.Rows
	if n == 0 {
		return nil, &InputFormatError{Section: "header", Index: -1, Err: ErrNoItems}
	}

	var pref *float64
	if b.Preferences != nil {
		if len(b.Preferences) != n {
			return nil, ErrPreferenceCount
		}
	} else {
		p, err := ComputePreference(m.Values, b.Mode)
		if err != nil {
			return nil, err
		}
		pref = &p
	}

	rng := b.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	g := NewGraph(n, m.NNZ()+n)
	g.Preference = pref

	for major := 0; major < m.Major(); major++ {
		for k := m.Ptr[major]; k < m.Ptr[major+1]; k++ {
			src, dst := m.Indices[k], major
			if m.Layout == sparse.CSR {
				src, dst = major, m.Indices[k]
			}
			if src == dst {
				continue
			}
			s, err := perturb(m.Values[k], rng, k)
			if err != nil {
				return nil, err
			}
			if err := g.AddEdge(src, dst, s); err != nil {
				return nil, &InputFormatError{Section: "indices", Index: k, Err: err}
			}
		}
	}

	for i := 0; i < n; i++ {
		var p float64
		if b.Preferences != nil {
			p = b.Preferences[i]
		} else {
			p = *pref
		}
		s, err := perturb(p, rng, i)
		if err != nil {
			return nil, err
		}
		if err := g.AddEdge(i, i, s); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func perturb(s float64, rng *rand.Rand, index int) (float64, error) {
	s += (noiseRelative*math.Abs(s) + noiseAbsolute) * rng.Float64()
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0, &NumericalInstabilityError{Phase: "build", Iteration: -1, Index: index, Value: s}
	}
	return s, nil
}
