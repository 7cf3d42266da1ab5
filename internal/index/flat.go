package index

import (
	"fmt"
	"sort"
)

// VectorIndex is a nearest-neighbour index over fixed-width vectors.
// Positions are assigned in insertion order starting at zero.
type VectorIndex interface {
	// Dimension is zero until the first Add.
	Dimension() int
	Len() int
	Add(vectors [][]float32) error
	// Search returns up to k positions ordered by ascending distance.
	Search(query []float32, k int) ([]Neighbor, error)
}

// Neighbor is a search result position with its distance to the query.
type Neighbor struct {
	Position int
	Distance float32
}

// FlatL2 is an exhaustive index using squared Euclidean distance.
// It is not safe for concurrent use; Indexer serializes access.
type FlatL2 struct {
	dim  int
	data []float32
}

// NewFlatL2 returns an empty index. dim may be zero to adopt the width of the
// first batch.
func NewFlatL2(dim int) *FlatL2 {
	return &FlatL2{dim: dim}
}

func (f *FlatL2) Dimension() int { return f.dim }

func (f *FlatL2) Len() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

// Add appends vectors. Either every vector is appended or none is.
func (f *FlatL2) Add(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	dim := f.dim
	if dim == 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return fmt.Errorf("%w: zero-width vector", ErrDimensionMismatch)
		}
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has width %d, index has %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}

	f.dim = dim
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	return nil
}

func (f *FlatL2) Search(query []float32, k int) ([]Neighbor, error) {
	n := f.Len()
	if n == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has width %d, index has %d", ErrDimensionMismatch, len(query), f.dim)
	}
	if k > n {
		k = n
	}

	all := make([]Neighbor, n)
	for i := 0; i < n; i++ {
		row := f.data[i*f.dim : (i+1)*f.dim]
		var d float32
		for j, q := range query {
			diff := row[j] - q
			d += diff * diff
		}
		all[i] = Neighbor{Position: i, Distance: d}
	}

	sort.SliceStable(all, func(a, b int) bool { return all[a].Distance < all[b].Distance })
	return all[:k], nil
}
