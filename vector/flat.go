package vector

import (
	"fmt"
	"slices"
)

// Hit is one search result: the index position of a stored vector and its
// inner product with the query.
type Hit struct {
	Position int
	Score    float32
}

// FlatIndex is an exact inner-product index over fixed-dimension vectors.
// Positions are assigned sequentially in insertion order. Once populated the
// index is read-only and Search is safe for concurrent use.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dim int) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, ErrInvalidDimension
	}
	return &FlatIndex{dim: dim}, nil
}

// Add appends vectors to the index in a single pass.
// Either all vectors are added or, on a dimension error, none are.
func (f *FlatIndex) Add(vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("%w: vector %d has %d components, index has %d",
				ErrDimensionMismatch, i, len(v), f.dim)
		}
	}
	f.vectors = slices.Grow(f.vectors, len(vectors))
	for _, v := range vectors {
		f.vectors = append(f.vectors, slices.Clone(v))
	}
	return nil
}

// Len returns the number of stored vectors.
func (f *FlatIndex) Len() int {
	return len(f.vectors)
}

// Dimension returns the vector dimension of the index.
func (f *FlatIndex) Dimension() int {
	return f.dim
}

// Vector returns the stored vector at position i.
// The returned slice must not be modified.
func (f *FlatIndex) Vector(i int) []float32 {
	return f.vectors[i]
}

// Search scores every stored vector against the query and returns the k best.
// Hits are ordered by score descending; equal scores keep insertion order.
// When the index holds fewer than k vectors all of them are returned.
func (f *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d components, index has %d",
			ErrDimensionMismatch, len(query), f.dim)
	}

	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Hit{Position: i, Score: Dot(query, v)}
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
