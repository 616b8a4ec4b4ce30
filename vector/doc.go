// Package vector holds the vector primitives shared by the index builder and
// the retriever: L2 normalization and an exact inner-product index.
//
// Vectors are stored normalized, so the inner product of two stored vectors
// is their cosine similarity. The index is an exhaustive flat scan, so search
// results are exact.
package vector
