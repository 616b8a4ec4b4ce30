package vector

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector does not have the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidDimension is returned when an index is created with a non-positive dimension.
	ErrInvalidDimension = errors.New("dimension must be greater than 0")

	// ErrInvalidK is returned when a search asks for fewer than one hit.
	ErrInvalidK = errors.New("k must be greater than 0")
)
