// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package search

import "errors"

var (
	// ErrIndexLoad is returned when a persisted index cannot be loaded.
	// It wraps the underlying storage or validation error.
	ErrIndexLoad = errors.New("index load failed")

	// ErrInvalidConfig is returned when retriever options are out of range.
	ErrInvalidConfig = errors.New("invalid retriever configuration")

	// ErrEmbedderRequired is returned when a retriever is created without an embedder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrDimensionMismatch is returned when the query embedding dimension
	// differs from the index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyQuery is returned for a blank query. The result is empty.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrQueryEmbedding is returned when the query could not be embedded.
	// The result is empty.
	ErrQueryEmbedding = errors.New("query embedding failed")
)

// IsFatal reports whether err is a configuration error that retrying
// cannot fix. Callers should stop serving on a fatal error and report
// "no information" for any other retrieval error.
func IsFatal(err error) bool {
	return errors.Is(err, ErrIndexLoad) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrEmbedderRequired) ||
		errors.Is(err, ErrDimensionMismatch)
}
