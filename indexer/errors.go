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


package indexer

import "errors"

var (
	// ErrEmptyCorpus is returned when Build is called with no text units.
	ErrEmptyCorpus = errors.New("no text units to index")

	// ErrEmbedderRequired is returned when a Builder is created without an embedder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmbedding is returned when a batch could not be embedded after all retries.
	ErrEmbedding = errors.New("embedding failed")

	// ErrEmbeddingMismatch is returned when the embedder returns the wrong
	// number of vectors or vectors of differing dimension.
	ErrEmbeddingMismatch = errors.New("embedding result mismatch")

	// ErrInvalidOption is returned when an option value is out of range.
	ErrInvalidOption = errors.New("invalid builder option")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
