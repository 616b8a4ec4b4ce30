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


// Package search provides hybrid retrieval over a persisted vector index.
//
// A Retriever combines three signals for every nearest-neighbor candidate:
//   - Raw inner-product similarity between the normalized query and unit vectors
//   - A static tier prior favoring curated FAQ content
//   - A keyword boost when any query token appears verbatim in the unit text
//
// Boosted scores are rescaled relative to the best candidate of the same
// query, so the top result always has a normalized score of 1.0 whenever
// any boosted score is positive. Scores are a ranking signal, not an
// absolute confidence.
//
// # Errors
//
// Load and New fail on missing or inconsistent index artifacts, invalid
// configuration, or an embedder whose dimension differs from the index.
// Retrieve distinguishes per-query failures (ErrEmptyQuery,
// ErrQueryEmbedding), for which the caller should report that nothing was
// found, from ErrDimensionMismatch, which IsFatal reports as fatal.
package search
