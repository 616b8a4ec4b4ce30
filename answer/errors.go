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


package answer

import "errors"

var (
	// ErrNoInformation means nothing relevant was retrieved. The Result
	// carries the fallback message as its text.
	ErrNoInformation = errors.New("no information available")

	// ErrGeneration is returned when the chat model fails.
	ErrGeneration = errors.New("answer generation failed")

	// ErrRetrieverRequired is returned when NewAnswerer is given a nil retriever.
	ErrRetrieverRequired = errors.New("retriever is required")

	// ErrGeneratorRequired is returned when NewAnswerer is given a nil generator.
	ErrGeneratorRequired = errors.New("generator is required")
)
