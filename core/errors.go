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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidTextUnit indicates a TextUnit failed validation.
	ErrInvalidTextUnit = errors.New("invalid text unit")

	// ErrEmptyText indicates the Text field is empty.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrUnknownTier indicates a tier name or value outside tier1..tier3.
	ErrUnknownTier = errors.New("unknown tier")

	// ErrInvalidSourceBlock indicates a negative source block position.
	ErrInvalidSourceBlock = errors.New("source block cannot be negative")
)
