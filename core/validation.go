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

import (
	"fmt"
	"strings"
)

// ValidateTextUnit validates a TextUnit according to domain rules.
//
// Validation rules:
//   - Text must not be empty or whitespace only
//   - Tier must be tier1, tier2 or tier3
//   - SourceBlock must not be negative
//
// NOT validated:
//   - ID (assigned by the index builder)
//   - Category (free-form, may be empty)
func ValidateTextUnit(unit *TextUnit) error {
	if unit == nil {
		return fmt.Errorf("%w: unit is nil", ErrInvalidTextUnit)
	}

	if strings.TrimSpace(unit.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTextUnit, ErrEmptyText)
	}

	if err := ValidateTier(unit.Metadata.Tier); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTextUnit, err)
	}

	if unit.Metadata.SourceBlock < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTextUnit, ErrInvalidSourceBlock)
	}

	return nil
}

// ValidateTier validates that a Tier has a known value.
func ValidateTier(tier Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("%w: value %d", ErrUnknownTier, tier)
	}
	return nil
}
