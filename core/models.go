package core

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content fingerprint.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Tier is a coarse provenance bucket used to bias ranking.
// Tier1 is curated FAQ content; Tier2 and Tier3 are broader reference material.
type Tier int

const (
	// TierUnknown is the zero value. It never passes validation.
	TierUnknown Tier = iota
	// Tier1 is curated question/answer content.
	Tier1
	// Tier2 is categorized reference material.
	Tier2
	// Tier3 is deep reference material.
	Tier3
)

var tierNames = map[Tier]string{
	Tier1: "tier1",
	Tier2: "tier2",
	Tier3: "tier3",
}

// String returns the wire name of the tier ("tier1", "tier2", "tier3").
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

// ParseTier converts a wire name into a Tier.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tier1":
		return Tier1, nil
	case "tier2":
		return Tier2, nil
	case "tier3":
		return Tier3, nil
	}
	return TierUnknown, fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: value %d", ErrUnknownTier, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Metadata is the fixed-shape record attached to every text unit.
type Metadata struct {
	Tier        Tier   `json:"tier"`
	Category    string `json:"category"`
	SourceBlock int    `json:"source_block"`
}

// TextUnit is one retrievable snippet of corpus text.
// Units are immutable once produced.
type TextUnit struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// ScoredCandidate is a text unit scored by a single retrieval call.
// Candidates are never persisted.
type ScoredCandidate struct {
	Unit         *TextUnit `json:"unit"`
	RawScore     float32   `json:"raw_score"`
	TierBoost    float32   `json:"tier_boost"`
	KeywordBoost float32   `json:"keyword_boost"`
	BoostedScore float32   `json:"boosted_score"`
	NormScore    float32   `json:"norm_score"`
}
