package knowledge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/hybridrag/core"
)

// faqCategory is the category of every tier1 unit.
const faqCategory = "faqs"

type qaPair struct {
	Question *string `json:"question"`
	Answer   *string `json:"answer"`
}

// field is one key/value pair of a JSON object, in document order.
type field struct {
	key   string
	value json.RawMessage
}

// LoadFile reads and parses the knowledge file at path.
func LoadFile(path string) ([]*core.TextUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	units, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return units, nil
}

// Parse reads a knowledge document from r and returns its text units.
func Parse(r io.Reader) ([]*core.TextUnit, error) {
	logger := slog.Default().With("component", "knowledge")

	dec := json.NewDecoder(r)
	dec.UseNumber()

	top, err := decodeObject(dec)
	if err != nil {
		return nil, err
	}

	var tier1 []qaPair
	var tier2, tier3 []field
	for _, f := range top {
		switch f.key {
		case core.Tier1.String():
			if err := json.Unmarshal(f.value, &tier1); err != nil {
				return nil, fmt.Errorf("%w: tier1: %w", ErrMalformed, err)
			}
		case core.Tier2.String():
			if tier2, err = decodeObject(newDecoder(f.value)); err != nil {
				return nil, fmt.Errorf("tier2: %w", err)
			}
		case core.Tier3.String():
			if tier3, err = decodeObject(newDecoder(f.value)); err != nil {
				return nil, fmt.Errorf("tier3: %w", err)
			}
		default:
			logger.Debug("ignoring unknown key", "key", f.key)
		}
	}

	units := make([]*core.TextUnit, 0, len(tier1)+len(tier2)+len(tier3))
	seen := make(map[core.ID]int)
	add := func(text string, tier core.Tier, category string) error {
		unit := &core.TextUnit{
			Text: text,
			Metadata: core.Metadata{
				Tier:        tier,
				Category:    category,
				SourceBlock: len(units),
			},
		}
		if err := core.ValidateTextUnit(unit); err != nil {
			return err
		}
		id := core.IDFromContent(text)
		if first, ok := seen[id]; ok {
			logger.Warn("duplicate text", "sourceBlock", len(units), "firstSourceBlock", first, "category", category)
		} else {
			seen[id] = len(units)
		}
		units = append(units, unit)
		return nil
	}

	for i, qa := range tier1 {
		if qa.Question == nil || qa.Answer == nil {
			return nil, fmt.Errorf("%w: tier1 entry %d needs question and answer", ErrMalformed, i)
		}
		if err := add(fmt.Sprintf("Q: %s\nA: %s", *qa.Question, *qa.Answer), core.Tier1, faqCategory); err != nil {
			return nil, err
		}
	}

	for _, tier := range []struct {
		tier   core.Tier
		fields []field
	}{{core.Tier2, tier2}, {core.Tier3, tier3}} {
		for _, f := range tier.fields {
			lines, err := flatten(f.value)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", tier.tier, f.key, err)
			}
			text := strings.TrimSpace(strings.Join(lines, "\n"))
			if text == "" {
				logger.Warn("skipping empty category", "tier", tier.tier, "category", f.key)
				continue
			}
			if err := add(text, tier.tier, f.key); err != nil {
				return nil, err
			}
		}
	}

	logger.Debug("parsed knowledge",
		"tier1", len(tier1),
		"tier2", len(tier2),
		"tier3", len(tier3),
		"units", len(units))
	return units, nil
}

func newDecoder(raw json.RawMessage) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec
}

// decodeObject reads one JSON object and returns its fields in document order.
func decodeObject(dec *json.Decoder) ([]field, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: expected an object", ErrMalformed)
	}

	var fields []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected an object key", ErrMalformed)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, key, err)
		}
		fields = append(fields, field{key: key, value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return fields, nil
}

// flatten turns a category value into text lines.
func flatten(raw json.RawMessage) ([]string, error) {
	switch firstByte(raw) {
	case '{':
		fields, err := decodeObject(newDecoder(raw))
		if err != nil {
			return nil, err
		}
		var lines []string
		for _, f := range fields {
			if firstByte(f.value) == '[' {
				items, err := arrayLines(f.value)
				if err != nil {
					return nil, err
				}
				lines = append(lines, items...)
				continue
			}
			if s, ok := scalarLine(f.value); ok {
				lines = append(lines, s)
			}
		}
		return lines, nil
	case '[':
		return arrayLines(raw)
	default:
		if s, ok := scalarLine(raw); ok {
			return []string{s}, nil
		}
		return nil, nil
	}
}

func arrayLines(raw json.RawMessage) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := scalarLine(item); ok {
			lines = append(lines, s)
		}
	}
	return lines, nil
}

// scalarLine renders a value as one line. Strings are unquoted, null is
// dropped and anything else is written as compact JSON.
func scalarLine(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	switch firstByte(raw) {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, true
		}
	case 'n':
		return "", false
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw), true
	}
	return buf.String(), true
}

func firstByte(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}
