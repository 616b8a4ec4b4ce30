package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// TableEmbedder is an ai.Embedder that returns fixed vectors registered per text.
// Unknown texts fail unless a Fallback vector is set.
type TableEmbedder struct {
	mu       sync.RWMutex
	vectors  map[string][]float32
	fallback []float32
	calls    int
	batches  [][]string
}

// NewTableEmbedder returns a TableEmbedder seeded with vectors.
func NewTableEmbedder(vectors map[string][]float32) *TableEmbedder {
	t := &TableEmbedder{vectors: make(map[string][]float32, len(vectors))}
	for text, v := range vectors {
		t.vectors[text] = slices.Clone(v)
	}
	return t
}

// Set registers the vector returned for text.
func (t *TableEmbedder) Set(text string, v []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.vectors[text] = slices.Clone(v)
}

// WithFallback sets the vector returned for unregistered texts.
func (t *TableEmbedder) WithFallback(v []float32) *TableEmbedder {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fallback = slices.Clone(v)
	return t
}

// EmbedText returns the registered vector for text.
func (t *TableEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	return t.lookup(text)
}

// EmbedTexts returns the registered vector for each text.
func (t *TableEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.calls++
	t.batches = append(t.batches, slices.Clone(texts))
	t.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := t.lookup(text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// CallCount returns the number of EmbedText and EmbedTexts calls.
func (t *TableEmbedder) CallCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.calls
}

// Batches returns the texts of every EmbedTexts call in call order.
func (t *TableEmbedder) Batches() [][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.batches)
}

func (t *TableEmbedder) lookup(text string) ([]float32, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if v, ok := t.vectors[text]; ok {
		return slices.Clone(v), nil
	}
	if t.fallback != nil {
		return slices.Clone(t.fallback), nil
	}
	return nil, fmt.Errorf("mock: no vector registered for %q", text)
}
