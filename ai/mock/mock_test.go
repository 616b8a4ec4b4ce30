package mock

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/poiesic/hybridrag/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ai.Embedder   = (*MockEmbedder)(nil)
	_ ai.Embedder   = (*TableEmbedder)(nil)
	_ ai.Generator  = (*MockGenerator)(nil)
	_ ai.AIProvider = (*MockProvider)(nil)
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "baggage allowance")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "baggage allowance")
	require.NoError(t, err)
	c, err := m.EmbedText(ctx, "check-in times")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, DefaultDimension)
	assert.Equal(t, 3, m.CallCount())
}

func TestMockEmbedder_UnitNorm(t *testing.T) {
	m := &MockEmbedder{Dimension: 16}
	v, err := m.EmbedText(context.Background(), "anything")
	require.NoError(t, err)
	require.Len(t, v, 16)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedder_BatchMatchesSingle(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	batch, err := m.EmbedTexts(ctx, []string{"one", "two"})
	require.NoError(t, err)
	single, err := m.EmbedText(ctx, "two")
	require.NoError(t, err)

	assert.Equal(t, single, batch[1])
}

func TestMockEmbedder_ConcurrentCallCount(t *testing.T) {
	m := NewMockEmbedder()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.EmbedTexts(context.Background(), []string{"x"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, m.CallCount())
	m.Reset()
	assert.Equal(t, 0, m.CallCount())
}

func TestTableEmbedder(t *testing.T) {
	table := NewTableEmbedder(map[string][]float32{"hello": {1, 0}})
	ctx := context.Background()

	v, err := table.EmbedText(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)

	_, err = table.EmbedText(ctx, "unknown")
	assert.Error(t, err)

	table.WithFallback([]float32{0, 1})
	vs, err := table.EmbedTexts(ctx, []string{"hello", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vs)
	assert.Equal(t, [][]string{{"hello", "unknown"}}, table.Batches())
	assert.Equal(t, 3, table.CallCount())
}

func TestTableEmbedder_ReturnsCopies(t *testing.T) {
	table := NewTableEmbedder(map[string][]float32{"hello": {1, 0}})
	v, err := table.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	v[0] = 42

	again, err := table.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, again)
}

func TestMockGenerator(t *testing.T) {
	g := NewMockGenerator()
	ctx := context.Background()

	_, ok := g.LastCall()
	assert.False(t, ok)

	reply, err := g.Generate(ctx, "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "user", reply)

	g.GenerateFunc = func(ctx context.Context, system, user string) (string, error) {
		return "", assert.AnError
	}
	_, err = g.Generate(ctx, "s2", "u2")
	assert.ErrorIs(t, err, assert.AnError)

	call, ok := g.LastCall()
	require.True(t, ok)
	assert.Equal(t, GenerateCall{System: "s2", User: "u2"}, call)
	assert.Equal(t, 2, g.CallCount())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider().(*MockProvider)
	assert.NotNil(t, p.GetMockEmbedder())
	assert.NotNil(t, p.GetMockGenerator())

	custom := NewMockProviderWithServices(NewTableEmbedder(nil), NewMockGenerator())
	assert.Nil(t, custom.GetMockEmbedder())

	require.NoError(t, custom.Close())
	assert.True(t, custom.Closed())
}
