package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/poiesic/hybridrag/ai/mock"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/storage"
	"github.com/poiesic/hybridrag/storage/badger"
	"github.com/poiesic/hybridrag/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	text string
	tier core.Tier
	vec  []float32
}

// newSnapshot builds a valid snapshot with ids "0".."N-1" in entry order.
func newSnapshot(t *testing.T, entries ...entry) *storage.Snapshot {
	t.Helper()
	require.NotEmpty(t, entries)

	idMap := make([]string, len(entries))
	vectors := make([][]float32, len(entries))
	docstore := make(map[string]*core.TextUnit, len(entries))
	for i, e := range entries {
		id := strconv.Itoa(i)
		idMap[i] = id
		v, _ := vector.Normalize(e.vec)
		vectors[i] = v
		docstore[id] = &core.TextUnit{
			ID:       id,
			Text:     e.text,
			Metadata: core.Metadata{Tier: e.tier, Category: "test", SourceBlock: i},
		}
	}
	return &storage.Snapshot{
		Manifest: storage.Manifest{
			Version:   storage.FormatVersion,
			Dimension: len(entries[0].vec),
			Count:     len(entries),
			Checksum:  storage.Checksum(idMap, docstore),
		},
		Vectors:  vectors,
		IDMap:    idMap,
		Docstore: docstore,
	}
}

func newRetriever(t *testing.T, embedder *mock.TableEmbedder, snapshot *storage.Snapshot, opts ...Option) *Retriever {
	t.Helper()
	r, err := New(snapshot, embedder, opts...)
	require.NoError(t, err)
	return r
}

func texts(candidates []*core.ScoredCandidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Unit.Text
	}
	return out
}

func TestRetrieve_TierAndKeywordBoostOutrankRawScore(t *testing.T) {
	faq := "Q: baggage allowance? A: 20kg"
	fleet := "The fleet consists of narrow-body aircraft."
	snapshot := newSnapshot(t,
		entry{text: fleet, tier: core.Tier3, vec: []float32{0.9, float32(math.Sqrt(1 - 0.81))}},
		entry{text: faq, tier: core.Tier1, vec: []float32{0.8, 0.6}},
	)
	embedder := mock.NewTableEmbedder(map[string][]float32{"baggage allowance": {1, 0}})
	r := newRetriever(t, embedder, snapshot)

	results, err := r.Retrieve(context.Background(), "baggage allowance")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, []string{faq, fleet}, texts(results))

	top := results[0]
	assert.InDelta(t, 0.8, top.RawScore, 1e-6)
	assert.InDelta(t, 0.05, top.TierBoost, 1e-6)
	assert.InDelta(t, 0.10, top.KeywordBoost, 1e-6)
	assert.InDelta(t, 0.95, top.BoostedScore, 1e-6)
	assert.Equal(t, float32(1.0), top.NormScore)

	second := results[1]
	assert.InDelta(t, 0.9, second.RawScore, 1e-6)
	assert.Equal(t, float32(0), second.TierBoost)
	assert.Equal(t, float32(0), second.KeywordBoost)
	assert.InDelta(t, 0.9/0.95, second.NormScore, 1e-6)
}

func TestLoad_NeverBuiltPath(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing"), mock.NewMockEmbedder())
	require.ErrorIs(t, err, ErrIndexLoad)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.True(t, IsFatal(err))
}

func TestRetrieve_KSearchLargerThanIndex(t *testing.T) {
	snapshot := newSnapshot(t,
		entry{text: "one", tier: core.Tier1, vec: []float32{1, 0}},
		entry{text: "two", tier: core.Tier2, vec: []float32{0, 1}},
		entry{text: "three", tier: core.Tier3, vec: []float32{1, 1}},
	)
	embedder := mock.NewTableEmbedder(map[string][]float32{"query": {1, 0}})
	r := newRetriever(t, embedder, snapshot, WithKSearch(5), WithTopN(5))

	results, err := r.Retrieve(context.Background(), "query")
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestRetrieve_AllZeroScoresKeepSearchOrder(t *testing.T) {
	snapshot := newSnapshot(t,
		entry{text: "alpha", tier: core.Tier3, vec: []float32{0, 1, 0}},
		entry{text: "beta", tier: core.Tier3, vec: []float32{0, 0, 1}},
		entry{text: "gamma", tier: core.Tier3, vec: []float32{0, 1, 0}},
	)
	embedder := mock.NewTableEmbedder(map[string][]float32{"query": {1, 0, 0}})
	r := newRetriever(t, embedder, snapshot)

	results, err := r.Retrieve(context.Background(), "query")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"alpha", "beta", "gamma"}, texts(results))
	for _, c := range results {
		assert.Equal(t, float32(0), c.BoostedScore)
		assert.Equal(t, float32(0), c.NormScore)
	}
}

func TestRetrieve_AllNegativeScoresNormalizeToZero(t *testing.T) {
	snapshot := newSnapshot(t,
		entry{text: "alpha", tier: core.Tier3, vec: []float32{-1, 0}},
		entry{text: "beta", tier: core.Tier3, vec: []float32{-1, -1}},
	)
	embedder := mock.NewTableEmbedder(map[string][]float32{"query": {1, 0}})
	r := newRetriever(t, embedder, snapshot)

	results, err := r.Retrieve(context.Background(), "query")
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, c := range results {
		assert.Less(t, c.BoostedScore, float32(0))
		assert.Equal(t, float32(0), c.NormScore)
	}
}

func TestRetrieve_QueryIsNormalized(t *testing.T) {
	snapshot := newSnapshot(t, entry{text: "alpha", tier: core.Tier3, vec: []float32{0.8, 0.6}})
	embedder := mock.NewTableEmbedder(map[string][]float32{"query": {5, 0}})
	r := newRetriever(t, embedder, snapshot)

	results, err := r.Retrieve(context.Background(), "query")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.8, results[0].RawScore, 1e-6)
}

func TestRetrieve_TopNTruncates(t *testing.T) {
	var entries []entry
	for i := 0; i < 10; i++ {
		entries = append(entries, entry{text: "unit " + strconv.Itoa(i), tier: core.Tier2, vec: []float32{1, float32(i)}})
	}
	embedder := mock.NewTableEmbedder(map[string][]float32{"q": {1, 0}})
	r := newRetriever(t, embedder, newSnapshot(t, entries...), WithKSearch(6), WithTopN(3))

	results, err := r.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"unit 0", "unit 1", "unit 2"}, texts(results))
}

func TestRetrieve_KeywordMatchIsCaseInsensitiveSubstring(t *testing.T) {
	snapshot := newSnapshot(t,
		entry{text: "Flight PK-301 departs at noon", tier: core.Tier3, vec: []float32{0, 1}},
		entry{text: "Unrelated text", tier: core.Tier3, vec: []float32{0, 1}},
	)
	embedder := mock.NewTableEmbedder(nil).WithFallback([]float32{1, 0})
	r := newRetriever(t, embedder, snapshot)

	results, err := r.Retrieve(context.Background(), "when does pk-301 leave")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Flight PK-301 departs at noon", results[0].Unit.Text)
	assert.InDelta(t, DefaultKeywordBoost, results[0].KeywordBoost, 1e-6)
	assert.Equal(t, float32(0), results[1].KeywordBoost)
}

func TestRetrieve_CustomWeightsAndUnknownTier(t *testing.T) {
	snapshot := newSnapshot(t,
		entry{text: "a", tier: core.Tier1, vec: []float32{1, 0}},
		entry{text: "b", tier: core.Tier2, vec: []float32{1, 0}},
	)
	embedder := mock.NewTableEmbedder(map[string][]float32{"zzz": {1, 0}})
	weights := map[core.Tier]float32{core.Tier2: 0.5}
	r := newRetriever(t, embedder, snapshot, WithTierWeights(weights), WithKeywordBoost(0))

	weights[core.Tier2] = 100

	results, err := r.Retrieve(context.Background(), "zzz")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].Unit.Text)
	assert.InDelta(t, 0.5, results[0].TierBoost, 1e-6)
	assert.Equal(t, float32(0), results[1].TierBoost, "tiers missing from the table get no boost")
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	snapshot := newSnapshot(t, entry{text: "alpha", tier: core.Tier1, vec: []float32{1, 0}})
	embedder := mock.NewTableEmbedder(nil)
	r := newRetriever(t, embedder, snapshot)

	for _, q := range []string{"", "   ", "\n\t"} {
		results, err := r.Retrieve(context.Background(), q)
		require.ErrorIs(t, err, ErrEmptyQuery)
		assert.NotNil(t, results)
		assert.Empty(t, results)
		assert.False(t, IsFatal(err))
	}
	assert.Equal(t, 0, embedder.CallCount(), "blank queries are not embedded")
}

func TestRetrieve_EmbeddingFailure(t *testing.T) {
	snapshot := newSnapshot(t, entry{text: "alpha", tier: core.Tier1, vec: []float32{1, 0}})
	r := newRetriever(t, mock.NewTableEmbedder(nil), snapshot)

	results, err := r.Retrieve(context.Background(), "unregistered")
	require.ErrorIs(t, err, ErrQueryEmbedding)
	assert.Empty(t, results)
	assert.False(t, IsFatal(err))
}

func TestRetrieve_DimensionMismatchIsFatal(t *testing.T) {
	snapshot := newSnapshot(t, entry{text: "alpha", tier: core.Tier1, vec: []float32{1, 0}})
	embedder := mock.NewTableEmbedder(map[string][]float32{"q": {1, 0, 0}})
	r := newRetriever(t, embedder, snapshot)

	_, err := r.Retrieve(context.Background(), "q")
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.True(t, IsFatal(err))
}

func TestNew_Validation(t *testing.T) {
	snapshot := newSnapshot(t, entry{text: "alpha", tier: core.Tier1, vec: []float32{1, 0}})
	embedder := mock.NewTableEmbedder(nil)

	tests := []struct {
		name string
		opts []Option
	}{
		{"zero k_search", []Option{WithKSearch(0), WithTopN(1)}},
		{"zero top_n", []Option{WithTopN(0)}},
		{"top_n above k_search", []Option{WithKSearch(5), WithTopN(6)}},
		{"negative keyword boost", []Option{WithKeywordBoost(-0.1)}},
		{"negative tier weight", []Option{WithTierWeights(map[core.Tier]float32{core.Tier1: -1})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(snapshot, embedder, tt.opts...)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.True(t, IsFatal(err))
		})
	}

	t.Run("nil embedder", func(t *testing.T) {
		_, err := New(snapshot, nil)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("nil snapshot", func(t *testing.T) {
		_, err := New(nil, embedder)
		assert.ErrorIs(t, err, storage.ErrCorruptIndex)
	})

	t.Run("inconsistent snapshot", func(t *testing.T) {
		broken := newSnapshot(t,
			entry{text: "alpha", tier: core.Tier1, vec: []float32{1, 0}},
			entry{text: "beta", tier: core.Tier1, vec: []float32{0, 1}},
		)
		broken.IDMap = broken.IDMap[:1]
		_, err := New(broken, embedder)
		assert.ErrorIs(t, err, storage.ErrCorruptIndex)
	})
}

func TestConfig_ReturnsCopy(t *testing.T) {
	snapshot := newSnapshot(t, entry{text: "alpha", tier: core.Tier1, vec: []float32{1, 0}})
	r := newRetriever(t, mock.NewTableEmbedder(nil), snapshot)

	cfg := r.Config()
	assert.Equal(t, DefaultKSearch, cfg.KSearch)
	assert.Equal(t, DefaultTopN, cfg.TopN)
	assert.True(t, cfg.DimensionProbe)
	assert.Equal(t, DefaultTierWeights(), cfg.TierWeights)

	cfg.TierWeights[core.Tier1] = 9
	assert.InDelta(t, 0.05, r.Config().TierWeights[core.Tier1], 1e-6)

	assert.Equal(t, 1, r.Size())
	assert.Equal(t, 2, r.Dimension())
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "index")
	snapshot := newSnapshot(t,
		entry{text: "alpha", tier: core.Tier1, vec: []float32{1, 0}},
		entry{text: "beta", tier: core.Tier2, vec: []float32{0, 1}},
	)
	require.NoError(t, badger.SaveIndex(ctx, dir, snapshot))

	t.Run("matching embedder", func(t *testing.T) {
		embedder := mock.NewTableEmbedder(nil).WithFallback([]float32{0, 1})
		r, err := Load(ctx, dir, embedder)
		require.NoError(t, err)
		assert.Equal(t, 2, r.Size())

		results, err := r.Retrieve(ctx, "anything")
		require.NoError(t, err)
		assert.Equal(t, "beta", results[0].Unit.Text)
	})

	t.Run("probe detects dimension mismatch", func(t *testing.T) {
		embedder := mock.NewTableEmbedder(nil).WithFallback([]float32{1, 0, 0})
		_, err := Load(ctx, dir, embedder)
		require.ErrorIs(t, err, ErrIndexLoad)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
		assert.True(t, IsFatal(err))
	})

	t.Run("probe disabled", func(t *testing.T) {
		embedder := mock.NewTableEmbedder(nil).WithFallback([]float32{1, 0, 0})
		r, err := Load(ctx, dir, embedder, WithDimensionProbe(false))
		require.NoError(t, err)

		_, err = r.Retrieve(ctx, "anything")
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("probe embedding fails", func(t *testing.T) {
		_, err := Load(ctx, dir, mock.NewTableEmbedder(nil))
		require.ErrorIs(t, err, ErrIndexLoad)
		assert.ErrorIs(t, err, ErrQueryEmbedding)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := Load(ctx, dir, mock.NewMockEmbedder(), WithTopN(50))
		require.ErrorIs(t, err, ErrIndexLoad)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func newPropertyRetriever(t *testing.T, n int) *Retriever {
	t.Helper()
	embedder := &mock.MockEmbedder{Dimension: 16}
	entries := make([]entry, n)
	for i := range entries {
		text := fmt.Sprintf("unit %d about topic %d", i, i%7)
		vec, err := embedder.EmbedText(context.Background(), text)
		require.NoError(t, err)
		entries[i] = entry{text: text, tier: core.Tier(i%3 + 1), vec: vec}
	}
	r, err := New(newSnapshot(t, entries...), embedder, WithKSearch(10), WithTopN(5))
	require.NoError(t, err)
	return r
}

func TestRetrieve_Properties(t *testing.T) {
	r := newPropertyRetriever(t, 30)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		query := fmt.Sprintf("question %d about topic %d", i, i%5)
		results, err := r.Retrieve(ctx, query)
		require.NoError(t, err)

		assert.NotEmpty(t, results)
		assert.LessOrEqual(t, len(results), min(5, r.Size()))

		var maxBoosted float32
		for _, c := range results {
			maxBoosted = max(maxBoosted, c.BoostedScore)
			assert.GreaterOrEqual(t, c.BoostedScore, c.RawScore)
			if c.BoostedScore > 0 {
				assert.GreaterOrEqual(t, c.NormScore, float32(0))
				assert.LessOrEqual(t, c.NormScore, float32(1))
			}
		}
		if maxBoosted > 0 {
			assert.Equal(t, float32(1), results[0].NormScore)
			assert.Equal(t, maxBoosted, results[0].BoostedScore)
		}
		for j := 1; j < len(results); j++ {
			assert.GreaterOrEqual(t, results[j-1].NormScore, results[j].NormScore)
		}

		again, err := r.Retrieve(ctx, query)
		require.NoError(t, err)
		assert.Equal(t, results, again, "identical queries give identical results")
	}
}

func TestRetrieve_Concurrent(t *testing.T) {
	r := newPropertyRetriever(t, 50)
	ctx := context.Background()

	expected := make(map[string][]*core.ScoredCandidate)
	queries := []string{"topic 1", "topic 2", "unit 3", "something else"}
	for _, q := range queries {
		res, err := r.Retrieve(ctx, q)
		require.NoError(t, err)
		expected[q] = res
	}

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			res, err := r.Retrieve(ctx, q)
			if err != nil {
				errs <- err
				return
			}
			if len(res) != len(expected[q]) {
				errs <- errors.New("result length differs")
				return
			}
			for j := range res {
				if res[j].Unit != expected[q][j].Unit || res[j].NormScore != expected[q][j].NormScore {
					errs <- fmt.Errorf("result %d differs for %q", j, q)
					return
				}
			}
		}(queries[i%len(queries)])
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

type recordingMonitor struct {
	started     string
	hits        int
	scored      int
	finished    int
	finishCalls int
}

func (m *recordingMonitor) Start(q string)                            { m.started = q }
func (m *recordingMonitor) AfterVectorSearch(hits []vector.Hit)       { m.hits = len(hits) }
func (m *recordingMonitor) Scored(candidates []*core.ScoredCandidate) { m.scored = len(candidates) }
func (m *recordingMonitor) Finish(results []*core.ScoredCandidate) {
	m.finished = len(results)
	m.finishCalls++
}

func TestRetrieveWithMonitor(t *testing.T) {
	r := newPropertyRetriever(t, 12)
	monitor := &recordingMonitor{}

	results, err := r.RetrieveWithMonitor(context.Background(), "topic 3", monitor)
	require.NoError(t, err)

	assert.Equal(t, "topic 3", monitor.started)
	assert.Equal(t, 10, monitor.hits)
	assert.Equal(t, 10, monitor.scored)
	assert.Equal(t, len(results), monitor.finished)
	assert.Equal(t, 5, monitor.finished)
	assert.Equal(t, 1, monitor.finishCalls)
}

func TestRetrieveWithMonitor_FinishesOnError(t *testing.T) {
	snapshot := newSnapshot(t, entry{text: "alpha", tier: core.Tier1, vec: []float32{1, 0}})
	embedder := mock.NewTableEmbedder(map[string][]float32{"wide": {1, 0, 0}})
	r := newRetriever(t, embedder, snapshot)

	tests := []struct {
		name  string
		query string
		err   error
	}{
		{"blank query", "   ", ErrEmptyQuery},
		{"embedding failure", "unregistered", ErrQueryEmbedding},
		{"dimension mismatch", "wide", ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor := &recordingMonitor{}
			results, err := r.RetrieveWithMonitor(context.Background(), tt.query, monitor)
			require.ErrorIs(t, err, tt.err)
			assert.Empty(t, results)
			assert.Equal(t, tt.query, monitor.started)
			assert.Equal(t, 1, monitor.finishCalls)
			assert.Equal(t, 0, monitor.finished)
		})
	}
}

func TestRetrieveWithLogMonitor(t *testing.T) {
	r := newPropertyRetriever(t, 3)
	monitor := NewLogMonitor(nil)

	results, err := r.RetrieveWithMonitor(context.Background(), "topic 1", monitor)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}
