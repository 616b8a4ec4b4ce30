package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/storage"
	"github.com/poiesic/hybridrag/storage/badger"
	"github.com/poiesic/hybridrag/vector"
)

const (
	// DefaultKSearch is the number of nearest neighbors fetched per query.
	DefaultKSearch = 20

	// DefaultTopN is the number of candidates returned per query.
	DefaultTopN = 8

	// DefaultKeywordBoost is added when a query token appears in the unit text.
	DefaultKeywordBoost float32 = 0.10

	// probeText is embedded at load time to check the embedder dimension.
	probeText = "dimension probe"
)

// DefaultTierWeights returns the default additive prior per tier.
// Tiers missing from the table receive no boost.
func DefaultTierWeights() map[core.Tier]float32 {
	return map[core.Tier]float32{
		core.Tier1: 0.05,
		core.Tier2: 0.02,
		core.Tier3: 0.00,
	}
}

// Config holds the ranking parameters of a Retriever.
type Config struct {
	KSearch        int
	TopN           int
	TierWeights    map[core.Tier]float32
	KeywordBoost   float32
	DimensionProbe bool
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.KSearch < 1 {
		return fmt.Errorf("%w: k_search must be at least 1, got %d", ErrInvalidConfig, c.KSearch)
	}
	if c.TopN < 1 || c.TopN > c.KSearch {
		return fmt.Errorf("%w: top_n must be between 1 and k_search (%d), got %d", ErrInvalidConfig, c.KSearch, c.TopN)
	}
	if c.KeywordBoost < 0 {
		return fmt.Errorf("%w: keyword boost must not be negative, got %g", ErrInvalidConfig, c.KeywordBoost)
	}
	for tier, w := range c.TierWeights {
		if w < 0 {
			return fmt.Errorf("%w: weight for %s must not be negative, got %g", ErrInvalidConfig, tier, w)
		}
	}
	return nil
}

// Retriever ranks indexed text units against a query by inner-product
// similarity plus tier and keyword boosts.
//
// A Retriever is immutable after construction and safe for concurrent use.
type Retriever struct {
	index    *vector.FlatIndex
	units    []*core.TextUnit // by index position
	lowered  []string         // lowercased unit text by index position
	manifest storage.Manifest
	embedder ai.Embedder
	config   Config
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithKSearch sets the number of nearest neighbors fetched per query.
// Default is 20.
func WithKSearch(k int) Option {
	return func(r *Retriever) error {
		r.config.KSearch = k
		return nil
	}
}

// WithTopN sets the maximum number of candidates returned per query.
// Default is 8.
func WithTopN(n int) Option {
	return func(r *Retriever) error {
		r.config.TopN = n
		return nil
	}
}

// WithTierWeights replaces the tier weight table.
func WithTierWeights(weights map[core.Tier]float32) Option {
	return func(r *Retriever) error {
		r.config.TierWeights = maps.Clone(weights)
		return nil
	}
}

// WithKeywordBoost sets the boost applied on lexical overlap.
// Default is 0.10.
func WithKeywordBoost(boost float32) Option {
	return func(r *Retriever) error {
		r.config.KeywordBoost = boost
		return nil
	}
}

// WithDimensionProbe enables or disables the embedder dimension check
// performed by Load. Default is enabled.
func WithDimensionProbe(enabled bool) Option {
	return func(r *Retriever) error {
		r.config.DimensionProbe = enabled
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// Load reads the index persisted at path and returns a Retriever over it.
// Every failure, including an embedder whose dimension differs from the
// index, is wrapped with ErrIndexLoad.
func Load(ctx context.Context, path string, embedder ai.Embedder, opts ...Option) (*Retriever, error) {
	snapshot, err := badger.LoadIndex(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIndexLoad, path, err)
	}

	r, err := New(snapshot, embedder, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIndexLoad, path, err)
	}

	if r.config.DimensionProbe {
		if err := r.probe(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrIndexLoad, path, err)
		}
	}

	r.logger.Info("loaded index",
		"path", path,
		"units", r.Size(),
		"dimension", r.Dimension(),
		"model", snapshot.Manifest.EmbeddingModel)
	return r, nil
}

// New builds a Retriever over an in-memory snapshot.
// The snapshot is validated and must not be modified afterwards.
func New(snapshot *storage.Snapshot, embedder ai.Embedder, opts ...Option) (*Retriever, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if snapshot == nil {
		return nil, fmt.Errorf("%w: nil snapshot", storage.ErrCorruptIndex)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	r := &Retriever{
		manifest: snapshot.Manifest,
		embedder: embedder,
		config: Config{
			KSearch:        DefaultKSearch,
			TopN:           DefaultTopN,
			TierWeights:    DefaultTierWeights(),
			KeywordBoost:   DefaultKeywordBoost,
			DimensionProbe: true,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if err := r.config.Validate(); err != nil {
		return nil, err
	}
	r.logger = r.logger.With("component", "retriever")

	index, err := vector.NewFlatIndex(snapshot.Manifest.Dimension)
	if err != nil {
		return nil, err
	}
	if err := index.Add(snapshot.Vectors...); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrCorruptIndex, err)
	}
	r.index = index

	r.units = make([]*core.TextUnit, len(snapshot.IDMap))
	r.lowered = make([]string, len(snapshot.IDMap))
	for pos, id := range snapshot.IDMap {
		unit := snapshot.Docstore[id]
		r.units[pos] = unit
		r.lowered[pos] = strings.ToLower(unit.Text)
	}
	return r, nil
}

// probe embeds a fixed string and compares its dimension with the index.
func (r *Retriever) probe(ctx context.Context) error {
	vec, err := r.embedder.EmbedText(ctx, probeText)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrQueryEmbedding, err)
	}
	if len(vec) != r.index.Dimension() {
		return fmt.Errorf("%w: embedder produces %d, index has %d", ErrDimensionMismatch, len(vec), r.index.Dimension())
	}
	return nil
}

// Size returns the number of indexed units.
func (r *Retriever) Size() int {
	return r.index.Len()
}

// Dimension returns the index embedding dimension.
func (r *Retriever) Dimension() int {
	return r.index.Dimension()
}

// Config returns a copy of the ranking configuration.
func (r *Retriever) Config() Config {
	c := r.config
	c.TierWeights = maps.Clone(r.config.TierWeights)
	return c
}

// Manifest returns the manifest of the loaded index.
func (r *Retriever) Manifest() storage.Manifest {
	return r.manifest
}

// Retrieve returns at most TopN candidates for query, best first.
//
// A blank query returns an empty result and ErrEmptyQuery. An embedder
// failure returns an empty result and ErrQueryEmbedding. A query embedding
// of the wrong dimension returns ErrDimensionMismatch, which IsFatal reports.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]*core.ScoredCandidate, error) {
	return r.RetrieveWithMonitor(ctx, query, nil)
}

// RetrieveWithMonitor is Retrieve with callbacks at each stage.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, query string, monitor RetrievalMonitor) ([]*core.ScoredCandidate, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	if strings.TrimSpace(query) == "" {
		monitor.Finish(nil)
		return []*core.ScoredCandidate{}, ErrEmptyQuery
	}

	// 1. Embed and normalize the query
	embedding, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "query", query, "err", err)
		monitor.Finish(nil)
		return []*core.ScoredCandidate{}, fmt.Errorf("%w: %w", ErrQueryEmbedding, err)
	}
	if len(embedding) != r.index.Dimension() {
		r.logger.Error("query embedding has wrong dimension", "got", len(embedding), "want", r.index.Dimension())
		monitor.Finish(nil)
		return []*core.ScoredCandidate{}, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(embedding), r.index.Dimension())
	}
	embedding, _ = vector.Normalize(embedding)

	// 2. Exact nearest-neighbor search
	hits, err := r.index.Search(embedding, r.config.KSearch)
	if err != nil {
		monitor.Finish(nil)
		return []*core.ScoredCandidate{}, err
	}
	monitor.AfterVectorSearch(hits)
	if len(hits) == 0 {
		monitor.Finish(nil)
		return []*core.ScoredCandidate{}, nil
	}

	// 3. Apply tier and keyword boosts
	tokens := queryTokens(query)
	candidates := make([]*core.ScoredCandidate, len(hits))
	var maxBoosted float32
	for i, hit := range hits {
		unit := r.units[hit.Position]
		c := &core.ScoredCandidate{
			Unit:      unit,
			RawScore:  hit.Score,
			TierBoost: r.config.TierWeights[unit.Metadata.Tier],
		}
		if containsAnyToken(r.lowered[hit.Position], tokens) {
			c.KeywordBoost = r.config.KeywordBoost
		}
		c.BoostedScore = c.RawScore + c.TierBoost + c.KeywordBoost
		if i == 0 || c.BoostedScore > maxBoosted {
			maxBoosted = c.BoostedScore
		}
		candidates[i] = c
	}

	// 4. Normalize within this candidate set
	for _, c := range candidates {
		if maxBoosted > 0 {
			c.NormScore = c.BoostedScore / maxBoosted
		} else {
			c.NormScore = 0
		}
	}
	monitor.Scored(candidates)

	// 5. Stable sort keeps search order among equal scores
	slices.SortStableFunc(candidates, func(a, b *core.ScoredCandidate) int {
		return cmp.Compare(b.NormScore, a.NormScore)
	})

	// 6. Truncate
	results := candidates[:min(r.config.TopN, len(candidates))]
	monitor.Finish(results)

	r.logger.Debug("retrieved candidates", "query", query, "candidates", len(hits), "returned", len(results))
	return results, nil
}
