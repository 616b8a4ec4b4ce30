package indexer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/storage"
	"github.com/poiesic/hybridrag/storage/badger"
	"github.com/poiesic/hybridrag/vector"
)

const (
	// DefaultBatchSize is the number of texts sent to the embedder per call.
	DefaultBatchSize = 48

	// DefaultMaxRetries is the number of attempts per batch.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the delay before the first retry of a batch.
	DefaultRetryDelay = time.Second
)

// Builder embeds text units and persists them as a vector index.
// A Builder may run several builds, one at a time or concurrently.
type Builder struct {
	embedder       ai.Embedder
	pool           *ants.Pool
	batchSize      int
	maxRetries     int
	retryDelay     time.Duration
	progress       io.Writer
	reportInterval int
	embeddingModel string
	backendOpts    []badger.BackendOption
	now            func() time.Time
	logger         *slog.Logger
}

// Report summarizes a completed build.
type Report struct {
	// Count is the number of indexed units.
	Count int
	// Dimension is the embedding dimension.
	Dimension int
	// Batches is the number of embedding batches.
	Batches int
	// ZeroVectors counts embeddings with zero norm. They are stored unscaled.
	ZeroVectors int
	// Elapsed is the wall time of the build.
	Elapsed time.Duration
}

// Option configures a Builder.
type Option func(*Builder) error

// WithBatchSize sets how many texts are embedded per call.
// Default is 48.
func WithBatchSize(size int) Option {
	return func(b *Builder) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size %d", ErrInvalidOption, size)
		}
		b.batchSize = size
		return nil
	}
}

// WithPoolSize sets the worker pool size for concurrent batch embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(b *Builder) error {
		if size < 1 {
			size = 1
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if b.pool != nil {
			b.pool.Release()
		}
		b.pool = pool
		return nil
	}
}

// WithMaxRetries sets the number of attempts per batch.
// Default is 3.
func WithMaxRetries(attempts int) Option {
	return func(b *Builder) error {
		if attempts < 1 {
			return fmt.Errorf("%w: max retries %d", ErrInvalidOption, attempts)
		}
		b.maxRetries = attempts
		return nil
	}
}

// WithRetryDelay sets the base delay between retries of a batch.
// Default is one second.
func WithRetryDelay(delay time.Duration) Option {
	return func(b *Builder) error {
		if delay < 0 {
			return fmt.Errorf("%w: retry delay %s", ErrInvalidOption, delay)
		}
		b.retryDelay = delay
		return nil
	}
}

// WithProgress writes embedding progress to w.
func WithProgress(w io.Writer) Option {
	return func(b *Builder) error {
		b.progress = w
		return nil
	}
}

// WithReportInterval sets how many units pass between progress lines.
// Default is the batch size.
func WithReportInterval(units int) Option {
	return func(b *Builder) error {
		b.reportInterval = units
		return nil
	}
}

// WithEmbeddingModel records the embedding model name in the index manifest.
func WithEmbeddingModel(name string) Option {
	return func(b *Builder) error {
		b.embeddingModel = name
		return nil
	}
}

// WithBackendOptions passes options to the badger backend used for persistence.
func WithBackendOptions(opts ...badger.BackendOption) Option {
	return func(b *Builder) error {
		b.backendOpts = append(b.backendOpts, opts...)
		return nil
	}
}

// WithClock sets the time source used for the manifest build time.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) error {
		if now == nil {
			now = time.Now
		}
		b.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBuilder creates a Builder that embeds with embedder.
// Call Release when the builder is no longer needed.
func NewBuilder(embedder ai.Embedder, opts ...Option) (*Builder, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	b := &Builder{
		embedder:   embedder,
		batchSize:  DefaultBatchSize,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		now:        time.Now,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			b.Release()
			return nil, err
		}
	}

	if b.pool == nil {
		poolSize := max(runtime.NumCPU()/2, 1)
		pool, err := ants.NewPool(poolSize)
		if err != nil {
			return nil, err
		}
		b.pool = pool
	}

	if b.reportInterval < 1 {
		b.reportInterval = b.batchSize
	}
	b.logger = b.logger.With("component", "index-builder")
	return b, nil
}

// Release releases the worker pool.
// The builder should not be used after calling Release.
func (b *Builder) Release() {
	if b.pool != nil {
		b.pool.Release()
	}
}

// Build embeds units, builds an exact inner-product index over the
// normalized vectors and persists it at outPath, replacing any index there.
//
// Nothing is written unless every step succeeds.
func (b *Builder) Build(ctx context.Context, units []*core.TextUnit, outPath string) (*Report, error) {
	start := time.Now()

	if len(units) == 0 {
		return nil, ErrEmptyCorpus
	}

	texts := make([]string, len(units))
	for i, unit := range units {
		if err := core.ValidateTextUnit(unit); err != nil {
			return nil, fmt.Errorf("unit %d: %w", i, err)
		}
		texts[i] = unit.Text
	}

	b.logger.Info("embedding text units", "units", len(units), "batchSize", b.batchSize)
	embeddings, batches, err := b.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	dim := len(embeddings[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: embedder returned an empty vector", ErrEmbeddingMismatch)
	}

	normalized := make([][]float32, len(embeddings))
	zeroVectors := 0
	for i, v := range embeddings {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: unit %d has dimension %d, expected %d", ErrEmbeddingMismatch, i, len(v), dim)
		}
		nv, ok := vector.Normalize(v)
		if !ok {
			zeroVectors++
		}
		normalized[i] = nv
	}
	if zeroVectors > 0 {
		b.logger.Warn("zero-norm embeddings stored unscaled", "count", zeroVectors)
	}

	index, err := vector.NewFlatIndex(dim)
	if err != nil {
		return nil, err
	}
	if err := index.Add(normalized...); err != nil {
		return nil, err
	}

	snapshot := b.snapshot(units, index)
	if err := badger.SaveIndex(ctx, outPath, snapshot, b.backendOpts...); err != nil {
		return nil, fmt.Errorf("persisting index: %w", err)
	}

	report := &Report{
		Count:       index.Len(),
		Dimension:   dim,
		Batches:     batches,
		ZeroVectors: zeroVectors,
		Elapsed:     time.Since(start),
	}
	b.logger.Info("index built",
		"path", outPath,
		"units", report.Count,
		"dimension", report.Dimension,
		"elapsed", report.Elapsed)
	return report, nil
}

// snapshot assembles the persisted form: position i holds unit i with id "i".
func (b *Builder) snapshot(units []*core.TextUnit, index *vector.FlatIndex) *storage.Snapshot {
	n := index.Len()
	idMap := make([]string, n)
	vectors := make([][]float32, n)
	docstore := make(map[string]*core.TextUnit, n)
	for i, unit := range units {
		id := strconv.Itoa(i)
		idMap[i] = id
		vectors[i] = index.Vector(i)
		docstore[id] = &core.TextUnit{
			ID:       id,
			Text:     unit.Text,
			Metadata: unit.Metadata,
		}
	}

	return &storage.Snapshot{
		Manifest: storage.Manifest{
			Version:        storage.FormatVersion,
			Dimension:      index.Dimension(),
			Count:          n,
			Checksum:       storage.Checksum(idMap, docstore),
			EmbeddingModel: b.embeddingModel,
			BuiltAt:        b.now().UTC(),
		},
		Vectors:  vectors,
		IDMap:    idMap,
		Docstore: docstore,
	}
}

// embedAll embeds texts in batches on the worker pool.
// Results are placed by batch index, so the output order is the input order
// whatever order the batches finish in. The first failing batch cancels the rest.
func (b *Builder) embedAll(ctx context.Context, texts []string) ([][]float32, int, error) {
	numBatches := (len(texts) + b.batchSize - 1) / b.batchSize
	results := make([][][]float32, numBatches)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	progress := b.progress
	if progress == nil {
		progress = io.Discard
	}
	tracker := NewProgressTracker(progress, len(texts), b.reportInterval)
	tracker.Start()

	for i := 0; i < numBatches; i++ {
		lo := i * b.batchSize
		hi := min(lo+b.batchSize, len(texts))
		batch := texts[lo:hi]

		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()

			vecs, err := b.embedBatch(ctx, batch)
			if err != nil {
				fail(fmt.Errorf("batch %d: %w", i, err))
				return
			}
			results[i] = vecs
			tracker.Increment(len(batch))
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("submitting batch %d: %w", i, err))
			break
		}
	}
	wg.Wait()
	if b.progress != nil {
		tracker.Finish()
	}

	if firstErr != nil {
		b.logger.Error("embedding failed", "err", firstErr)
		return nil, 0, firstErr
	}

	embeddings := make([][]float32, 0, len(texts))
	for _, vecs := range results {
		embeddings = append(embeddings, vecs...)
	}
	return embeddings, numBatches, nil
}

// embedBatch embeds one batch with retries and checks the result count.
func (b *Builder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var vecs [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		vecs, err = b.embedder.EmbedTexts(ctx, batch)
		return err
	}, b.maxRetries, b.retryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	if len(vecs) != len(batch) {
		return nil, fmt.Errorf("%w: expected %d vectors, received %d", ErrEmbeddingMismatch, len(batch), len(vecs))
	}
	return vecs, nil
}
