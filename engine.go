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


package hybridrag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/ai/openai"
	"github.com/poiesic/hybridrag/answer"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/indexer"
	"github.com/poiesic/hybridrag/knowledge"
	"github.com/poiesic/hybridrag/search"
)

// Engine bundles a loaded retriever with the answerer built on it.
// An Engine is immutable once opened and safe for concurrent use.
type Engine struct {
	provider  ai.AIProvider
	retriever *search.Retriever
	answerer  *answer.Answerer
	logger    *slog.Logger
}

// Option configures Open and BuildIndex.
type Option func(*options)

type options struct {
	aiConfig      *ai.Config
	provider      ai.AIProvider
	retrieverOpts []search.Option
	answerOpts    []answer.Option
	builderOpts   []indexer.Option
	logger        *slog.Logger
}

// WithAIConfig sets the configuration of the OpenAI-compatible provider.
// Ignored when WithProvider is used.
func WithAIConfig(config *ai.Config) Option {
	return func(o *options) {
		o.aiConfig = config
	}
}

// WithProvider supplies the AI provider instead of building one from the AI config.
// The engine takes ownership and closes it on Close.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithRetrieverOptions passes options to the retriever.
func WithRetrieverOptions(opts ...search.Option) Option {
	return func(o *options) {
		o.retrieverOpts = append(o.retrieverOpts, opts...)
	}
}

// WithAnswerOptions passes options to the answerer.
func WithAnswerOptions(opts ...answer.Option) Option {
	return func(o *options) {
		o.answerOpts = append(o.answerOpts, opts...)
	}
}

// WithBuilderOptions passes options to the index builder used by BuildIndex.
func WithBuilderOptions(opts ...indexer.Option) Option {
	return func(o *options) {
		o.builderOpts = append(o.builderOpts, opts...)
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.aiConfig == nil {
		o.aiConfig = ai.DefaultConfig()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

func (o *options) openProvider() (ai.AIProvider, error) {
	if o.provider != nil {
		return o.provider, nil
	}
	o.aiConfig.Normalize()
	return openai.NewProvider(o.aiConfig)
}

// Open loads the index at indexPath and prepares retrieval and answering.
func Open(ctx context.Context, indexPath string, opts ...Option) (*Engine, error) {
	o := newOptions(opts)

	provider, err := o.openProvider()
	if err != nil {
		return nil, err
	}

	retrieverOpts := append([]search.Option{search.WithLogger(o.logger)}, o.retrieverOpts...)
	retriever, err := search.Load(ctx, indexPath, provider.Embedder(), retrieverOpts...)
	if err != nil {
		provider.Close()
		return nil, err
	}

	answerOpts := append([]answer.Option{answer.WithLogger(o.logger)}, o.answerOpts...)
	answerer, err := answer.NewAnswerer(retriever, provider.Generator(), answerOpts...)
	if err != nil {
		provider.Close()
		return nil, err
	}

	return &Engine{
		provider:  provider,
		retriever: retriever,
		answerer:  answerer,
		logger:    o.logger.With("component", "engine"),
	}, nil
}

// Retrieve returns the ranked candidates for query.
func (e *Engine) Retrieve(ctx context.Context, query string) ([]*core.ScoredCandidate, error) {
	return e.retriever.Retrieve(ctx, query)
}

// Answer retrieves context for question and generates a grounded reply.
func (e *Engine) Answer(ctx context.Context, question string) answer.Result {
	return e.answerer.Answer(ctx, question)
}

// Retriever returns the underlying retriever.
func (e *Engine) Retriever() *search.Retriever {
	return e.retriever
}

// Answerer returns the underlying answerer.
func (e *Engine) Answerer() *answer.Answerer {
	return e.answerer
}

// Close releases the AI provider.
func (e *Engine) Close() error {
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
		return err
	}
	return nil
}

// BuildIndex reads the knowledge file at knowledgePath and writes its index to indexPath.
func BuildIndex(ctx context.Context, knowledgePath, indexPath string, opts ...Option) (*indexer.Report, error) {
	units, err := knowledge.LoadFile(knowledgePath)
	if err != nil {
		return nil, fmt.Errorf("loading knowledge: %w", err)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%s: %w", knowledgePath, indexer.ErrEmptyCorpus)
	}

	return withBuilder(newOptions(opts), func(b *indexer.Builder) (*indexer.Report, error) {
		return b.Build(ctx, units, indexPath)
	})
}

// Reembed rebuilds the index at indexPath with the configured embedding model,
// keeping its units.
func Reembed(ctx context.Context, indexPath string, opts ...Option) (*indexer.Report, error) {
	return withBuilder(newOptions(opts), func(b *indexer.Builder) (*indexer.Report, error) {
		return b.Reembed(ctx, indexPath)
	})
}

// withBuilder runs fn with a builder over the provider's embedder and closes
// the provider afterwards.
func withBuilder(o *options, fn func(*indexer.Builder) (*indexer.Report, error)) (*indexer.Report, error) {
	provider, err := o.openProvider()
	if err != nil {
		return nil, err
	}

	builderOpts := append([]indexer.Option{
		indexer.WithEmbeddingModel(o.aiConfig.EmbeddingModel),
		indexer.WithLogger(o.logger),
	}, o.builderOpts...)
	builder, err := indexer.NewBuilder(provider.Embedder(), builderOpts...)
	if err != nil {
		provider.Close()
		return nil, err
	}
	defer builder.Release()

	report, err := fn(builder)
	return report, errors.Join(err, provider.Close())
}
