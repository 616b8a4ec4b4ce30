package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/hybridrag/ai"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/search"
)

// Retriever returns ranked candidates for a query.
// *search.Retriever implements it.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]*core.ScoredCandidate, error)
}

var _ Retriever = (*search.Retriever)(nil)

// Result is the outcome of one Answer call.
type Result struct {
	// Text is the answer shown to the user. It is the fallback message when
	// Err wraps ErrNoInformation and empty on any other error.
	Text string
	// Candidates are the retrieved units the answer was grounded on.
	Candidates []*core.ScoredCandidate
	// Err is nil on success.
	Err error
}

// Answerer answers questions from retrieved context.
// It is safe for concurrent use if its retriever and generator are.
type Answerer struct {
	retriever    Retriever
	generator    ai.Generator
	systemPrompt string
	fallback     string
	logger       *slog.Logger
}

// Option configures an Answerer.
type Option func(*Answerer) error

// WithSystemPrompt replaces the system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(a *Answerer) error {
		if strings.TrimSpace(prompt) == "" {
			return errors.New("system prompt must not be empty")
		}
		a.systemPrompt = prompt
		return nil
	}
}

// WithFallback sets the answer given when nothing relevant is retrieved.
// Default is DefaultFallback.
func WithFallback(message string) Option {
	return func(a *Answerer) error {
		if strings.TrimSpace(message) == "" {
			return errors.New("fallback message must not be empty")
		}
		a.fallback = message
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Answerer) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAnswerer creates an Answerer.
func NewAnswerer(retriever Retriever, generator ai.Generator, opts ...Option) (*Answerer, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	a := &Answerer{
		retriever:    retriever,
		generator:    generator,
		systemPrompt: DefaultSystemPrompt,
		fallback:     DefaultFallback,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	a.logger = a.logger.With("component", "answerer")
	return a, nil
}

// Fallback returns the configured fallback message.
func (a *Answerer) Fallback() string {
	return a.fallback
}

// Answer retrieves context for question and asks the generator for a reply.
//
// A retrieval failure that is not fatal, an empty candidate list and an empty
// reply all produce the fallback text with an error wrapping ErrNoInformation.
// The generator is not called when nothing was retrieved. Fatal retrieval
// errors and generator failures produce an empty text.
func (a *Answerer) Answer(ctx context.Context, question string) Result {
	candidates, err := a.retriever.Retrieve(ctx, question)
	if err != nil {
		if search.IsFatal(err) {
			a.logger.Error("retrieval failed", "err", err)
			return Result{Err: err}
		}
		a.logger.Warn("retrieval returned no context", "err", err)
		return a.noInformation(nil, err)
	}
	if len(candidates) == 0 {
		return a.noInformation(candidates, nil)
	}

	reply, err := a.generator.Generate(ctx, a.systemPrompt, buildUserMessage(question, candidates))
	if err != nil {
		a.logger.Error("generation failed", "err", err)
		return Result{Candidates: candidates, Err: fmt.Errorf("%w: %w", ErrGeneration, err)}
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return a.noInformation(candidates, errors.New("empty reply"))
	}

	a.logger.Debug("answered question", "candidates", len(candidates), "replyLength", len(reply))
	return Result{Text: reply, Candidates: candidates}
}

func (a *Answerer) noInformation(candidates []*core.ScoredCandidate, cause error) Result {
	err := ErrNoInformation
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrNoInformation, cause)
	}
	if candidates == nil {
		candidates = []*core.ScoredCandidate{}
	}
	return Result{Text: a.fallback, Candidates: candidates, Err: err}
}
