package answer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/poiesic/hybridrag/ai/mock"
	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// retrieverFunc adapts a function to the Retriever interface.
type retrieverFunc func(ctx context.Context, query string) ([]*core.ScoredCandidate, error)

func (f retrieverFunc) Retrieve(ctx context.Context, query string) ([]*core.ScoredCandidate, error) {
	return f(ctx, query)
}

func candidates(texts ...string) []*core.ScoredCandidate {
	out := make([]*core.ScoredCandidate, len(texts))
	for i, text := range texts {
		out[i] = &core.ScoredCandidate{
			Unit:      &core.TextUnit{Text: text, Metadata: core.Metadata{Tier: core.Tier2}},
			NormScore: 1 - float32(i)*0.1,
		}
	}
	return out
}

func fixed(cands []*core.ScoredCandidate, err error) Retriever {
	return retrieverFunc(func(context.Context, string) ([]*core.ScoredCandidate, error) {
		return cands, err
	})
}

func TestBuildPrompt(t *testing.T) {
	system, user := BuildPrompt("How heavy?", candidates("Cabin bags: 7kg.", "Checked bags: 20kg."))

	assert.Equal(t, DefaultSystemPrompt, system)
	assert.Equal(t, "Context:\n- Cabin bags: 7kg.\n\n- Checked bags: 20kg.\n\nQuestion: How heavy?", user)
	assert.Contains(t, system, DefaultFallback)
}

func TestBuildContext(t *testing.T) {
	assert.Equal(t, "", BuildContext(nil))
	assert.Equal(t, "- only", BuildContext(candidates("only")))
	assert.Equal(t, "- a\n\n- b", BuildContext(append(candidates("a"), nil, &core.ScoredCandidate{}, candidates("b")[0])))
}

func TestNewAnswerer_Validation(t *testing.T) {
	gen := mock.NewMockGenerator()

	_, err := NewAnswerer(nil, gen)
	assert.ErrorIs(t, err, ErrRetrieverRequired)

	_, err = NewAnswerer(fixed(nil, nil), nil)
	assert.ErrorIs(t, err, ErrGeneratorRequired)

	_, err = NewAnswerer(fixed(nil, nil), gen, WithFallback("  "))
	assert.Error(t, err)

	_, err = NewAnswerer(fixed(nil, nil), gen, WithSystemPrompt(""))
	assert.Error(t, err)

	a, err := NewAnswerer(fixed(nil, nil), gen, WithFallback("No idea."), WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, "No idea.", a.Fallback())
}

func TestAnswer_Success(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(ctx context.Context, system, user string) (string, error) {
		return "  You may bring one 7kg cabin bag.  ", nil
	}
	cands := candidates("Cabin bags: 7kg.")

	var gotQuery string
	retriever := retrieverFunc(func(ctx context.Context, query string) ([]*core.ScoredCandidate, error) {
		gotQuery = query
		return cands, nil
	})

	a, err := NewAnswerer(retriever, gen, WithSystemPrompt("be brief"))
	require.NoError(t, err)

	res := a.Answer(context.Background(), "cabin bag?")
	require.NoError(t, res.Err)
	assert.Equal(t, "You may bring one 7kg cabin bag.", res.Text)
	assert.Equal(t, cands, res.Candidates)
	assert.Equal(t, "cabin bag?", gotQuery)

	call, ok := gen.LastCall()
	require.True(t, ok)
	assert.Equal(t, "be brief", call.System)
	assert.Equal(t, "Context:\n- Cabin bags: 7kg.\n\nQuestion: cabin bag?", call.User)
}

func TestAnswer_NoCandidates(t *testing.T) {
	gen := mock.NewMockGenerator()
	a, err := NewAnswerer(fixed([]*core.ScoredCandidate{}, nil), gen)
	require.NoError(t, err)

	res := a.Answer(context.Background(), "anything")
	assert.ErrorIs(t, res.Err, ErrNoInformation)
	assert.Equal(t, DefaultFallback, res.Text)
	assert.NotNil(t, res.Candidates)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, 0, gen.CallCount())
}

func TestAnswer_RetrievalErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback bool
	}{
		{name: "empty query", err: search.ErrEmptyQuery, fallback: true},
		{name: "embedding failure", err: search.ErrQueryEmbedding, fallback: true},
		{name: "dimension mismatch", err: search.ErrDimensionMismatch, fallback: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := mock.NewMockGenerator()
			a, err := NewAnswerer(fixed([]*core.ScoredCandidate{}, tt.err), gen, WithFallback("Nothing found."))
			require.NoError(t, err)

			res := a.Answer(context.Background(), "q")
			assert.ErrorIs(t, res.Err, tt.err)
			assert.Equal(t, 0, gen.CallCount())
			if tt.fallback {
				assert.ErrorIs(t, res.Err, ErrNoInformation)
				assert.Equal(t, "Nothing found.", res.Text)
			} else {
				assert.NotErrorIs(t, res.Err, ErrNoInformation)
				assert.Empty(t, res.Text)
			}
		})
	}
}

func TestAnswer_GeneratorFailure(t *testing.T) {
	boom := errors.New("model offline")
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(context.Context, string, string) (string, error) {
		return "", boom
	}
	cands := candidates("a")

	a, err := NewAnswerer(fixed(cands, nil), gen)
	require.NoError(t, err)

	res := a.Answer(context.Background(), "q")
	assert.ErrorIs(t, res.Err, ErrGeneration)
	assert.ErrorIs(t, res.Err, boom)
	assert.Empty(t, res.Text)
	assert.NotContains(t, res.Text, "model offline")
	assert.Equal(t, cands, res.Candidates)
}

func TestAnswer_EmptyReply(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(context.Context, string, string) (string, error) {
		return " \n ", nil
	}

	a, err := NewAnswerer(fixed(candidates("a"), nil), gen)
	require.NoError(t, err)

	res := a.Answer(context.Background(), "q")
	assert.ErrorIs(t, res.Err, ErrNoInformation)
	assert.Equal(t, DefaultFallback, res.Text)
	assert.Len(t, res.Candidates, 1)
}

func TestAnswer_Logs(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	a, err := NewAnswerer(fixed(candidates("a"), nil), mock.NewMockGenerator(), WithLogger(logger))
	require.NoError(t, err)

	res := a.Answer(context.Background(), "q")
	require.NoError(t, res.Err)
	assert.Contains(t, buf.String(), "component=answerer")
	assert.Contains(t, buf.String(), "answered question")
}
