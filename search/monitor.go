package search

import (
	"log/slog"

	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/vector"
)

// RetrievalMonitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results.
// Hooks are called synchronously on the retrieving goroutine.
type RetrievalMonitor interface {
	Start(query string)
	AfterVectorSearch(hits []vector.Hit)
	Scored(candidates []*core.ScoredCandidate)
	Finish(results []*core.ScoredCandidate)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                   {}
func (n *noopMonitor) AfterVectorSearch(_ []vector.Hit) {}
func (n *noopMonitor) Scored(_ []*core.ScoredCandidate) {}
func (n *noopMonitor) Finish(_ []*core.ScoredCandidate) {}

// LogMonitor logs every retrieval step, including the full text of each
// selected candidate.
type LogMonitor struct {
	logger *slog.Logger
}

var _ RetrievalMonitor = (*LogMonitor)(nil)

// NewLogMonitor creates a LogMonitor. A nil logger uses slog.Default().
func NewLogMonitor(logger *slog.Logger) *LogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMonitor{logger: logger.With("component", "retriever-monitor")}
}

func (m *LogMonitor) Start(query string) {
	m.logger.Info("retrieving", "query", query)
}

func (m *LogMonitor) AfterVectorSearch(hits []vector.Hit) {
	if len(hits) == 0 {
		m.logger.Info("no results")
		return
	}
	m.logger.Info("vector search complete", "candidates", len(hits))
}

func (m *LogMonitor) Scored(candidates []*core.ScoredCandidate) {
	m.logger.Debug("candidates scored", "candidates", len(candidates))
}

func (m *LogMonitor) Finish(results []*core.ScoredCandidate) {
	m.logger.Info("selected top candidates", "count", len(results))
	for i, c := range results {
		m.logger.Info("candidate",
			"rank", i+1,
			"tier", c.Unit.Metadata.Tier,
			"category", c.Unit.Metadata.Category,
			"raw", c.RawScore,
			"tierBoost", c.TierBoost,
			"keywordBoost", c.KeywordBoost,
			"norm", c.NormScore,
			"text", c.Unit.Text)
	}
}
