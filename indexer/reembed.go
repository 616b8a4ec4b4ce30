package indexer

import (
	"context"
	"fmt"

	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/storage"
	"github.com/poiesic/hybridrag/storage/badger"
)

// Corpus returns the units of snapshot in index position order.
// The returned units are copies without ids.
func Corpus(snapshot *storage.Snapshot) []*core.TextUnit {
	units := make([]*core.TextUnit, len(snapshot.IDMap))
	for pos, id := range snapshot.IDMap {
		unit := snapshot.Docstore[id]
		units[pos] = &core.TextUnit{
			Text:     unit.Text,
			Metadata: unit.Metadata,
		}
	}
	return units
}

// Reembed rebuilds the index at path with the builder's embedder.
// Units keep their text, metadata and position; only the vectors and the
// manifest change. The previous index stays in place if anything fails.
func (b *Builder) Reembed(ctx context.Context, path string) (*Report, error) {
	snapshot, err := badger.LoadIndex(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}

	b.logger.Info("reembedding index",
		"path", path,
		"units", len(snapshot.IDMap),
		"previousModel", snapshot.Manifest.EmbeddingModel,
		"previousDimension", snapshot.Manifest.Dimension)
	return b.Build(ctx, Corpus(snapshot), path)
}
