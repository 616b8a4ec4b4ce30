// Package indexer builds a persisted vector index from text units.
//
// A Builder embeds the unit texts in batches on a worker pool, reassembles
// the batch results in input order, L2-normalizes every vector, loads them
// into an exact inner-product index and persists the index, the id map and
// the docstore as one artifact:
//
//	builder, err := indexer.NewBuilder(provider.Embedder(),
//	    indexer.WithBatchSize(48),
//	    indexer.WithProgress(os.Stderr),
//	)
//	if err != nil {
//	    return err
//	}
//	defer builder.Release()
//
//	report, err := builder.Build(ctx, units, "data/index")
//
// Units receive the ids "0".."N-1" in input order; any id set by the
// producer is ignored. Batch size and pool size change throughput only,
// never the persisted result.
package indexer
