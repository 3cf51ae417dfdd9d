// Package vectorstore provides the vector indexes askd searches: the document
// corpus used by retrieval answers and the semantic copy of persisted chat
// history.
//
// Two implementations share one Store contract. chromem-go is embedded and
// persists to a local directory (the default). Qdrant is reached over gRPC for
// deployments that already run it.
//
// # Index guard
//
// Both backends record the embedding dimension the index was built with, and
// chromem also records the embedding provider. Opening an index with a
// different embedder never silently discards data: the chromem directory is
// moved to a backup path (Qdrant collections are snapshotted) before the index
// is recreated, and the event is reported as a storage integrity fault.
//
// # Usage
//
//	db, err := vectorstore.Open(ctx, cfg.VectorStore, embedder, "huggingface", logger)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	docs, err := db.Collection(ctx, cfg.VectorStore.DocumentsCollection)
//	results, err := docs.Search(ctx, "What is X?", 4)
package vectorstore
