package vectorstore

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/askd/internal/config"
	"go.uber.org/zap"
)

// Open creates a DB based on the configured provider. embedderName is the
// embedding provider recorded with a chromem index; Qdrant checks the vector
// size only.
//
//   - "chromem" (default): embedded, persisted under cfg.Path
//   - "qdrant": remote server over gRPC
//
// Example usage:
//
//	db, err := vectorstore.Open(ctx, cfg.VectorStore, embedder, "huggingface", logger)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(ctx context.Context, cfg config.VectorStoreConfig, embedder Embedder, embedderName string, logger *zap.Logger) (DB, error) {
	switch cfg.Provider {
	case "chromem", "":
		compress := cfg.Compress == nil || *cfg.Compress
		db, err := NewChromemDB(ChromemConfig{Path: cfg.Path, Compress: compress, EmbeddingProvider: embedderName}, embedder, logger)
		if err != nil {
			return nil, fmt.Errorf("creating chromem store: %w", err)
		}
		return db, nil
	case "qdrant":
		db, err := NewQdrantDB(ctx, QdrantConfig{
			Host:   cfg.QdrantHost,
			Port:   cfg.QdrantPort,
			UseTLS: cfg.QdrantUseTLS,
			APIKey: cfg.QdrantAPIKey.Value(),
		}, embedder, logger)
		if err != nil {
			return nil, fmt.Errorf("creating qdrant store: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider %q (supported: chromem, qdrant)", ErrInvalidConfig, cfg.Provider)
	}
}
