package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrEmptyFilter is returned by DeleteWhere when no filter is given.
	ErrEmptyFilter = errors.New("delete filter cannot be empty")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Store is one collection of a vector index.
type Store interface {
	// AddDocuments embeds and upserts docs, returning their IDs. Documents
	// without an ID get a generated one.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search returns up to k documents ordered by similarity, highest first.
	// An empty collection yields no results and no error.
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)

	// DeleteWhere removes every document whose metadata matches all
	// key/value pairs in filter.
	DeleteWhere(ctx context.Context, filter map[string]string) error

	// Reset removes every document in the collection.
	Reset(ctx context.Context) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by this collection handle.
	Close() error
}

// DB opens collections of a single index.
type DB interface {
	Collection(ctx context.Context, name string) (Store, error)
	// Recovered returns the backup location if opening the index triggered a
	// dimension-mismatch recovery, or "".
	Recovered() string
	Close() error
}

// collectionNamePattern validates collection names.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against security rules.
// Rejects uppercase, special characters, path traversal and spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}
