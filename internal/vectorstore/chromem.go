package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/askd/internal/config"
	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("askd.vectorstore.chromem")

// ChromemConfig holds configuration for chromem-go embedded vector database.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty keeps the index in
	// memory only.
	Path string

	// EmbeddingProvider names the embedder in the index manifest. Reopening
	// with a different provider recreates the index like a dimension change.
	EmbeddingProvider string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// ChromemDB is an embedded chromem-go database. Collections opened from it
// share the embedder and the on-disk directory.
type ChromemDB struct {
	db        *chromem.DB
	embedder  Embedder
	logger    *zap.Logger
	path      string
	recovered string
}

// NewChromemDB opens (or creates) the database at cfg.Path after checking the
// stored dimension and embedding provider against the embedder.
func NewChromemDB(cfg ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemDB, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &ChromemDB{embedder: embedder, logger: logger}
	if cfg.Path == "" {
		d.db = chromem.NewDB()
		return d, nil
	}

	path, err := config.ExpandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	d.path = path

	backup, err := guardIndex(path, manifest{Dimension: embedder.Dimension(), Provider: cfg.EmbeddingProvider}, logger)
	if err != nil {
		return nil, err
	}
	d.recovered = backup

	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}
	d.db = db

	logger.Info("chromem database opened",
		zap.String("path", path),
		zap.Bool("compress", cfg.Compress),
		zap.Int("vector_size", embedder.Dimension()),
	)
	return d, nil
}

// Collection returns a handle on the named collection, creating it if needed.
func (d *ChromemDB) Collection(_ context.Context, name string) (Store, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	s := &ChromemStore{db: d, name: name}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// Recovered returns the backup path written during open, if any.
func (d *ChromemDB) Recovered() string {
	return d.recovered
}

// Close is a no-op; chromem persists on every write.
func (d *ChromemDB) Close() error {
	return nil
}

// embeddingFunc adapts the embedder for query-time embedding. It must be
// passed on every collection lookup, otherwise chromem-go falls back to its
// OpenAI default for persisted collections.
func (d *ChromemDB) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return d.embedder.EmbedQuery(ctx, text)
	}
}

// ChromemStore implements Store for one chromem collection.
type ChromemStore struct {
	db   *ChromemDB
	name string

	mu         sync.RWMutex
	collection *chromem.Collection
}

func (s *ChromemStore) open() error {
	c, err := s.db.db.GetOrCreateCollection(s.name, nil, s.db.embeddingFunc())
	if err != nil {
		return fmt.Errorf("getting/creating collection %s: %w", s.name, err)
	}
	s.mu.Lock()
	s.collection = c
	s.mu.Unlock()
	return nil
}

func (s *ChromemStore) current() *chromem.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection
}

// AddDocuments embeds docs in one batch and adds them to the collection.
func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.AddDocuments")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", s.name),
		attribute.Int("document_count", len(docs)),
	)

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	ids := make([]string, len(docs))
	texts := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		if ids[i] == "" {
			ids[i] = uuid.NewString()
		}
		texts[i] = doc.Content
	}

	embeddings, err := s.db.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        ids[i],
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: embeddings[i],
		}
	}

	// Concurrency of 1 since embeddings are already computed.
	if err := s.current().AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	s.db.logger.Debug("added documents to chromem",
		zap.String("collection", s.name),
		zap.Int("count", len(docs)),
	)
	return ids, nil
}

// Search performs similarity search over the collection.
func (s *ChromemStore) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "vectorstore.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", s.name),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	collection := s.current()

	// chromem requires nResults <= document count.
	docCount := collection.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	results, err := collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.name, err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(out)))
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// DeleteWhere removes documents whose metadata matches filter.
func (s *ChromemStore) DeleteWhere(ctx context.Context, filter map[string]string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteWhere")
	defer span.End()
	span.SetAttributes(attribute.String("collection", s.name))

	if len(filter) == 0 {
		return ErrEmptyFilter
	}
	if err := s.current().Delete(ctx, filter, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting from %s: %w", s.name, err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Reset drops and recreates the collection.
func (s *ChromemStore) Reset(ctx context.Context) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.Reset")
	defer span.End()
	span.SetAttributes(attribute.String("collection", s.name))

	if err := s.db.db.DeleteCollection(s.name); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", s.name, err)
	}
	if err := s.open(); err != nil {
		span.RecordError(err)
		return err
	}
	s.db.logger.Info("chromem collection reset", zap.String("collection", s.name))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Count returns the number of documents in the collection.
func (s *ChromemStore) Count(_ context.Context) (int, error) {
	return s.current().Count(), nil
}

// Close is a no-op; the database owns all resources.
func (s *ChromemStore) Close() error {
	return nil
}

var (
	_ Store = (*ChromemStore)(nil)
	_ DB    = (*ChromemDB)(nil)
)
