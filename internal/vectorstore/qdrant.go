package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/askd/internal/faults"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("askd.vectorstore.qdrant")

// Payload keys reserved by the Qdrant store.
const (
	payloadContent = "content"
	payloadID      = "id"
)

// QdrantConfig holds configuration for Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (NOT HTTP REST port).
	// Default: 6334 (gRPC), not 6333 (HTTP)
	Port int

	// UseTLS enables TLS encryption for gRPC connection.
	UseTLS bool

	// APIKey authenticates against Qdrant Cloud.
	APIKey string

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB (to handle large documents)
	MaxMessageSize int
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// QdrantDB is a connection to a Qdrant server.
type QdrantDB struct {
	client    *qdrant.Client
	embedder  Embedder
	logger    *zap.Logger
	recovered string
}

// NewQdrantDB connects to Qdrant and verifies the server is healthy.
func NewQdrantDB(ctx context.Context, cfg QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantDB, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 50 * 1024 * 1024
	}
	if !cfg.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled)", zap.String("host", cfg.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, faults.BackendUnavailable("%v: %v", ErrConnectionFailed, err)
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(hctx); err != nil {
		_ = client.Close()
		return nil, faults.BackendUnavailable("%v: health check: %v", ErrConnectionFailed, err)
	}

	return &QdrantDB{client: client, embedder: embedder, logger: logger}, nil
}

// Collection returns a handle on the named collection. A collection built
// for a different vector size is snapshotted, then recreated.
func (d *QdrantDB) Collection(ctx context.Context, name string) (Store, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	s := &QdrantStore{db: d, name: name}
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Recovered returns the name of the last snapshot taken during recovery.
func (d *QdrantDB) Recovered() string {
	return d.recovered
}

// Close closes the Qdrant gRPC connection.
func (d *QdrantDB) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

// QdrantStore implements Store for one Qdrant collection.
type QdrantStore struct {
	db   *QdrantDB
	name string
}

func (s *QdrantStore) ensure(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.ensure")
	defer span.End()
	span.SetAttributes(attribute.String("collection", s.name))

	dim := uint64(s.db.embedder.Dimension())
	info, err := s.db.client.GetCollectionInfo(ctx, s.name)
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
			return s.create(ctx, dim)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return faults.BackendUnavailable("getting collection info for %s: %v", s.name, err)
	}

	existing := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if existing == dim {
		return nil
	}

	fault := faults.StorageIntegrity("collection %s built for dimension %d, embedder produces %d", s.name, existing, dim)
	snap, err := s.db.client.CreateSnapshot(ctx, s.name)
	if err != nil {
		return fmt.Errorf("%w: snapshot before recreate failed: %v", fault, err)
	}
	if err := s.db.client.DeleteCollection(ctx, s.name); err != nil {
		return fmt.Errorf("%w: deleting collection: %v", fault, err)
	}
	if err := s.create(ctx, dim); err != nil {
		return err
	}
	s.db.recovered = snap.GetName()
	s.db.logger.Warn("qdrant collection recreated, previous data snapshotted",
		zap.String("collection", s.name),
		zap.String("snapshot", snap.GetName()),
		zap.Error(fault),
	)
	return nil
}

func (s *QdrantStore) create(ctx context.Context, dim uint64) error {
	err := s.db.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.name, err)
	}
	return nil
}

// AddDocuments embeds docs and upserts them as points.
func (s *QdrantStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.AddDocuments")
	defer span.End()
	span.SetAttributes(
		attribute.Int("document_count", len(docs)),
		attribute.String("collection", s.name),
	)

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	embeddings, err := s.db.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	points := make([]*qdrant.PointStruct, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id

		payload := make(map[string]*qdrant.Value, len(doc.Metadata)+2)
		for k, v := range doc.Metadata {
			payload[k] = stringValue(v)
		}
		payload[payloadContent] = stringValue(doc.Content)
		payload[payloadID] = stringValue(id)

		// Qdrant point IDs must be UUIDs; the caller's ID stays in the payload.
		pointID := id
		if _, err := uuid.Parse(id); err != nil {
			pointID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: payload,
		}
	}

	if _, err := s.db.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.name,
		Points:         points,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("upserting points to collection %s: %w", s.name, err)
	}

	span.SetStatus(codes.Ok, "success")
	return ids, nil
}

// Search performs similarity search over the collection.
func (s *QdrantStore) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "vectorstore.Search")
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

	vector, err := s.db.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	points, err := s.db.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", s.name, err)
	}

	out := make([]SearchResult, len(points))
	for i, p := range points {
		r := SearchResult{Score: p.GetScore(), Metadata: make(map[string]string, len(p.GetPayload()))}
		for key, v := range p.GetPayload() {
			str := v.GetStringValue()
			switch key {
			case payloadContent:
				r.Content = str
			case payloadID:
				r.ID = str
			default:
				r.Metadata[key] = str
			}
		}
		out[i] = r
	}

	span.SetAttributes(attribute.Int("results_count", len(out)))
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// DeleteWhere removes points whose payload matches every filter pair.
func (s *QdrantStore) DeleteWhere(ctx context.Context, filter map[string]string) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.DeleteWhere")
	defer span.End()
	span.SetAttributes(attribute.String("collection", s.name))

	if len(filter) == 0 {
		return ErrEmptyFilter
	}

	conditions := make([]*qdrant.Condition, 0, len(filter))
	for k, v := range filter {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   k,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}},
				},
			},
		})
	}

	if _, err := s.db.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.name,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{Must: conditions},
			},
		},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting from %s: %w", s.name, err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Reset drops and recreates the collection.
func (s *QdrantStore) Reset(ctx context.Context) error {
	if err := s.db.client.DeleteCollection(ctx, s.name); err != nil {
		if st, ok := status.FromError(err); !ok || st.Code() != grpccodes.NotFound {
			return fmt.Errorf("deleting collection %s: %w", s.name, err)
		}
	}
	return s.create(ctx, uint64(s.db.embedder.Dimension()))
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	n, err := s.db.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", s.name, err)
	}
	return int(n), nil
}

// Close is a no-op; the QdrantDB owns the connection.
func (s *QdrantStore) Close() error {
	return nil
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

// IsTransientError checks if an error is transient (should retry).
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	var st interface{ GRPCStatus() *status.Status }
	if !errors.As(err, &st) {
		return false
	}
	switch st.GRPCStatus().Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

var (
	_ Store = (*QdrantStore)(nil)
	_ DB    = (*QdrantDB)(nil)
)
