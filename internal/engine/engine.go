package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fyrsmithlabs/askd/internal/backends"
	"github.com/fyrsmithlabs/askd/internal/config"
	"github.com/fyrsmithlabs/askd/internal/embeddings"
	"github.com/fyrsmithlabs/askd/internal/faults"
	"github.com/fyrsmithlabs/askd/internal/llm"
	"github.com/fyrsmithlabs/askd/internal/logging"
	"github.com/fyrsmithlabs/askd/internal/memory"
	"github.com/fyrsmithlabs/askd/internal/mode"
	"github.com/fyrsmithlabs/askd/internal/privacy"
	"github.com/fyrsmithlabs/askd/internal/reranker"
	"github.com/fyrsmithlabs/askd/internal/retrieval"
	"github.com/fyrsmithlabs/askd/internal/vectorstore"
	"github.com/fyrsmithlabs/askd/internal/websearch"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/askd/internal/engine"

// corpus is the embedding-dependent part of the backend set. It is replaced
// as a unit when the embedding provider changes.
type corpus struct {
	provider  mode.EmbeddingProvider
	embedder  embeddings.Provider
	db        vectorstore.DB
	docs      vectorstore.Store
	history   vectorstore.Store
	retriever *retrieval.Orchestrator
}

func (c *corpus) close() error {
	return errors.Join(c.db.Close(), c.embedder.Close())
}

// snapshot is the active backend configuration. It is never mutated after
// it has been published; setters copy it, change the copy and swap.
type snapshot struct {
	answerMode mode.AnswerMode
	model      llm.Model
	corpus     *corpus
	// searcher is set only while answerMode is web search.
	searcher websearch.Searcher
}

// Engine orchestrates one conversation.
type Engine struct {
	cfg      *config.Config
	logger   *logging.Logger
	tracer   trace.Tracer
	registry *backends.Registry
	filter   *privacy.Filter
	memory   *memory.Manager

	// mu serialises queries, mode changes and session changes.
	mu        sync.Mutex
	state     atomic.Pointer[snapshot]
	sessionID atomic.Value // string

	stopWatch context.CancelFunc

	queryDuration metric.Float64Histogram
	redactions    metric.Int64Counter
	failures      metric.Int64Counter
}

// New builds an Engine from cfg. The initial model and embedding stack go
// through the registry's fallback chains, so New only fails when a chain is
// exhausted or cfg is invalid.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, faults.Configuration("engine: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, faults.Configuration("engine: %w", err)
	}
	answerMode, _ := mode.ParseAnswerMode(cfg.Engine.AnswerMode)
	memoryMode, _ := mode.ParseMemoryMode(cfg.Engine.MemoryMode)
	modelProvider, _ := mode.ParseModelProvider(cfg.Engine.ModelProvider)
	embedProvider, _ := mode.ParseEmbeddingProvider(cfg.Engine.EmbeddingProvider)

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.meter == nil {
		o.meter = otel.Meter(instrumentationName)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(instrumentationName)
	}
	if o.registry == nil {
		o.registry = backends.New(cfg, backends.WithLogger(o.logger), backends.WithMeter(o.meter))
	}

	e := &Engine{
		cfg:       cfg,
		logger:    o.logger,
		tracer:    o.tracer,
		registry:  o.registry,
		filter:    o.filter,
		stopWatch: func() {},
	}
	e.sessionID.Store("")
	e.initMetrics(o.meter)

	if e.filter == nil {
		f, err := e.newFilter(ctx)
		if err != nil {
			return nil, err
		}
		e.filter = f
	}

	model, err := e.registry.Model(ctx, modelProvider)
	if err != nil {
		e.stopWatch()
		return nil, err
	}
	c, err := e.openCorpus(ctx, embedProvider)
	if err != nil {
		e.stopWatch()
		return nil, err
	}

	store := o.store
	if store == nil {
		root, err := config.ExpandPath(cfg.Memory.Path)
		if err == nil {
			store, err = memory.NewFileStore(root)
		}
		if err != nil {
			e.stopWatch()
			c.close()
			return nil, faults.Configuration("engine: session store: %w", err)
		}
	}
	e.memory, err = memory.NewManager(memory.Config{
		Mode:   memoryMode,
		Limit:  cfg.Engine.MessageLimit,
		Store:  store,
		Index:  c.history,
		Logger: e.logger.Underlying(),
	})
	if err != nil {
		e.stopWatch()
		c.close()
		return nil, faults.Configuration("engine: %w", err)
	}

	initial := &snapshot{answerMode: answerMode, model: model, corpus: c}
	if answerMode == mode.AnswerWebSearch {
		initial.answerMode = mode.AnswerDefault
	}
	e.state.Store(initial)
	if answerMode == mode.AnswerWebSearch {
		if err := e.setAnswerMode(ctx, answerMode); err != nil {
			e.logger.Warn(ctx, "web search unavailable at startup, using default answers", zap.Error(err))
		}
	}

	e.logger.Info(ctx, "engine ready",
		zap.String("answer_mode", string(e.state.Load().answerMode)),
		zap.String("memory_mode", string(memoryMode)),
		zap.String("model_provider", string(model.Provider())),
		zap.String("embedding_provider", string(c.provider)),
		zap.Bool("privacy_filter", e.filter.Enabled()),
	)
	return e, nil
}

func (e *Engine) initMetrics(m metric.Meter) {
	var err error
	e.queryDuration, err = m.Float64Histogram("askd.query.duration",
		metric.WithDescription("End-to-end query processing time"),
		metric.WithUnit("s"),
	)
	if err != nil {
		e.logger.Warn(context.Background(), "failed to create query duration histogram", zap.Error(err))
	}
	e.redactions, err = m.Int64Counter("askd.privacy.redactions",
		metric.WithDescription("Sensitive spans redacted from user input"),
		metric.WithUnit("{span}"),
	)
	if err != nil {
		e.logger.Warn(context.Background(), "failed to create redaction counter", zap.Error(err))
	}
	e.failures, err = m.Int64Counter("askd.query.failures",
		metric.WithDescription("Queries answered with the error reply"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		e.logger.Warn(context.Background(), "failed to create query failure counter", zap.Error(err))
	}
}

// newFilter builds the privacy filter from configuration and, if asked,
// starts watching the allowlist file until Close.
func (e *Engine) newFilter(ctx context.Context) (*privacy.Filter, error) {
	p := e.cfg.Privacy
	path, err := config.ExpandPath(p.AllowlistPath)
	if err != nil {
		return nil, faults.Configuration("engine: allowlist path: %w", err)
	}
	patterns, err := privacy.LoadAllowlist(path)
	if err != nil {
		return nil, faults.Configuration("engine: %w", err)
	}
	f, err := privacy.New(&privacy.Config{
		Enabled:    e.cfg.PrivacyEnabled(),
		AllowList:  patterns,
		SecretScan: p.SecretScan,
	})
	if err != nil {
		return nil, faults.Configuration("engine: %w", err)
	}
	if p.Watch && path != "" {
		watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		if err := privacy.WatchAllowlist(watchCtx, path, f, e.logger.Underlying()); err != nil {
			cancel()
			e.logger.Warn(ctx, "allowlist watch disabled", zap.String("path", path), zap.Error(err))
		} else {
			e.stopWatch = cancel
		}
	}
	return f, nil
}

// openCorpus resolves an embedder through the registry and opens the
// document and history collections with it. An embedder mismatch against
// the persisted index is recovered by the vector store, which keeps a
// backup; it is reported here but does not fail the switch.
func (e *Engine) openCorpus(ctx context.Context, requested mode.EmbeddingProvider) (*corpus, error) {
	embedder, provider, err := e.registry.Embedder(ctx, requested)
	if err != nil {
		return nil, err
	}

	vcfg := e.cfg.VectorStore
	if vcfg.Path, err = config.ExpandPath(vcfg.Path); err != nil {
		embedder.Close()
		return nil, faults.Configuration("engine: vectorstore path: %w", err)
	}
	db, err := vectorstore.Open(ctx, vcfg, embedder, string(provider), e.logger.Underlying())
	if err != nil {
		embedder.Close()
		return nil, faults.BackendUnavailable("engine: opening vector store: %w", err)
	}
	c := &corpus{provider: provider, embedder: embedder, db: db}
	if backup := db.Recovered(); backup != "" {
		e.logger.Warn(ctx, "vector store recreated after embedding change",
			zap.String("backup", backup),
			zap.String("provider", string(provider)),
			zap.Int("dimension", embedder.Dimension()),
		)
	}

	if c.docs, err = db.Collection(ctx, vcfg.DocumentsCollection); err == nil {
		c.history, err = db.Collection(ctx, vcfg.HistoryCollection)
	}
	if err != nil {
		c.close()
		return nil, faults.StorageIntegrity("engine: opening collections: %w", err)
	}

	rcfg := retrieval.Config{
		Store:            c.docs,
		K:                e.cfg.Engine.RetrievalK,
		HistoryExchanges: e.cfg.Engine.HistoryExchanges,
		Logger:           e.logger.Underlying(),
	}
	if e.cfg.Engine.Rerank {
		rcfg.Reranker = reranker.NewSimpleReranker()
	}
	if c.retriever, err = retrieval.New(rcfg); err != nil {
		c.close()
		return nil, faults.Configuration("engine: %w", err)
	}
	return c, nil
}

// Close stops the allowlist watcher and releases the embedding stack.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopWatch()
	if s := e.state.Load(); s != nil {
		return s.corpus.close()
	}
	return nil
}

// Status is a point-in-time view of the engine configuration.
type Status struct {
	AnswerMode        mode.AnswerMode        `json:"answer_mode"`
	MemoryMode        mode.MemoryMode        `json:"memory_mode"`
	ModelProvider     mode.ModelProvider     `json:"model_provider"`
	Model             string                 `json:"model"`
	EmbeddingProvider mode.EmbeddingProvider `json:"embedding_provider"`
	FilterEnabled     bool                   `json:"filter_enabled"`
	SessionID         string                 `json:"session_id,omitempty"`
	BufferLen         int                    `json:"buffer_len"`
}

// Status returns the current configuration without waiting for an
// in-flight query.
func (e *Engine) Status() Status {
	s := e.state.Load()
	return Status{
		AnswerMode:        s.answerMode,
		MemoryMode:        e.memory.Mode(),
		ModelProvider:     s.model.Provider(),
		Model:             s.model.Name(),
		EmbeddingProvider: s.corpus.provider,
		FilterEnabled:     e.filter.Enabled(),
		SessionID:         e.currentSession(),
		BufferLen:         e.memory.BufferLen(),
	}
}

// ChatHistory returns the transient buffer, oldest first.
func (e *Engine) ChatHistory() []memory.Message {
	return e.memory.ChatHistory()
}

// AddDocuments upserts passages into the document corpus. Passages should
// carry a "source" metadata entry to be citable.
func (e *Engine) AddDocuments(ctx context.Context, docs []vectorstore.Document) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids, err := e.state.Load().corpus.docs.AddDocuments(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("adding documents: %w", err)
	}
	return ids, nil
}

// SearchHistory runs semantic recall over persisted messages.
func (e *Engine) SearchHistory(ctx context.Context, query string, k int) ([]memory.HistoryHit, error) {
	return e.memory.SearchHistory(ctx, query, k)
}

func (e *Engine) currentSession() string {
	id, _ := e.sessionID.Load().(string)
	return id
}
