package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/askd/internal/llm"
	"github.com/fyrsmithlabs/askd/internal/memory"
	"github.com/fyrsmithlabs/askd/internal/reranker"
	"github.com/fyrsmithlabs/askd/internal/vectorstore"
	"github.com/fyrsmithlabs/askd/internal/websearch"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("askd.retrieval")

// ErrNoStore indicates the orchestrator was built without a document store.
var ErrNoStore = errors.New("retrieval: document store is required")

// DefaultHistoryExchanges is used when Config.HistoryExchanges is not set.
const DefaultHistoryExchanges = 3

// Config configures an Orchestrator.
type Config struct {
	// Store is the document collection searched for context.
	Store vectorstore.Store
	// K is the number of passages handed to the model.
	K int
	// HistoryExchanges bounds the conversation prefixed to the search query.
	// Zero or less means DefaultHistoryExchanges.
	HistoryExchanges int
	// Reranker, if set, reorders 2*K candidates and keeps the best K.
	Reranker reranker.Reranker
	Logger   *zap.Logger
}

// Orchestrator retrieves context from the corpus and builds attributed
// answers.
type Orchestrator struct {
	store     vectorstore.Store
	k         int
	exchanges int
	reranker  reranker.Reranker
	logger    *zap.Logger
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, ErrNoStore
	}
	if cfg.K <= 0 {
		return nil, fmt.Errorf("retrieval: k must be positive, got %d", cfg.K)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	exchanges := cfg.HistoryExchanges
	if exchanges <= 0 {
		exchanges = DefaultHistoryExchanges
	}
	return &Orchestrator{
		store:     cfg.Store,
		k:         cfg.K,
		exchanges: exchanges,
		reranker:  cfg.Reranker,
		logger:    logger,
	}, nil
}

// Result is the context retrieved for one query.
type Result struct {
	// Context is the passages joined by blank lines.
	Context string
	// Sources are the distinct valid source identifiers in first-seen order.
	Sources  []string
	Passages []vectorstore.SearchResult
}

// Retrieve searches the corpus with the history-enhanced query.
func (o *Orchestrator) Retrieve(ctx context.Context, query string, history []memory.Message) (*Result, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()

	enhanced := EnhanceQuery(query, history, o.exchanges)
	fetch := o.k
	if o.reranker != nil {
		fetch = 2 * o.k
	}
	span.SetAttributes(
		attribute.Int("k", o.k),
		attribute.Int("history_messages", len(history)),
		attribute.Bool("rerank", o.reranker != nil),
	)

	passages, err := o.store.Search(ctx, enhanced, fetch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	if o.reranker != nil {
		passages, err = o.rerank(ctx, query, passages)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	texts := make([]string, len(passages))
	raw := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Content
		raw[i] = p.Metadata[MetaSource]
	}
	res := &Result{
		Context:  strings.Join(texts, "\n\n"),
		Sources:  Sources(raw, NormalizeSource),
		Passages: passages,
	}

	span.SetAttributes(
		attribute.Int("passages", len(passages)),
		attribute.Int("sources", len(res.Sources)),
	)
	span.SetStatus(codes.Ok, "success")
	return res, nil
}

// rerank scores candidates against the bare query, not the enhanced one.
func (o *Orchestrator) rerank(ctx context.Context, query string, passages []vectorstore.SearchResult) ([]vectorstore.SearchResult, error) {
	docs := make([]reranker.Document, len(passages))
	for i, p := range passages {
		docs[i] = reranker.Document{ID: p.ID, Content: p.Content, Score: p.Score}
	}
	scored, err := o.reranker.Rerank(ctx, query, docs, o.k)
	if err != nil {
		return nil, fmt.Errorf("reranking: %w", err)
	}
	out := make([]vectorstore.SearchResult, len(scored))
	for i, s := range scored {
		out[i] = passages[s.OriginalRank]
	}
	return out, nil
}

// Answer retrieves context for query and asks model for a grounded answer
// carrying the validated citation block.
func (o *Orchestrator) Answer(ctx context.Context, model llm.Model, query string, history []memory.Message) (string, error) {
	res, err := o.Retrieve(ctx, query, history)
	if err != nil {
		return "", err
	}
	out, err := model.Generate(ctx, RAGPrompt(res.Context, query))
	if err != nil {
		return "", err
	}
	o.logger.Debug("rag answer generated",
		zap.Int("passages", len(res.Passages)),
		zap.Strings("sources", res.Sources),
	)
	return AppendCitations(StripModelCitation(out, false), res.Sources), nil
}

// WebAnswer searches the web for query and asks model for an answer citing
// the result URLs. Any error is returned so the caller can fall back.
func WebAnswer(ctx context.Context, model llm.Model, searcher websearch.Searcher, query string) (string, error) {
	ctx, span := tracer.Start(ctx, "retrieval.WebAnswer")
	defer span.End()
	span.SetAttributes(attribute.String("searcher", searcher.Name()))

	results, err := searcher.Search(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("web search: %w", err)
	}
	out, err := model.Generate(ctx, WebSearchPrompt(query, websearch.Format(results)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	sources := Sources(websearch.URLs(results), normalizeURL)
	span.SetAttributes(attribute.Int("results", len(results)), attribute.Int("sources", len(sources)))
	span.SetStatus(codes.Ok, "success")
	if len(sources) == 0 {
		return out, nil
	}
	return AppendCitations(StripModelCitation(out, true), sources), nil
}
