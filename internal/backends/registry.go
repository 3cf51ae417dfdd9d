package backends

import (
	"context"
	"errors"
	"net/http"

	"github.com/fyrsmithlabs/askd/internal/config"
	"github.com/fyrsmithlabs/askd/internal/embeddings"
	"github.com/fyrsmithlabs/askd/internal/faults"
	"github.com/fyrsmithlabs/askd/internal/llm"
	"github.com/fyrsmithlabs/askd/internal/logging"
	"github.com/fyrsmithlabs/askd/internal/mode"
	"github.com/fyrsmithlabs/askd/internal/websearch"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/askd/internal/backends"

// Chain names used in logs and the fallback counter.
const (
	ChainModel     = "llm"
	ChainEmbedding = "embedding"
	ChainSearch    = "websearch"
)

// Registry builds validated backend clients for a requested provider. It
// holds no active client itself; callers own what it returns.
type Registry struct {
	cfg       *config.Config
	logger    *logging.Logger
	prober    Prober
	fallbacks metric.Int64Counter
	embedMet  *embeddings.Metrics

	newModel    func(llm.Config) (llm.Model, error)
	newEmbedder func(context.Context, embeddings.ProviderConfig) (embeddings.Provider, error)
	newSearcher func(name string) (websearch.Searcher, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithMeter records fallbacks and embedding metrics on m.
func WithMeter(m metric.Meter) Option {
	return func(r *Registry) { r.meter(m) }
}

// WithProber replaces the Ollama reachability probe.
func WithProber(p Prober) Option {
	return func(r *Registry) { r.prober = p }
}

// WithModelFactory replaces the language-model constructor.
func WithModelFactory(f func(llm.Config) (llm.Model, error)) Option {
	return func(r *Registry) { r.newModel = f }
}

// WithEmbedderFactory replaces the embedding constructor. The hash tier is
// always built directly.
func WithEmbedderFactory(f func(context.Context, embeddings.ProviderConfig) (embeddings.Provider, error)) Option {
	return func(r *Registry) { r.newEmbedder = f }
}

// WithSearcherFactory replaces the web-search constructor. name is
// "tavily" or "duckduckgo".
func WithSearcherFactory(f func(name string) (websearch.Searcher, error)) Option {
	return func(r *Registry) { r.newSearcher = f }
}

// New creates a registry over cfg.
func New(cfg *config.Config, opts ...Option) *Registry {
	r := &Registry{
		cfg:         cfg,
		logger:      logging.NewNop(),
		newModel:    llm.New,
		newEmbedder: embeddings.NewProvider,
	}
	r.newSearcher = r.defaultSearcher
	r.meter(otel.Meter(instrumentationName))
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("backends")
	if r.prober == nil {
		r.prober = NewOllamaProber(
			&http.Client{},
			cfg.Embeddings.ProbeTimeout.Duration(),
			cfg.Embeddings.ProbeCacheTTL.Duration(),
		)
	}
	return r
}

func (r *Registry) meter(m metric.Meter) {
	counter, err := m.Int64Counter("askd.backend.fallbacks",
		metric.WithDescription("Backend fallback transitions"),
		metric.WithUnit("{fallback}"),
	)
	if err == nil {
		r.fallbacks = counter
	}
	r.embedMet = embeddings.NewMetrics(m, nil)
}

// onFallback logs and counts a demotion.
func (r *Registry) onFallback(ctx context.Context) func(Fallback) {
	return func(f Fallback) {
		r.logger.Warn(ctx, "backend fallback",
			zap.String("chain", f.Chain),
			zap.String("from", f.From),
			zap.String("to", f.To),
			zap.Error(f.Err),
		)
		if r.fallbacks != nil {
			r.fallbacks.Add(ctx, 1, metric.WithAttributes(
				attribute.String("chain", f.Chain),
				attribute.String("from", f.From),
				attribute.String("to", f.To),
			))
		}
	}
}

// Model returns a language-model client for requested. If the requested
// provider is unreachable the registry falls back once to the configured
// fallback provider. A hosted provider that is misconfigured, such as one
// with no API key, is reported to the caller instead. The returned model's
// Provider reports what was actually built.
func (r *Registry) Model(ctx context.Context, requested mode.ModelProvider) (llm.Model, error) {
	fallback, err := mode.ParseModelProvider(r.cfg.Models.FallbackProvider)
	if err != nil {
		return nil, err
	}

	tiers := []Tier[llm.Model]{r.modelTier(requested)}
	if fallback != requested {
		tiers = append(tiers, r.modelTier(fallback))
	}

	m, tier, err := Resolve(ctx, ChainModel, tiers, r.onFallback(ctx))
	if err != nil {
		return nil, err
	}
	r.logger.Info(ctx, "language model selected",
		zap.String("requested", string(requested)),
		zap.String("provider", tier),
		zap.String("model", m.Name()),
		logging.Secret("api_key", r.apiKey(mode.ModelProvider(tier))),
	)
	return m, nil
}

// apiKey returns the credential configured for p. Ollama has none.
func (r *Registry) apiKey(p mode.ModelProvider) config.Secret {
	switch p {
	case mode.OpenAI:
		return r.cfg.Models.OpenAIAPIKey
	case mode.Anthropic:
		return r.cfg.Models.AnthropicAPIKey
	case mode.Groq:
		return r.cfg.Models.GroqAPIKey
	}
	return ""
}

func (r *Registry) modelTier(p mode.ModelProvider) Tier[llm.Model] {
	t := Tier[llm.Model]{
		Name: string(p),
		Build: func(context.Context) (llm.Model, error) {
			return r.newModel(r.modelConfig(p))
		},
	}
	if p == mode.Ollama {
		t.Validate = func(ctx context.Context) error {
			return r.prober.Probe(ctx, r.cfg.Models.OllamaBaseURL)
		}
	}
	if p.RequiresCredential() {
		t.Final = func(err error) bool { return errors.Is(err, faults.ErrConfiguration) }
	}
	return t
}

func (r *Registry) modelConfig(p mode.ModelProvider) llm.Config {
	m := r.cfg.Models
	switch p {
	case mode.OpenAI:
		return llm.Config{Provider: p, APIKey: m.OpenAIAPIKey.Value(), Model: m.OpenAIModel, BaseURL: m.OpenAIBaseURL,
			Temperature: m.OpenAITemperature, MaxTokens: m.OpenAIMaxTokens}
	case mode.Anthropic:
		return llm.Config{Provider: p, APIKey: m.AnthropicAPIKey.Value(), Model: m.AnthropicModel,
			Temperature: m.AnthropicTemperature, MaxTokens: m.AnthropicMaxTokens}
	case mode.Groq:
		return llm.Config{Provider: p, APIKey: m.GroqAPIKey.Value(), Model: m.GroqModel, BaseURL: m.GroqBaseURL,
			Temperature: m.GroqTemperature, MaxTokens: m.GroqMaxTokens}
	default:
		return llm.Config{Provider: p, Model: m.OllamaModel, BaseURL: m.OllamaBaseURL,
			Temperature: m.OllamaTemperature, NumCtx: m.OllamaNumCtx}
	}
}

// Embedder returns an instrumented embedding provider for requested and the
// provider that was actually built. The chain is requested, then a secondary
// local provider, then the deterministic hash embedding, so the engine stays
// operable with degraded retrieval quality rather than failing. Requesting
// hash builds it directly.
func (r *Registry) Embedder(ctx context.Context, requested mode.EmbeddingProvider) (embeddings.Provider, mode.EmbeddingProvider, error) {
	secondary := mode.OllamaEmbeddings
	if requested == mode.OllamaEmbeddings {
		secondary = mode.HuggingFace
	}
	hash := Tier[embeddings.Provider]{
		Name: string(mode.HashEmbeddings),
		Build: func(context.Context) (embeddings.Provider, error) {
			h, err := embeddings.NewHashProvider(r.cfg.Embeddings.FallbackDimension)
			if err != nil {
				return nil, err
			}
			return h, nil
		},
	}
	tiers := []Tier[embeddings.Provider]{hash}
	if requested != mode.HashEmbeddings {
		tiers = []Tier[embeddings.Provider]{r.embeddingTier(requested), r.embeddingTier(secondary), hash}
	}

	p, tier, err := Resolve(ctx, ChainEmbedding, tiers, r.onFallback(ctx))
	if err != nil {
		return nil, "", err
	}
	r.logger.Info(ctx, "embedding provider selected",
		zap.String("requested", string(requested)),
		zap.String("provider", tier),
		zap.Int("dimension", p.Dimension()),
	)
	return embeddings.Instrument(p, tier, r.embedMet), mode.EmbeddingProvider(tier), nil
}

func (r *Registry) embeddingTier(p mode.EmbeddingProvider) Tier[embeddings.Provider] {
	e := r.cfg.Embeddings
	pc := embeddings.ProviderConfig{Provider: p, Dimension: e.FallbackDimension}
	switch p {
	case mode.HuggingFace:
		pc.Model = e.HuggingFaceModel
		pc.CacheDir = e.CacheDir
		if dir, err := config.ExpandPath(e.CacheDir); err == nil {
			pc.CacheDir = dir
		}
	case mode.OllamaEmbeddings:
		pc.Model = e.OllamaModel
		pc.BaseURL = r.cfg.Models.OllamaBaseURL
	case mode.OpenAIEmbeddings:
		pc.Model = e.OpenAIModel
		pc.BaseURL = r.cfg.Models.OpenAIBaseURL
		pc.APIKey = r.cfg.Models.OpenAIAPIKey.Value()
	}

	t := Tier[embeddings.Provider]{
		Name: string(p),
		Build: func(ctx context.Context) (embeddings.Provider, error) {
			return r.newEmbedder(ctx, pc)
		},
	}
	if p == mode.OllamaEmbeddings {
		t.Validate = func(ctx context.Context) error {
			return r.prober.Probe(ctx, r.cfg.Models.OllamaBaseURL)
		}
	}
	return t
}

// Searcher returns a web-search client. Tavily falls back to the keyless
// DuckDuckGo backend.
func (r *Registry) Searcher(ctx context.Context) (websearch.Searcher, error) {
	names := []string{"tavily", "duckduckgo"}
	if r.cfg.WebSearch.Provider == "duckduckgo" {
		names = names[1:]
	}
	tiers := make([]Tier[websearch.Searcher], len(names))
	for i, name := range names {
		tiers[i] = Tier[websearch.Searcher]{
			Name:  name,
			Build: func(context.Context) (websearch.Searcher, error) { return r.newSearcher(name) },
		}
	}

	s, tier, err := Resolve(ctx, ChainSearch, tiers, r.onFallback(ctx))
	if err != nil {
		return nil, err
	}
	r.logger.Debug(ctx, "web search backend selected", zap.String("provider", tier))
	return s, nil
}

func (r *Registry) defaultSearcher(name string) (websearch.Searcher, error) {
	w := r.cfg.WebSearch
	if name == "duckduckgo" {
		d, err := websearch.NewDuckDuckGo(w.MaxResults, w.RatePerSecond)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	t, err := websearch.NewTavily(websearch.TavilyConfig{
		APIKey:        w.TavilyAPIKey.Value(),
		BaseURL:       w.TavilyBaseURL,
		MaxResults:    w.MaxResults,
		Timeout:       w.Timeout.Duration(),
		RatePerSecond: w.RatePerSecond,
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}
