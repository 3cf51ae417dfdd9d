package embeddings

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainProvider adapts a langchaingo embedder to Provider.
type LangchainProvider struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
}

// NewOllamaProvider embeds through an Ollama server.
func NewOllamaProvider(ctx context.Context, cfg ProviderConfig) (*LangchainProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: ollama embedding model required", ErrInvalidConfig)
	}
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	return newLangchainProvider(ctx, client, cfg)
}

// NewOpenAIProvider embeds through the OpenAI embeddings API or any
// OpenAI-compatible server.
func NewOpenAIProvider(ctx context.Context, cfg ProviderConfig) (*LangchainProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key required", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: openai embedding model required", ErrInvalidConfig)
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return newLangchainProvider(ctx, client, cfg)
}

func newLangchainProvider(ctx context.Context, client embeddings.EmbedderClient, cfg ProviderConfig) (*LangchainProvider, error) {
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	p := &LangchainProvider{embedder: embedder, model: cfg.Model}

	// One round trip proves the backend works and pins the dimension.
	vec, err := p.EmbedQuery(ctx, "dimension probe")
	if err != nil {
		return nil, err
	}
	p.dimension = len(vec)
	if want := detectDimensionFromModel(cfg.Model); want != 0 && want != p.dimension {
		return nil, fmt.Errorf("%w: model %s returned %d dimensions, expected %d", ErrEmbeddingFailed, cfg.Model, p.dimension, want)
	}
	return p, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *LangchainProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *LangchainProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vec, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vec, nil
}

// Dimension returns the dimension observed at construction.
func (p *LangchainProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op; the underlying clients are plain HTTP.
func (p *LangchainProvider) Close() error {
	return nil
}
