package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/askd/internal/mode"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider turns text into fixed-dimension vectors.
type Provider interface {
	// EmbedDocuments embeds a batch of passages.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the stable output dimensionality.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider selects the implementation.
	Provider mode.EmbeddingProvider
	// Model is the provider-specific model name.
	Model string
	// BaseURL is the server URL (ollama, openai-compatible).
	BaseURL string
	// APIKey is required by openai.
	APIKey string
	// CacheDir is the model cache directory (huggingface only).
	CacheDir string
	// Dimension is the output size of the hash provider, and a hint for
	// remote models whose size is not known in advance.
	Dimension int
}

// NewProvider creates an embedding provider based on the configuration.
// Remote providers are exercised once during construction, so a returned
// provider is known to work.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case mode.HuggingFace:
		var lp *LocalProvider
		if lp, err = NewLocalProvider(cfg.Model, cfg.CacheDir); err == nil {
			p = lp
		}
	case mode.OllamaEmbeddings:
		var lc *LangchainProvider
		if lc, err = NewOllamaProvider(ctx, cfg); err == nil {
			p = lc
		}
	case mode.OpenAIEmbeddings:
		var lc *LangchainProvider
		if lc, err = NewOpenAIProvider(ctx, cfg); err == nil {
			p = lc
		}
	case mode.HashEmbeddings:
		var h *HashProvider
		if h, err = NewHashProvider(cfg.Dimension); err == nil {
			p = h
		}
	default:
		err = fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// knownDimensions covers the remote models askd ships defaults for.
var knownDimensions = map[string]int{
	"all-minilm":             384,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// detectDimensionFromModel returns the embedding dimension for a model name,
// or 0 when it cannot be inferred.
func detectDimensionFromModel(model string) int {
	if dim, ok := localModelDimension(model); ok {
		return dim
	}
	name := strings.ToLower(model)
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[:i]
	}
	if dim, ok := knownDimensions[name]; ok {
		return dim
	}
	return 0
}
