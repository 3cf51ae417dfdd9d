// Package config provides configuration loading for askd.
//
// Configuration is an explicit value owned by the engine instance. It is
// loaded once from YAML and environment variables, validated, and then passed
// down; nothing in askd reads settings from ambient globals after startup.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/askd/internal/mode"
	"github.com/knadh/koanf/v2"
)

// Config holds the complete askd configuration.
type Config struct {
	Engine      EngineConfig      `koanf:"engine"`
	Models      ModelsConfig      `koanf:"models"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Memory      MemoryConfig      `koanf:"memory"`
	WebSearch   WebSearchConfig   `koanf:"websearch"`
	Privacy     PrivacyConfig     `koanf:"privacy"`

	// raw keeps the merged sources so packages that own their own config
	// types (logging, telemetry) can decode their section without an import
	// cycle back into this package.
	raw *koanf.Koanf
}

// EngineConfig holds the initial engine state.
type EngineConfig struct {
	AnswerMode        string `koanf:"answer_mode"`
	MemoryMode        string `koanf:"memory_mode"`
	ModelProvider     string `koanf:"model_provider"`
	EmbeddingProvider string `koanf:"embedding_provider"`
	MessageLimit      int    `koanf:"message_limit"`
	RetrievalK        int    `koanf:"retrieval_k"`
	HistoryExchanges  int    `koanf:"history_exchanges"`
	Rerank            bool   `koanf:"rerank"`
	PrivacyFilter     *bool  `koanf:"privacy_filter"`
}

// ModelsConfig holds language-model provider settings. Field names are flat
// so every key maps onto a single ASKD_MODELS_* environment variable.
type ModelsConfig struct {
	OpenAIAPIKey      Secret  `koanf:"openai_api_key"`
	OpenAIModel       string  `koanf:"openai_model"`
	OpenAIBaseURL     string  `koanf:"openai_base_url"`
	OpenAITemperature float64 `koanf:"openai_temperature"`
	OpenAIMaxTokens   int     `koanf:"openai_max_tokens"`

	AnthropicAPIKey      Secret  `koanf:"anthropic_api_key"`
	AnthropicModel       string  `koanf:"anthropic_model"`
	AnthropicTemperature float64 `koanf:"anthropic_temperature"`
	AnthropicMaxTokens   int     `koanf:"anthropic_max_tokens"`

	GroqAPIKey      Secret  `koanf:"groq_api_key"`
	GroqModel       string  `koanf:"groq_model"`
	GroqBaseURL     string  `koanf:"groq_base_url"`
	GroqTemperature float64 `koanf:"groq_temperature"`
	GroqMaxTokens   int     `koanf:"groq_max_tokens"`

	OllamaBaseURL     string  `koanf:"ollama_base_url"`
	OllamaModel       string  `koanf:"ollama_model"`
	OllamaTemperature float64 `koanf:"ollama_temperature"`
	OllamaNumCtx      int     `koanf:"ollama_num_ctx"`

	// FallbackProvider is the single remote provider used when the selected
	// one cannot be initialised.
	FallbackProvider string   `koanf:"fallback_provider"`
	RequestTimeout   Duration `koanf:"request_timeout"`
	OllamaTimeout    Duration `koanf:"ollama_timeout"`
}

// EmbeddingsConfig holds embedding provider settings.
type EmbeddingsConfig struct {
	HuggingFaceModel  string   `koanf:"huggingface_model"`
	OllamaModel       string   `koanf:"ollama_model"`
	OpenAIModel       string   `koanf:"openai_model"`
	CacheDir          string   `koanf:"cache_dir"`
	FallbackDimension int      `koanf:"fallback_dimension"`
	ProbeTimeout      Duration `koanf:"probe_timeout"`
	ProbeCacheTTL     Duration `koanf:"probe_cache_ttl"`
}

// VectorStoreConfig holds vector index settings.
type VectorStoreConfig struct {
	Provider            string `koanf:"provider"`
	Path                string `koanf:"path"`
	DocumentsCollection string `koanf:"documents_collection"`
	HistoryCollection   string `koanf:"history_collection"`
	Compress            *bool  `koanf:"compress"`

	QdrantHost   string `koanf:"qdrant_host"`
	QdrantPort   int    `koanf:"qdrant_port"`
	QdrantUseTLS bool   `koanf:"qdrant_use_tls"`
	QdrantAPIKey Secret `koanf:"qdrant_api_key"`
}

// MemoryConfig holds persistent session storage settings.
type MemoryConfig struct {
	Path string `koanf:"path"`
}

// WebSearchConfig holds web-search backend settings.
type WebSearchConfig struct {
	Provider      string   `koanf:"provider"`
	TavilyAPIKey  Secret   `koanf:"tavily_api_key"`
	TavilyBaseURL string   `koanf:"tavily_base_url"`
	MaxResults    int      `koanf:"max_results"`
	Timeout       Duration `koanf:"timeout"`
	RatePerSecond float64  `koanf:"rate_per_second"`
}

// PrivacyConfig holds privacy filter settings.
type PrivacyConfig struct {
	SecretScan    bool   `koanf:"secret_scan"`
	AllowlistPath string `koanf:"allowlist_path"`
	Watch         bool   `koanf:"watch"`
}

// Validation errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := mode.ParseAnswerMode(c.Engine.AnswerMode); err != nil {
		return fmt.Errorf("engine.answer_mode: %w", err)
	}
	if _, err := mode.ParseMemoryMode(c.Engine.MemoryMode); err != nil {
		return fmt.Errorf("engine.memory_mode: %w", err)
	}
	if _, err := mode.ParseModelProvider(c.Engine.ModelProvider); err != nil {
		return fmt.Errorf("engine.model_provider: %w", err)
	}
	if _, err := mode.ParseEmbeddingProvider(c.Engine.EmbeddingProvider); err != nil {
		return fmt.Errorf("engine.embedding_provider: %w", err)
	}
	if _, err := mode.ParseModelProvider(c.Models.FallbackProvider); err != nil {
		return fmt.Errorf("models.fallback_provider: %w", err)
	}
	if c.Engine.MessageLimit <= 0 {
		return fmt.Errorf("%w: engine.message_limit must be positive, got %d", ErrInvalidConfig, c.Engine.MessageLimit)
	}
	if c.Engine.RetrievalK <= 0 {
		return fmt.Errorf("%w: engine.retrieval_k must be positive, got %d", ErrInvalidConfig, c.Engine.RetrievalK)
	}
	if c.Engine.HistoryExchanges < 0 {
		return fmt.Errorf("%w: engine.history_exchanges cannot be negative", ErrInvalidConfig)
	}
	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("%w: vectorstore.provider must be 'chromem' or 'qdrant', got %q", ErrInvalidConfig, c.VectorStore.Provider)
	}
	switch c.WebSearch.Provider {
	case "tavily", "duckduckgo":
	default:
		return fmt.Errorf("%w: websearch.provider must be 'tavily' or 'duckduckgo', got %q", ErrInvalidConfig, c.WebSearch.Provider)
	}
	if c.WebSearch.MaxResults <= 0 {
		return fmt.Errorf("%w: websearch.max_results must be positive", ErrInvalidConfig)
	}
	if c.Embeddings.FallbackDimension <= 0 {
		return fmt.Errorf("%w: embeddings.fallback_dimension must be positive", ErrInvalidConfig)
	}
	if c.Memory.Path == "" || c.VectorStore.Path == "" {
		return fmt.Errorf("%w: memory.path and vectorstore.path are required", ErrInvalidConfig)
	}
	return nil
}

// PrivacyEnabled reports the initial state of the privacy filter.
func (c *Config) PrivacyEnabled() bool {
	return c.Engine.PrivacyFilter == nil || *c.Engine.PrivacyFilter
}

// CompressVectors reports whether chromem persistence is gzip compressed.
func (c *Config) CompressVectors() bool {
	return c.VectorStore.Compress == nil || *c.VectorStore.Compress
}

// UnmarshalSection decodes one top-level section of the loaded sources into
// out. out should already hold that section's defaults; keys absent from the
// sources leave them untouched.
func (c *Config) UnmarshalSection(section string, out interface{}) error {
	if c.raw == nil || !c.raw.Exists(section) {
		return nil
	}
	if err := c.raw.Unmarshal(section, out); err != nil {
		return fmt.Errorf("decoding %s section: %w", section, err)
	}
	return nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	// Engine defaults
	if cfg.Engine.AnswerMode == "" {
		cfg.Engine.AnswerMode = string(mode.AnswerRAG)
	}
	if cfg.Engine.MemoryMode == "" {
		cfg.Engine.MemoryMode = string(mode.Transient)
	}
	if cfg.Engine.ModelProvider == "" {
		cfg.Engine.ModelProvider = string(mode.Groq)
	}
	if cfg.Engine.EmbeddingProvider == "" {
		cfg.Engine.EmbeddingProvider = string(mode.HuggingFace)
	}
	if cfg.Engine.MessageLimit == 0 {
		cfg.Engine.MessageLimit = 10
	}
	if cfg.Engine.RetrievalK == 0 {
		cfg.Engine.RetrievalK = 4
	}
	if cfg.Engine.HistoryExchanges == 0 {
		cfg.Engine.HistoryExchanges = 3
	}

	// Model defaults
	m := &cfg.Models
	if m.OpenAIModel == "" {
		m.OpenAIModel = "gpt-3.5-turbo"
	}
	if m.OpenAITemperature == 0 {
		m.OpenAITemperature = 0.7
	}
	if m.OpenAIMaxTokens == 0 {
		m.OpenAIMaxTokens = 2048
	}
	if m.AnthropicModel == "" {
		m.AnthropicModel = "claude-3-haiku-20240307"
	}
	if m.AnthropicTemperature == 0 {
		m.AnthropicTemperature = 0.7
	}
	if m.AnthropicMaxTokens == 0 {
		m.AnthropicMaxTokens = 4096
	}
	if m.GroqModel == "" {
		m.GroqModel = "openai/gpt-oss-20b"
	}
	if m.GroqBaseURL == "" {
		m.GroqBaseURL = "https://api.groq.com/openai/v1"
	}
	if m.GroqTemperature == 0 {
		m.GroqTemperature = 0.2
	}
	if m.GroqMaxTokens == 0 {
		m.GroqMaxTokens = 2048
	}
	if m.OllamaBaseURL == "" {
		m.OllamaBaseURL = "http://localhost:11434"
	}
	if m.OllamaModel == "" {
		m.OllamaModel = "llama3"
	}
	if m.OllamaTemperature == 0 {
		m.OllamaTemperature = 0.7
	}
	if m.OllamaNumCtx == 0 {
		m.OllamaNumCtx = 4096
	}
	if m.FallbackProvider == "" {
		m.FallbackProvider = string(mode.Groq)
	}
	if m.RequestTimeout == 0 {
		m.RequestTimeout = Duration(60 * time.Second)
	}
	if m.OllamaTimeout == 0 {
		m.OllamaTimeout = Duration(120 * time.Second)
	}

	// Embedding defaults
	e := &cfg.Embeddings
	if e.HuggingFaceModel == "" {
		e.HuggingFaceModel = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if e.OllamaModel == "" {
		e.OllamaModel = "all-minilm"
	}
	if e.OpenAIModel == "" {
		e.OpenAIModel = "text-embedding-3-small"
	}
	if e.CacheDir == "" {
		e.CacheDir = "~/.cache/askd/models"
	}
	if e.FallbackDimension == 0 {
		e.FallbackDimension = 384 // all-MiniLM-L6-v2 dimensions
	}
	if e.ProbeTimeout == 0 {
		e.ProbeTimeout = Duration(5 * time.Second)
	}
	if e.ProbeCacheTTL == 0 {
		e.ProbeCacheTTL = Duration(30 * time.Second)
	}

	// VectorStore defaults (chromem is default - embedded, no external deps)
	v := &cfg.VectorStore
	if v.Provider == "" {
		v.Provider = "chromem"
	}
	if v.Path == "" {
		v.Path = "~/.local/share/askd/vectorstore"
	}
	if v.DocumentsCollection == "" {
		v.DocumentsCollection = "documents"
	}
	if v.HistoryCollection == "" {
		v.HistoryCollection = "chat_history"
	}
	if v.QdrantHost == "" {
		v.QdrantHost = "localhost"
	}
	if v.QdrantPort == 0 {
		v.QdrantPort = 6334
	}

	if cfg.Memory.Path == "" {
		cfg.Memory.Path = "~/.local/share/askd/memory"
	}

	// Web search defaults
	w := &cfg.WebSearch
	if w.Provider == "" {
		w.Provider = "tavily"
	}
	if w.TavilyBaseURL == "" {
		w.TavilyBaseURL = "https://api.tavily.com"
	}
	if w.MaxResults == 0 {
		w.MaxResults = 5
	}
	if w.Timeout == 0 {
		w.Timeout = Duration(30 * time.Second)
	}
	if w.RatePerSecond == 0 {
		w.RatePerSecond = 1
	}
}
