// Package mode defines the closed enumerations that configure the engine:
// answer mode, memory mode, and the language-model and embedding providers.
//
// Each enumeration has exactly one parse function from external text. Input is
// trimmed and matched case-insensitively; anything else is a configuration
// error.
package mode

import (
	"strings"

	"github.com/fyrsmithlabs/askd/internal/faults"
)

// AnswerMode selects how a response is grounded.
type AnswerMode string

const (
	// AnswerDefault answers from the model's own knowledge.
	AnswerDefault AnswerMode = "default"
	// AnswerRAG answers from the private document corpus.
	AnswerRAG AnswerMode = "rag"
	// AnswerWebSearch answers from live web search results.
	AnswerWebSearch AnswerMode = "web_search"
)

// AnswerModes lists every answer mode in display order.
var AnswerModes = []AnswerMode{AnswerDefault, AnswerRAG, AnswerWebSearch}

// ParseAnswerMode converts external text to an AnswerMode.
func ParseAnswerMode(s string) (AnswerMode, error) {
	switch normalize(s) {
	case "default":
		return AnswerDefault, nil
	case "rag":
		return AnswerRAG, nil
	case "web_search", "web-search":
		return AnswerWebSearch, nil
	}
	return "", faults.Configuration("unsupported answer mode %q (want one of %s)", s, join(AnswerModes))
}

// MemoryMode selects whether history is kept in process only or persisted.
type MemoryMode string

const (
	Transient  MemoryMode = "transient"
	Persistent MemoryMode = "persistent"
)

// MemoryModes lists every memory mode in display order.
var MemoryModes = []MemoryMode{Transient, Persistent}

// ParseMemoryMode converts external text to a MemoryMode.
func ParseMemoryMode(s string) (MemoryMode, error) {
	switch normalize(s) {
	case "transient":
		return Transient, nil
	case "persistent":
		return Persistent, nil
	}
	return "", faults.Configuration("unsupported memory mode %q (want one of %s)", s, join(MemoryModes))
}

// ModelProvider identifies a language-model backend.
type ModelProvider string

const (
	OpenAI    ModelProvider = "openai"
	Anthropic ModelProvider = "anthropic"
	Groq      ModelProvider = "groq"
	Ollama    ModelProvider = "ollama"
)

// ModelProviders lists every language-model provider in display order.
var ModelProviders = []ModelProvider{OpenAI, Anthropic, Groq, Ollama}

// ParseModelProvider converts external text to a ModelProvider.
func ParseModelProvider(s string) (ModelProvider, error) {
	for _, p := range ModelProviders {
		if normalize(s) == string(p) {
			return p, nil
		}
	}
	return "", faults.Configuration("unsupported model provider %q (want one of %s)", s, join(ModelProviders))
}

// RequiresCredential reports whether the provider needs an API key. Ollama is
// self-hosted and is validated with a reachability probe instead.
func (p ModelProvider) RequiresCredential() bool {
	return p != Ollama
}

// EmbeddingProvider identifies an embedding backend.
type EmbeddingProvider string

const (
	// HuggingFace runs sentence-transformers models locally.
	HuggingFace EmbeddingProvider = "huggingface"
	// OllamaEmbeddings serves embeddings from a local Ollama daemon.
	OllamaEmbeddings EmbeddingProvider = "ollama"
	// OpenAIEmbeddings uses the OpenAI embeddings API.
	OpenAIEmbeddings EmbeddingProvider = "openai"
	// HashEmbeddings is the deterministic placeholder at the end of every
	// embedding chain. Selecting it runs fully offline with keyword-level
	// retrieval quality.
	HashEmbeddings EmbeddingProvider = "hash"
)

// EmbeddingProviders lists the selectable embedding providers.
var EmbeddingProviders = []EmbeddingProvider{HuggingFace, OllamaEmbeddings, OpenAIEmbeddings, HashEmbeddings}

// ParseEmbeddingProvider converts external text to an EmbeddingProvider.
func ParseEmbeddingProvider(s string) (EmbeddingProvider, error) {
	for _, p := range EmbeddingProviders {
		if normalize(s) == string(p) {
			return p, nil
		}
	}
	return "", faults.Configuration("unsupported embedding provider %q (want one of %s)", s, join(EmbeddingProviders))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func join[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
