// Package llm defines the language-model contract the engine consumes and
// builds langchaingo-backed clients for each supported provider.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/askd/internal/faults"
	"github.com/fyrsmithlabs/askd/internal/mode"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	// ErrEmptyPrompt indicates Generate was called without a prompt.
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrGeneration wraps provider failures during generation.
	ErrGeneration = errors.New("generation failed")
)

// Model generates text from a single prompt.
type Model interface {
	Generate(ctx context.Context, prompt string, opts ...Option) (string, error)
	// Provider reports which backend actually serves this model.
	Provider() mode.ModelProvider
	// Name is the provider-specific model name.
	Name() string
}

// CallOptions tune a single Generate call.
type CallOptions struct {
	Temperature float64
	MaxTokens   int
}

// Option configures a Generate call.
type Option func(*CallOptions)

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *CallOptions) { o.Temperature = t }
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) Option {
	return func(o *CallOptions) { o.MaxTokens = n }
}

// Config describes one provider's client.
type Config struct {
	Provider    mode.ModelProvider
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	// NumCtx is the context window requested from an Ollama runner.
	NumCtx int
}

// New builds a client for cfg.Provider. Construction performs no network
// I/O; reachability is the caller's concern.
func New(cfg Config) (Model, error) {
	if cfg.Provider.RequiresCredential() && cfg.APIKey == "" {
		return nil, faults.Configuration("%s requires an API key", cfg.Provider)
	}
	if cfg.Model == "" {
		return nil, faults.Configuration("%s model name required", cfg.Provider)
	}

	var (
		client llms.Model
		err    error
	)
	switch cfg.Provider {
	case mode.OpenAI, mode.Groq:
		// Groq serves an OpenAI-compatible API.
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		client, err = openai.New(opts...)
	case mode.Anthropic:
		// The anthropic client has no endpoint override.
		if cfg.BaseURL != "" {
			return nil, faults.Configuration("anthropic does not accept a base URL")
		}
		client, err = anthropic.New(anthropic.WithToken(cfg.APIKey), anthropic.WithModel(cfg.Model))
	case mode.Ollama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		if cfg.NumCtx > 0 {
			opts = append(opts, ollama.WithRunnerNumCtx(cfg.NumCtx))
		}
		client, err = ollama.New(opts...)
	default:
		return nil, faults.Configuration("unsupported model provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, faults.Configuration("creating %s client: %v", cfg.Provider, err)
	}

	return &langchainModel{
		client:   client,
		provider: cfg.Provider,
		name:     cfg.Model,
		defaults: CallOptions{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens},
	}, nil
}

type langchainModel struct {
	client   llms.Model
	provider mode.ModelProvider
	name     string
	defaults CallOptions
}

func (m *langchainModel) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	o := m.defaults
	for _, opt := range opts {
		opt(&o)
	}

	var callOpts []llms.CallOption
	if o.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(o.Temperature))
	}
	if o.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(o.MaxTokens))
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, m.client, prompt, callOpts...)
	if err != nil {
		return "", fmt.Errorf("%w: %s/%s: %v", ErrGeneration, m.provider, m.name, err)
	}
	return out, nil
}

func (m *langchainModel) Provider() mode.ModelProvider { return m.provider }

func (m *langchainModel) Name() string { return m.name }
