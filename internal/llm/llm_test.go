package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/fyrsmithlabs/askd/internal/faults"
	"github.com/fyrsmithlabs/askd/internal/mode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"openai", Config{Provider: mode.OpenAI, APIKey: "k", Model: "gpt-3.5-turbo"}, false},
		{"groq", Config{Provider: mode.Groq, APIKey: "k", Model: "openai/gpt-oss-20b", BaseURL: "https://api.groq.com/openai/v1"}, false},
		{"anthropic", Config{Provider: mode.Anthropic, APIKey: "k", Model: "claude-3-haiku-20240307", MaxTokens: 4096}, false},
		{"ollama without key", Config{Provider: mode.Ollama, Model: "llama3", BaseURL: "http://localhost:11434", NumCtx: 4096}, false},
		{"anthropic with base url", Config{Provider: mode.Anthropic, APIKey: "k", Model: "claude-3-haiku-20240307", BaseURL: "https://proxy.local"}, true},
		{"openai without key", Config{Provider: mode.OpenAI, Model: "gpt-3.5-turbo"}, true},
		{"groq without key", Config{Provider: mode.Groq, Model: "x"}, true},
		{"missing model", Config{Provider: mode.Ollama}, true},
		{"unknown provider", Config{Provider: "mistral", APIKey: "k", Model: "m"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, faults.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Provider, m.Provider())
			assert.Equal(t, tt.cfg.Model, m.Name())
		})
	}
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	m, err := New(Config{Provider: mode.Ollama, Model: "llama3"})
	require.NoError(t, err)
	_, err = m.Generate(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestOptions(t *testing.T) {
	o := CallOptions{Temperature: 0.7, MaxTokens: 10}
	WithTemperature(0.2)(&o)
	WithMaxTokens(99)(&o)
	assert.Equal(t, CallOptions{Temperature: 0.2, MaxTokens: 99}, o)
}

func TestTestModel(t *testing.T) {
	m := NewTestModel(mode.Groq, func(p string) (string, error) {
		if p == "fail" {
			return "", errors.New("down")
		}
		return "echo: " + p, nil
	})

	out, err := m.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out)

	_, err = m.Generate(context.Background(), "fail")
	assert.Error(t, err)

	assert.Equal(t, []string{"hi", "fail"}, m.Prompts())
	assert.Equal(t, "fail", m.LastPrompt())
	assert.Equal(t, mode.Groq, m.Provider())
}
