package llm

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/askd/internal/mode"
)

// TestModel is an in-memory Model that records every prompt it receives.
type TestModel struct {
	provider mode.ModelProvider
	reply    func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

// NewTestModel returns a Model that answers with reply. A nil reply echoes
// a fixed answer.
func NewTestModel(provider mode.ModelProvider, reply func(prompt string) (string, error)) *TestModel {
	if reply == nil {
		reply = func(string) (string, error) { return "test answer", nil }
	}
	return &TestModel{provider: provider, reply: reply}
}

// Generate records prompt and returns the scripted reply.
func (m *TestModel) Generate(ctx context.Context, prompt string, _ ...Option) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	return m.reply(prompt)
}

// Provider returns the provider the model was created for.
func (m *TestModel) Provider() mode.ModelProvider { return m.provider }

// Name returns a fixed model name.
func (m *TestModel) Name() string { return "test-model" }

// Prompts returns a copy of every prompt received so far.
func (m *TestModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastPrompt returns the most recent prompt, or "".
func (m *TestModel) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}
