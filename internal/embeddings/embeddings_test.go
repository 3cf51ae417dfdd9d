package embeddings

import (
	"context"
	"errors"
	"testing"

	"github.com/fyrsmithlabs/askd/internal/mode"
	"github.com/fyrsmithlabs/askd/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestHashProvider(t *testing.T) {
	ctx := context.Background()
	p, err := NewHashProvider(384)
	require.NoError(t, err)
	assert.Equal(t, 384, p.Dimension())

	a, err := p.EmbedQuery(ctx, "What is the refund policy?")
	require.NoError(t, err)
	assert.Len(t, a, 384)

	again, err := p.EmbedQuery(ctx, "what is the REFUND policy")
	require.NoError(t, err)
	assert.Equal(t, a, again, "tokenisation ignores case and punctuation")

	related, err := p.EmbedQuery(ctx, "refund policy for orders")
	require.NoError(t, err)
	unrelated, err := p.EmbedQuery(ctx, "kubernetes pod scheduling")
	require.NoError(t, err)
	assert.Greater(t, cosine(a, related), cosine(a, unrelated))

	assert.InDelta(t, 1.0, cosine(a, a), 1e-5)
}

func TestHashProvider_Documents(t *testing.T) {
	p, err := NewHashProvider(16)
	require.NoError(t, err)

	vecs, err := p.EmbedDocuments(context.Background(), []string{"alpha", "beta", "!!!"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 16)
	}
	assert.Equal(t, float32(1), vecs[2][0], "token-free text maps to a unit vector")
}

func TestHashProvider_Errors(t *testing.T) {
	_, err := NewHashProvider(0)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	p, err := NewHashProvider(8)
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.EmbedQuery(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, ProviderConfig{Provider: mode.HashEmbeddings, Dimension: 384})
	require.NoError(t, err)
	assert.Equal(t, 384, p.Dimension())

	_, err = NewProvider(ctx, ProviderConfig{Provider: "word2vec"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewProvider(ctx, ProviderConfig{Provider: mode.OpenAIEmbeddings, Model: "text-embedding-3-small"})
	assert.ErrorIs(t, err, ErrInvalidConfig, "openai needs a key")
}

func TestDetectDimensionFromModel(t *testing.T) {
	tests := map[string]int{
		"sentence-transformers/all-MiniLM-L6-v2": 384,
		"BAAI/bge-base-en-v1.5":                 768,
		"all-minilm":                            384,
		"all-minilm:latest":                     384,
		"text-embedding-3-small":                1536,
		"something-custom":                      0,
	}
	for model, want := range tests {
		assert.Equal(t, want, detectDimensionFromModel(model), model)
	}
}

type failingProvider struct{ *HashProvider }

func (failingProvider) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("boom")
}

func TestInstrumented(t *testing.T) {
	ctx := context.Background()
	tel := telemetry.NewTestTelemetry()
	m := NewMetrics(tel.Meter("test"), nil)

	h, err := NewHashProvider(8)
	require.NoError(t, err)

	ok := Instrument(h, "hash", m)
	assert.Equal(t, "hash", ok.Name())
	assert.Equal(t, 8, ok.Dimension())
	_, err = ok.EmbedDocuments(ctx, []string{"a", "b"})
	require.NoError(t, err)

	bad := Instrument(failingProvider{h}, "hash", m)
	_, err = bad.EmbedQuery(ctx, "a")
	require.Error(t, err)

	names := tel.MetricNames(ctx)
	assert.Contains(t, names, "askd.embedding.duration")
	assert.Contains(t, names, "askd.embedding.batch_size")
	assert.Equal(t, int64(1), tel.Int64Sum(ctx, "askd.embedding.errors"))
}
