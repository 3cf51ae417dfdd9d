//go:build !cgo

package embeddings

import (
	"context"
	"errors"
)

// ErrLocalUnavailable is returned by the huggingface tier in binaries built
// without cgo. The registry moves on to the next embedding tier.
var ErrLocalUnavailable = errors.New("local embedding model needs a cgo build")

// LocalProvider is never constructed without cgo.
type LocalProvider struct{}

func NewLocalProvider(string, string) (*LocalProvider, error) {
	return nil, ErrLocalUnavailable
}

func (*LocalProvider) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, ErrLocalUnavailable
}

func (*LocalProvider) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, ErrLocalUnavailable
}

func (*LocalProvider) Dimension() int { return 0 }

func (*LocalProvider) Close() error { return nil }
