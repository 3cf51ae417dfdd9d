//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// localBatchSize bounds how many passages go through the ONNX session at once.
const localBatchSize = 64

var localModelIDs = map[string]fastembed.EmbeddingModel{
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
}

// LocalProvider runs a sentence-transformers model in-process through
// fastembed's ONNX runtime. It backs the huggingface tier and needs no
// network once the model is cached.
type LocalProvider struct {
	mu    sync.RWMutex
	model *fastembed.FlagEmbedding
	name  string
	dim   int
}

// NewLocalProvider loads model from cacheDir, downloading it on first use.
// An empty model selects all-MiniLM-L6-v2.
func NewLocalProvider(model, cacheDir string) (*LocalProvider, error) {
	if model == "" {
		model = defaultLocalModel
	}
	id, ok := localModelIDs[model]
	if !ok {
		return nil, fmt.Errorf("%w: no local model %q", ErrInvalidConfig, model)
	}
	dim, _ := localModelDimension(model)
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}

	quiet := false
	fe, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                id,
		CacheDir:             cacheDir,
		MaxLength:            512,
		ShowDownloadProgress: &quiet,
	})
	if err != nil {
		return nil, fmt.Errorf("loading local model %s: %w", model, err)
	}
	return &LocalProvider{model: fe, name: model, dim: dim}, nil
}

func (p *LocalProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.model == nil {
		return nil, fmt.Errorf("%w: %s is closed", ErrEmbeddingFailed, p.name)
	}

	vecs, err := p.model.PassageEmbed(texts, localBatchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vecs, nil
}

func (p *LocalProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.model == nil {
		return nil, fmt.Errorf("%w: %s is closed", ErrEmbeddingFailed, p.name)
	}

	vec, err := p.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vec, nil
}

func (p *LocalProvider) Dimension() int { return p.dim }

// Close releases the ONNX session. It is safe to call twice.
func (p *LocalProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return nil
	}
	err := p.model.Destroy()
	p.model = nil
	return err
}
