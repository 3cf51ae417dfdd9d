// Package reranker reorders retrieved passages by lexical relevance to the
// query before they are handed to the language model.
package reranker

import (
	"context"
)

// Document is a retrieved passage.
type Document struct {
	ID      string
	Content string
	// Score is the similarity reported by the vector index.
	Score float32
}

// ScoredDocument is a Document with its reranking outcome.
type ScoredDocument struct {
	Document
	// RerankerScore is the query term overlap in [0, 1].
	RerankerScore float32
	// OriginalRank is the document's index in the input slice.
	OriginalRank int
}

// Reranker reorders documents for a query.
type Reranker interface {
	// Rerank returns at most topK documents, best first. Documents with equal
	// scores keep their input order.
	Rerank(ctx context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error)
	Close() error
}
