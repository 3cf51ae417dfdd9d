package reranker

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode"
)

// ErrNilContext is returned when a nil context is passed to Rerank.
var ErrNilContext = errors.New("context cannot be nil")

// Weights of the combined score.
const (
	similarityWeight = 0.5
	overlapWeight    = 0.5
)

// SimpleReranker blends vector similarity with query term overlap.
type SimpleReranker struct{}

// NewSimpleReranker creates a SimpleReranker.
func NewSimpleReranker() *SimpleReranker {
	return &SimpleReranker{}
}

// Rerank implements Reranker. A topK of zero or less keeps every document.
// A query with no content terms leaves the similarity order in place.
func (r *SimpleReranker) Rerank(ctx context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if topK <= 0 || topK > len(docs) {
		topK = len(docs)
	}

	terms := tokenize(query)
	scored := make([]ScoredDocument, len(docs))
	combined := make([]float32, len(docs))
	for i, doc := range docs {
		overlap := doc.Score
		if len(terms) > 0 {
			overlap = termOverlap(terms, tokenize(doc.Content))
		}
		scored[i] = ScoredDocument{Document: doc, RerankerScore: overlap, OriginalRank: i}
		if len(terms) > 0 {
			combined[i] = similarityWeight*doc.Score + overlapWeight*overlap
		} else {
			combined[i] = doc.Score
		}
	}

	order := make([]int, len(docs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return combined[order[a]] > combined[order[b]]
	})

	out := make([]ScoredDocument, topK)
	for i := range out {
		out[i] = scored[order[i]]
	}
	return out, nil
}

// Close implements Reranker.
func (r *SimpleReranker) Close() error {
	return nil
}

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`the a an and or but in on at to for of with by from as is was are be been
		being have has had do does did will would could should may might can this that these those
		you he she it we they what which who when where why how`) {
		stopwords[w] = struct{}{}
	}
}

// tokenize lowercases text and keeps content terms longer than two runes.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; stop || len([]rune(f)) <= 2 {
			continue
		}
		out = append(out, f)
	}
	return out
}

// termOverlap is the share of distinct query terms present in the document.
func termOverlap(queryTerms, docTerms []string) float32 {
	docSet := make(map[string]struct{}, len(docTerms))
	for _, t := range docTerms {
		docSet[t] = struct{}{}
	}
	distinct := make(map[string]struct{}, len(queryTerms))
	matched := 0
	for _, t := range queryTerms {
		if _, seen := distinct[t]; seen {
			continue
		}
		distinct[t] = struct{}{}
		if _, ok := docSet[t]; ok {
			matched++
		}
	}
	return float32(matched) / float32(len(distinct))
}

var _ Reranker = (*SimpleReranker)(nil)
