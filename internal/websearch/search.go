// Package websearch defines the web-search backend contract and its Tavily
// and DuckDuckGo implementations.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyQuery indicates Search was called without a query.
	ErrEmptyQuery = errors.New("empty search query")

	// ErrSearchFailed wraps non-retryable backend failures.
	ErrSearchFailed = errors.New("web search failed")
)

// Result is a single web-search hit.
type Result struct {
	Title   string
	Content string
	URL     string
}

// Searcher queries a web-search backend.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
	// Name identifies the backend in logs and status output.
	Name() string
}

// Format renders results for a grounding prompt. URLs are left out so the
// model has nothing to cite in-line.
func Format(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		title := r.Title
		if title == "" {
			title = "No title"
		}
		content := r.Content
		if content == "" {
			content = "No content"
		}
		parts = append(parts, fmt.Sprintf("Title: %s\nContent: %s\n---", title, content))
	}
	return strings.Join(parts, "\n\n")
}

// URLs returns the non-empty result URLs in result order.
func URLs(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if u := strings.TrimSpace(r.URL); u != "" {
			out = append(out, u)
		}
	}
	return out
}
