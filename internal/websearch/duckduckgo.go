package websearch

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/askd/internal/faults"
	"github.com/tmc/langchaingo/tools/duckduckgo"
)

const ddgUserAgent = "askd/1.0 (+https://github.com/fyrsmithlabs/askd)"

// textSearcher is the part of the langchaingo tool the client uses.
type textSearcher interface {
	Call(ctx context.Context, input string) (string, error)
}

// DuckDuckGo is a keyless Searcher backed by the langchaingo DuckDuckGo tool.
type DuckDuckGo struct {
	tool    textSearcher
	limiter interface{ Wait(context.Context) error }
}

// NewDuckDuckGo creates a DuckDuckGo client returning at most maxResults.
func NewDuckDuckGo(maxResults int, ratePerSecond float64) (*DuckDuckGo, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	tool, err := duckduckgo.New(maxResults, ddgUserAgent)
	if err != nil {
		return nil, faults.Configuration("creating duckduckgo tool: %v", err)
	}
	return &DuckDuckGo{tool: tool, limiter: newLimiter(ratePerSecond)}, nil
}

// Name implements Searcher.
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search implements Searcher.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	payload, err := d.tool.Call(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, faults.BackendUnavailable("duckduckgo: %w", err)
	}
	return ParseText(payload), nil
}

var urlPattern = regexp.MustCompile(`https?://[^\s\]\),]+`)

// ParseText converts a "Title:/Description:/URL:" text payload into results.
// Payloads without that structure become a single result whose URL is the
// first link found, if any. The tool's "no good results" notice yields none.
func ParseText(payload string) []Result {
	var (
		results []Result
		cur     Result
		open    bool
	)
	flush := func() {
		if open && (cur.Title != "" || cur.Content != "" || cur.URL != "") {
			results = append(results, cur)
		}
		cur, open = Result{}, false
	}

	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Title:"):
			flush()
			cur.Title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
			open = true
		case strings.HasPrefix(line, "Description:"):
			cur.Content = strings.TrimSpace(strings.TrimPrefix(line, "Description:"))
			open = true
		case strings.HasPrefix(line, "URL:"):
			cur.URL = strings.TrimSpace(strings.TrimPrefix(line, "URL:"))
			open = true
		}
	}
	flush()

	if len(results) > 0 {
		return results
	}
	text := strings.TrimSpace(payload)
	if text == "" || strings.HasPrefix(text, "No good") {
		return nil
	}
	return []Result{{Content: text, URL: urlPattern.FindString(text)}}
}

var _ Searcher = (*DuckDuckGo)(nil)
