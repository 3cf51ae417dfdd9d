package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/fyrsmithlabs/askd/internal/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTavilyServer(t *testing.T, handler http.HandlerFunc) *Tavily {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tv, err := NewTavily(TavilyConfig{APIKey: "tvly-test", BaseURL: srv.URL, MaxResults: 3})
	require.NoError(t, err)
	return tv
}

func TestTavily_Search(t *testing.T) {
	tv := newTavilyServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))

		var req tavilyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "golang release", req.Query)
		assert.Equal(t, 3, req.MaxResults)

		_, _ = w.Write([]byte(`{"results":[
			{"title":"Go 1.24","url":"https://go.dev/doc/go1.24","content":"Release notes"},
			{"title":"Blog","url":"https://go.dev/blog","content":"News"}]}`))
	})

	results, err := tv.Search(context.Background(), "golang release")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, Result{Title: "Go 1.24", Content: "Release notes", URL: "https://go.dev/doc/go1.24"}, results[0])
}

func TestTavily_Errors(t *testing.T) {
	_, err := NewTavily(TavilyConfig{})
	assert.ErrorIs(t, err, faults.ErrConfiguration)

	t.Run("unauthorized", func(t *testing.T) {
		tv := newTavilyServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := tv.Search(context.Background(), "q")
		assert.ErrorIs(t, err, faults.ErrConfiguration)
	})

	t.Run("server errors are retried then reported unavailable", func(t *testing.T) {
		var calls atomic.Int32
		tv := newTavilyServer(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		})
		tv.maxRetries = 1
		_, err := tv.Search(context.Background(), "q")
		assert.ErrorIs(t, err, faults.ErrBackendUnavailable)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("bad request", func(t *testing.T) {
		tv := newTavilyServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})
		_, err := tv.Search(context.Background(), "q")
		assert.ErrorIs(t, err, ErrSearchFailed)
	})

	t.Run("empty query", func(t *testing.T) {
		tv := newTavilyServer(t, func(http.ResponseWriter, *http.Request) {})
		_, err := tv.Search(context.Background(), "  ")
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})
}

type fakeTool struct {
	payload string
	err     error
}

func (f fakeTool) Call(context.Context, string) (string, error) { return f.payload, f.err }

func TestDuckDuckGo_Search(t *testing.T) {
	d := &DuckDuckGo{
		tool: fakeTool{payload: "Title: Go\nDescription: The Go language\nURL: https://go.dev\n\n" +
			"Title: Tour\nDescription: A tour of Go\nURL: https://go.dev/tour\n\n"},
		limiter: newLimiter(0),
	}
	results, err := d.Search(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, []Result{
		{Title: "Go", Content: "The Go language", URL: "https://go.dev"},
		{Title: "Tour", Content: "A tour of Go", URL: "https://go.dev/tour"},
	}, results)

	d.tool = fakeTool{err: errors.New("connection reset")}
	_, err = d.Search(context.Background(), "go")
	assert.ErrorIs(t, err, faults.ErrBackendUnavailable)
}

func TestParseText_Unstructured(t *testing.T) {
	got := ParseText("see https://example.com/page for details")
	require.Len(t, got, 1)
	assert.Equal(t, "https://example.com/page", got[0].URL)

	assert.Empty(t, ParseText(""))
	assert.Empty(t, ParseText("No good Duck Duck Go Search Results was found"))
}

func TestFormatAndURLs(t *testing.T) {
	results := []Result{
		{Title: "A", Content: "alpha", URL: "https://a.example"},
		{Content: "beta"},
	}
	assert.Equal(t, "Title: A\nContent: alpha\n---\n\nTitle: No title\nContent: beta\n---", Format(results))
	assert.NotContains(t, Format(results), "https://")
	assert.Equal(t, []string{"https://a.example"}, URLs(results))
}
