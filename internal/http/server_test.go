package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askd/internal/engine"
	"github.com/fyrsmithlabs/askd/internal/faults"
	"github.com/fyrsmithlabs/askd/internal/logging"
	"github.com/fyrsmithlabs/askd/internal/memory"
	"github.com/fyrsmithlabs/askd/internal/mode"
	"github.com/fyrsmithlabs/askd/internal/privacy"
)

type fakeEngine struct {
	status   engine.Status
	queries  []string
	reqIDs   []string
	history  []memory.Message
	sessions map[string]memory.Summary
	hits     []memory.HistoryHit
	modeErr  error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		status: engine.Status{
			AnswerMode:        mode.AnswerRAG,
			MemoryMode:        mode.Persistent,
			ModelProvider:     mode.Groq,
			EmbeddingProvider: mode.HashEmbeddings,
			FilterEnabled:     true,
		},
		sessions: map[string]memory.Summary{
			"s1": {ID: "s1", Title: "First", MessageCount: 2, UpdatedAt: time.Now()},
		},
	}
}

func (f *fakeEngine) ProcessQuery(ctx context.Context, raw string) engine.Response {
	f.queries = append(f.queries, raw)
	f.reqIDs = append(f.reqIDs, logging.RequestIDFromContext(ctx))
	return engine.Response{Answer: "answer to " + raw, Sensitive: strings.Contains(raw, "@")}
}

func (f *fakeEngine) Status() engine.Status         { return f.status }
func (f *fakeEngine) ChatHistory() []memory.Message { return f.history }

func (f *fakeEngine) ChangeAnswerMode(_ context.Context, value string) error {
	if f.modeErr != nil {
		return f.modeErr
	}
	m, err := mode.ParseAnswerMode(value)
	if err != nil {
		return err
	}
	f.status.AnswerMode = m
	return nil
}

func (f *fakeEngine) ChangeModelProvider(_ context.Context, value string) error {
	p, err := mode.ParseModelProvider(value)
	if err != nil {
		return err
	}
	f.status.ModelProvider = p
	return nil
}

func (f *fakeEngine) ChangeEmbeddingProvider(_ context.Context, value string) error {
	p, err := mode.ParseEmbeddingProvider(value)
	if err != nil {
		return err
	}
	f.status.EmbeddingProvider = p
	return nil
}

func (f *fakeEngine) ChangeMemoryMode(_ context.Context, value string) error {
	m, err := mode.ParseMemoryMode(value)
	if err != nil {
		return err
	}
	f.status.MemoryMode = m
	return nil
}

func (f *fakeEngine) ToggleFilter(_ context.Context, enabled bool) error {
	f.status.FilterEnabled = enabled
	return nil
}

func (f *fakeEngine) CreateNewSession() string {
	f.status.SessionID = "new-session"
	return f.status.SessionID
}

func (f *fakeEngine) LoadSession(_ context.Context, id string) error {
	if f.status.MemoryMode == mode.Transient {
		return memory.ErrTransientMode
	}
	if _, ok := f.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", memory.ErrSessionNotFound, id)
	}
	f.status.SessionID = id
	f.history = []memory.Message{{Role: memory.RoleUser, Content: "hi"}}
	return nil
}

func (f *fakeEngine) AllSessions(context.Context) ([]memory.Summary, error) {
	out := make([]memory.Summary, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeEngine) DeleteSession(_ context.Context, id string) (bool, error) {
	_, ok := f.sessions[id]
	delete(f.sessions, id)
	return ok, nil
}

func (f *fakeEngine) ClearAllSessions(context.Context) error {
	f.sessions = map[string]memory.Summary{}
	return nil
}

func (f *fakeEngine) SearchHistory(_ context.Context, _ string, k int) ([]memory.HistoryHit, error) {
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func setupTestServer(t *testing.T) (*Server, *fakeEngine) {
	t.Helper()
	eng := newFakeEngine()
	filter, err := privacy.New(&privacy.Config{Enabled: true})
	require.NoError(t, err)
	server, err := NewServer(eng, filter, zap.NewNop(), nil)
	require.NoError(t, err)
	return server, eng
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func strPtr(s string) *string { return &s }

func TestNewServer(t *testing.T) {
	filter := privacy.MustNew(nil)

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(newFakeEngine(), filter, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 9191, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(newFakeEngine(), filter, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when scrubber is nil", func(t *testing.T) {
		_, err := NewServer(newFakeEngine(), nil, zap.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scrubber cannot be nil")
	})

	t.Run("returns error when engine is nil", func(t *testing.T) {
		_, err := NewServer(nil, filter, zap.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTestServer(t)

	rec := do(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	decode(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	rec := do(t, server, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestHandleQuery(t *testing.T) {
	t.Run("passes the request id to the engine", func(t *testing.T) {
		server, eng := setupTestServer(t)

		rec := do(t, server, http.MethodPost, "/api/v1/query", QueryRequest{Query: "hello"})
		require.Equal(t, http.StatusOK, rec.Code)

		id := rec.Header().Get(echo.HeaderXRequestID)
		require.NotEmpty(t, id)
		require.Len(t, eng.reqIDs, 1)
		assert.Equal(t, id, eng.reqIDs[0])
	})

	t.Run("answers a query", func(t *testing.T) {
		server, eng := setupTestServer(t)

		rec := do(t, server, http.MethodPost, "/api/v1/query", QueryRequest{Query: "What is X?"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp engine.Response
		decode(t, rec, &resp)
		assert.Equal(t, "answer to What is X?", resp.Answer)
		assert.False(t, resp.Sensitive)
		assert.Equal(t, []string{"What is X?"}, eng.queries)
	})

	t.Run("reports sensitive input", func(t *testing.T) {
		server, _ := setupTestServer(t)

		rec := do(t, server, http.MethodPost, "/api/v1/query", QueryRequest{Query: "mail a@b.com"})
		var resp engine.Response
		decode(t, rec, &resp)
		assert.True(t, resp.Sensitive)
	})

	t.Run("rejects empty query", func(t *testing.T) {
		server, eng := setupTestServer(t)

		rec := do(t, server, http.MethodPost, "/api/v1/query", QueryRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, eng.queries)
	})

	t.Run("rejects invalid json", func(t *testing.T) {
		server, _ := setupTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader("invalid json"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleModes(t *testing.T) {
	t.Run("applies every field", func(t *testing.T) {
		server, _ := setupTestServer(t)
		off := false

		rec := do(t, server, http.MethodPut, "/api/v1/modes", ModesRequest{
			AnswerMode:        strPtr("default"),
			MemoryMode:        strPtr("transient"),
			ModelProvider:     strPtr("anthropic"),
			EmbeddingProvider: strPtr("openai"),
			PrivacyFilter:     &off,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var st engine.Status
		decode(t, rec, &st)
		assert.Equal(t, mode.AnswerDefault, st.AnswerMode)
		assert.Equal(t, mode.Transient, st.MemoryMode)
		assert.Equal(t, mode.Anthropic, st.ModelProvider)
		assert.Equal(t, mode.OpenAIEmbeddings, st.EmbeddingProvider)
		assert.False(t, st.FilterEnabled)
	})

	t.Run("invalid value is a bad request", func(t *testing.T) {
		server, eng := setupTestServer(t)

		rec := do(t, server, http.MethodPut, "/api/v1/modes", ModesRequest{AnswerMode: strPtr("telepathy")})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, mode.AnswerRAG, eng.status.AnswerMode)
	})

	t.Run("unavailable backend is 503", func(t *testing.T) {
		server, eng := setupTestServer(t)
		eng.modeErr = faults.BackendUnavailable("no search backend")

		rec := do(t, server, http.MethodPut, "/api/v1/modes", ModesRequest{AnswerMode: strPtr("web_search")})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHandleScrub(t *testing.T) {
	t.Run("redacts sensitive data", func(t *testing.T) {
		server, _ := setupTestServer(t)

		rec := do(t, server, http.MethodPost, "/api/v1/scrub", ScrubRequest{Content: "write to a@b.com"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ScrubResponse
		decode(t, rec, &resp)
		assert.Equal(t, "write to [EMAIL REDACTED]", resp.Content)
		assert.Equal(t, 1, resp.FindingsCount)
		assert.Equal(t, 1, resp.Categories[privacy.CategoryEmail])
	})

	t.Run("handles content with nothing sensitive", func(t *testing.T) {
		server, _ := setupTestServer(t)

		content := "This is just regular text."
		rec := do(t, server, http.MethodPost, "/api/v1/scrub", ScrubRequest{Content: content})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ScrubResponse
		decode(t, rec, &resp)
		assert.Equal(t, content, resp.Content)
		assert.Equal(t, 0, resp.FindingsCount)
	})

	t.Run("handles empty content field", func(t *testing.T) {
		server, _ := setupTestServer(t)

		rec := do(t, server, http.MethodPost, "/api/v1/scrub", ScrubRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp map[string]interface{}
		decode(t, rec, &resp)
		assert.Contains(t, resp["message"], "content field is required")
	})
}

func TestSessionRoutes(t *testing.T) {
	t.Run("lists sessions", func(t *testing.T) {
		server, _ := setupTestServer(t)

		rec := do(t, server, http.MethodGet, "/api/v1/sessions", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var sessions []memory.Summary
		decode(t, rec, &sessions)
		require.Len(t, sessions, 1)
		assert.Equal(t, "s1", sessions[0].ID)
	})

	t.Run("creates a session", func(t *testing.T) {
		server, _ := setupTestServer(t)

		rec := do(t, server, http.MethodPost, "/api/v1/sessions", nil)
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp SessionResponse
		decode(t, rec, &resp)
		assert.Equal(t, "new-session", resp.SessionID)
	})

	t.Run("loads a session", func(t *testing.T) {
		server, eng := setupTestServer(t)

		rec := do(t, server, http.MethodPost, "/api/v1/sessions/s1/load", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp SessionResponse
		decode(t, rec, &resp)
		assert.Equal(t, "s1", resp.SessionID)
		assert.Len(t, resp.Messages, 1)
		assert.Equal(t, "s1", eng.status.SessionID)
	})

	t.Run("load of a missing session is 404", func(t *testing.T) {
		server, _ := setupTestServer(t)

		rec := do(t, server, http.MethodPost, "/api/v1/sessions/nope/load", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("load in transient mode is a conflict", func(t *testing.T) {
		server, eng := setupTestServer(t)
		eng.status.MemoryMode = mode.Transient

		rec := do(t, server, http.MethodPost, "/api/v1/sessions/s1/load", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("deletes a session", func(t *testing.T) {
		server, eng := setupTestServer(t)

		rec := do(t, server, http.MethodDelete, "/api/v1/sessions/s1", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, eng.sessions)

		rec = do(t, server, http.MethodDelete, "/api/v1/sessions/s1", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("clears every session", func(t *testing.T) {
		server, eng := setupTestServer(t)

		rec := do(t, server, http.MethodDelete, "/api/v1/sessions", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, eng.sessions)
	})

	t.Run("searches history", func(t *testing.T) {
		server, eng := setupTestServer(t)
		eng.hits = []memory.HistoryHit{
			{SessionID: "s1", Role: memory.RoleUser, Content: "rollbacks", Score: 0.9},
			{SessionID: "s1", Role: memory.RoleAssistant, Content: "use helm", Score: 0.7},
		}

		rec := do(t, server, http.MethodGet, "/api/v1/sessions/search?q=rollback&k=1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var hits []memory.HistoryHit
		decode(t, rec, &hits)
		require.Len(t, hits, 1)
		assert.Equal(t, "rollbacks", hits[0].Content)
	})

	t.Run("search validates parameters", func(t *testing.T) {
		server, _ := setupTestServer(t)

		assert.Equal(t, http.StatusBadRequest, do(t, server, http.MethodGet, "/api/v1/sessions/search", nil).Code)
		assert.Equal(t, http.StatusBadRequest, do(t, server, http.MethodGet, "/api/v1/sessions/search?q=x&k=0", nil).Code)
	})
}

func TestHandleHistoryAndStatus(t *testing.T) {
	server, eng := setupTestServer(t)

	rec := do(t, server, http.MethodGet, "/api/v1/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	eng.history = []memory.Message{{Role: memory.RoleUser, Content: "hi"}}
	rec = do(t, server, http.MethodGet, "/api/v1/history", nil)
	var msgs []memory.Message
	decode(t, rec, &msgs)
	assert.Len(t, msgs, 1)

	rec = do(t, server, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st engine.Status
	decode(t, rec, &st)
	assert.Equal(t, mode.AnswerRAG, st.AnswerMode)
	assert.True(t, st.FilterEnabled)
}

func TestServerLifecycle(t *testing.T) {
	eng := newFakeEngine()
	server, err := NewServer(eng, privacy.MustNew(nil), zap.NewNop(), &Config{Host: "127.0.0.1", Port: 0})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
