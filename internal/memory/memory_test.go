package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fyrsmithlabs/askd/internal/embeddings"
	"github.com/fyrsmithlabs/askd/internal/mode"
	"github.com/fyrsmithlabs/askd/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuffer_Bound(t *testing.T) {
	const limit = 4
	b := NewBuffer(limit)
	var all []Message
	for i := 0; i < limit+5; i++ {
		msg := Message{Role: RoleUser, Content: fmt.Sprintf("m%d", i)}
		all = append(all, msg)
		b.Append(msg)

		assert.LessOrEqual(t, b.Len(), limit)
		start := len(all) - limit
		if start < 0 {
			start = 0
		}
		assert.Equal(t, all[start:], b.Messages(), "after append %d", i)
	}

	b.Replace(all)
	assert.Equal(t, all[len(all)-limit:], b.Messages())
	b.Clear()
	assert.Zero(t, b.Len())
}

func TestTitleFrom(t *testing.T) {
	tests := map[string]string{
		"What is X?":                                "What is X?",
		"  first line\nsecond line":                 "first line",
		"exactly thirty characters long":            "exactly thirty characters long",
		"this message is definitely longer than 30": "this message is definitely ...",
		"":   "New Chat",
		"\n": "New Chat",
	}
	for in, want := range tests {
		assert.Equal(t, want, titleFrom(in), in)
	}
}

func newStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestFileStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	_, err := s.Append(ctx, "a", Message{Role: RoleAssistant, Content: "welcome", Timestamp: base})
	require.NoError(t, err)
	sess, err := s.Append(ctx, "a", Message{Role: RoleUser, Content: "How do refunds work?", Timestamp: base.Add(time.Second)})
	require.NoError(t, err)
	assert.Equal(t, "How do refunds work?", sess.Title, "first user message names the session")
	assert.Equal(t, base, sess.CreatedAt)
	assert.Equal(t, base.Add(time.Second), sess.UpdatedAt)

	_, err = s.Append(ctx, "b", Message{Role: RoleUser, Content: "later", Timestamp: base.Add(time.Hour)})
	require.NoError(t, err)
	_, err = s.Append(ctx, "a", Message{Role: RoleUser, Content: "second question", Timestamp: base.Add(2 * time.Second)})
	require.NoError(t, err)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID, "most recently updated first")
	assert.Equal(t, 3, list[1].MessageCount)
	assert.Equal(t, "How do refunds work?", list[1].Title)

	loaded, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, loaded.Messages, 3)

	existed, err := s.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = s.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = s.Load(ctx, "a")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp files left behind")
}

func TestFileStore_RecordLayout(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root)
	require.NoError(t, err)

	_, err = s.Append(context.Background(), "abc", Message{Role: RoleUser, Content: "hi", Timestamp: time.Now()})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "sessions", "abc.json"))
	require.NoError(t, err)
	for _, key := range []string{`"session_id"`, `"created_at"`, `"updated_at"`, `"title"`, `"messages"`, `"role"`, `"content"`, `"timestamp"`} {
		assert.Contains(t, string(data), key)
	}
}

func TestFileStore_InvalidID(t *testing.T) {
	s := newStore(t)
	for _, id := range []string{"", "../escape", "a/b", "with space"} {
		_, err := s.Append(context.Background(), id, Message{Role: RoleUser, Content: "x"})
		assert.ErrorIs(t, err, ErrInvalidSessionID, id)
	}
}

func newIndex(t *testing.T) vectorstore.Store {
	t.Helper()
	e, err := embeddings.NewHashProvider(32)
	require.NoError(t, err)
	db, err := vectorstore.NewChromemDB(vectorstore.ChromemConfig{}, e, nil)
	require.NoError(t, err)
	store, err := db.Collection(context.Background(), "chat_history")
	require.NoError(t, err)
	return store
}

func newManager(t *testing.T, md mode.MemoryMode, limit int, index vectorstore.Store) *Manager {
	t.Helper()
	m, err := NewManager(Config{Mode: md, Limit: limit, Store: newStore(t), Index: index})
	require.NoError(t, err)
	return m
}

func contents(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.Role) + ":" + m.Content
	}
	return out
}

func TestManager_SessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, mode.Persistent, 10, newIndex(t))

	id := m.CreateSession()
	require.NotEmpty(t, id)

	require.NoError(t, m.AddUserMessage(ctx, "hello", id))
	require.NoError(t, m.AddAIMessage(ctx, "hi", id))

	m.ClearBuffer()
	require.NoError(t, m.LoadSession(ctx, id))
	assert.Equal(t, []string{"user:hello", "assistant:hi"}, contents(m.ChatHistory()))
}

func TestManager_TransientDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, mode.Transient, 10, nil)

	require.NoError(t, m.AddUserMessage(ctx, "hello", "some-session"))
	sessions, err := m.AllSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Equal(t, 1, m.BufferLen())

	assert.ErrorIs(t, m.LoadSession(ctx, "some-session"), ErrTransientMode)
}

func TestManager_PersistentWithoutSession(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, mode.Persistent, 10, nil)

	require.NoError(t, m.AddUserMessage(ctx, "hello", ""))
	sessions, err := m.AllSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestManager_LoadSession(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, mode.Persistent, 3, nil)
	id := m.CreateSession()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.AddUserMessage(ctx, fmt.Sprintf("q%d", i), id))
	}

	m.ClearBuffer()
	require.NoError(t, m.AddUserMessage(ctx, "unsaved", ""))

	err := m.LoadSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, []string{"user:unsaved"}, contents(m.ChatHistory()), "failed load keeps the buffer")

	require.NoError(t, m.LoadSession(ctx, id))
	assert.Equal(t, []string{"user:q2", "user:q3", "user:q4"}, contents(m.ChatHistory()), "truncated to the most recent messages")
}

func TestManager_SetModeKeepsBuffer(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, mode.Transient, 10, nil)
	require.NoError(t, m.AddUserMessage(ctx, "a", ""))

	m.SetMode(mode.Persistent)
	assert.Equal(t, mode.Persistent, m.Mode())
	m.SetMode(mode.Transient)
	assert.Equal(t, []string{"user:a"}, contents(m.ChatHistory()))
}

func TestManager_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	index := newIndex(t)
	m := newManager(t, mode.Persistent, 10, index)

	a, b := m.CreateSession(), m.CreateSession()
	require.NoError(t, m.AddUserMessage(ctx, "alpha question", a))
	require.NoError(t, m.AddUserMessage(ctx, "beta question", b))

	n, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	existed, err := m.DeleteSession(ctx, a)
	require.NoError(t, err)
	assert.True(t, existed)
	n, err = index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "indexed messages of the session are removed")

	existed, err = m.DeleteSession(ctx, a)
	require.NoError(t, err)
	assert.False(t, existed)

	require.NoError(t, m.ClearAllSessions(ctx))
	sessions, err := m.AllSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	n, err = index.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManager_SearchHistory(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, mode.Persistent, 10, newIndex(t))
	id := m.CreateSession()
	require.NoError(t, m.AddUserMessage(ctx, "how do I reset my router password", id))
	require.NoError(t, m.AddAIMessage(ctx, "hold the reset button for ten seconds", id))

	hits, err := m.SearchHistory(ctx, "router password", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0].SessionID)
	assert.Equal(t, RoleUser, hits[0].Role)
	assert.False(t, hits[0].Timestamp.IsZero())

	noIndex := newManager(t, mode.Persistent, 10, nil)
	_, err = noIndex.SearchHistory(ctx, "x", 1)
	assert.ErrorIs(t, err, ErrNoIndex)
}

type failingIndex struct{ vectorstore.Store }

func (failingIndex) AddDocuments(context.Context, []vectorstore.Document) ([]string, error) {
	return nil, errors.New("index offline")
}

func TestManager_IndexFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	m, err := NewManager(Config{
		Mode:   mode.Persistent,
		Limit:  10,
		Store:  newStore(t),
		Index:  failingIndex{},
		Logger: zap.New(core),
	})
	require.NoError(t, err)

	id := m.CreateSession()
	require.NoError(t, m.AddUserMessage(ctx, "hello", id), "semantic index failures never fail the append")
	assert.Equal(t, 1, logs.FilterMessage("indexing message failed").Len())

	sess, err := m.store.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 1)
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(Config{Limit: 1})
	assert.Error(t, err)
	_, err = NewManager(Config{Store: newStore(t)})
	assert.Error(t, err)
}
