package vectorstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/askd/internal/config"
	"github.com/fyrsmithlabs/askd/internal/embeddings"
	"github.com/fyrsmithlabs/askd/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func hashEmbedder(t *testing.T, dim int) *embeddings.HashProvider {
	t.Helper()
	e, err := embeddings.NewHashProvider(dim)
	require.NoError(t, err)
	return e
}

func newTestCollection(t *testing.T, path, name string, dim int) (vectorstore.DB, vectorstore.Store) {
	t.Helper()
	db, err := vectorstore.NewChromemDB(vectorstore.ChromemConfig{Path: path}, hashEmbedder(t, dim), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := db.Collection(context.Background(), name)
	require.NoError(t, err)
	return db, store
}

var corpus = []vectorstore.Document{
	{ID: "1", Content: "The refund policy allows returns within 30 days", Metadata: map[string]string{"source": "policy.pdf"}},
	{ID: "2", Content: "Kubernetes schedules pods onto nodes", Metadata: map[string]string{"source": "k8s.md"}},
	{ID: "3", Content: "Shipping takes five business days", Metadata: map[string]string{"source": "shipping.txt"}},
}

func TestChromemStore_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	_, store := newTestCollection(t, t.TempDir(), "documents", 64)

	ids, err := store.AddDocuments(ctx, corpus)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := store.Search(ctx, "what is the refund policy", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "1", results[0].ID)
	assert.Equal(t, "policy.pdf", results[0].Metadata["source"])
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestChromemStore_SearchEdgeCases(t *testing.T) {
	ctx := context.Background()
	_, store := newTestCollection(t, "", "documents", 16)

	results, err := store.Search(ctx, "anything", 4)
	require.NoError(t, err)
	assert.Empty(t, results, "empty collection")

	_, err = store.AddDocuments(ctx, corpus[:1])
	require.NoError(t, err)

	results, err = store.Search(ctx, "refund", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1, "k is capped at the collection size")

	_, err = store.Search(ctx, "", 1)
	assert.Error(t, err)
	_, err = store.Search(ctx, "x", 0)
	assert.Error(t, err)

	_, err = store.AddDocuments(ctx, nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyDocuments)
}

func TestChromemStore_GeneratesIDs(t *testing.T) {
	_, store := newTestCollection(t, "", "documents", 16)
	ids, err := store.AddDocuments(context.Background(), []vectorstore.Document{{Content: "no id"}})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.NotEmpty(t, ids[0])
}

func TestChromemStore_DeleteWhereAndReset(t *testing.T) {
	ctx := context.Background()
	_, store := newTestCollection(t, t.TempDir(), "chat_history", 16)

	_, err := store.AddDocuments(ctx, []vectorstore.Document{
		{Content: "hello", Metadata: map[string]string{"session_id": "a", "role": "user"}},
		{Content: "hi", Metadata: map[string]string{"session_id": "a", "role": "assistant"}},
		{Content: "other", Metadata: map[string]string{"session_id": "b", "role": "user"}},
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteWhere(ctx, map[string]string{"session_id": "a"}))
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, store.DeleteWhere(ctx, nil), vectorstore.ErrEmptyFilter)

	require.NoError(t, store.Reset(ctx))
	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// The collection is usable after a reset.
	_, err = store.AddDocuments(ctx, corpus[:1])
	require.NoError(t, err)
}

func TestChromemDB_Persists(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir()

	_, store := newTestCollection(t, path, "documents", 16)
	_, err := store.AddDocuments(ctx, corpus)
	require.NoError(t, err)

	db, reopened := newTestCollection(t, path, "documents", 16)
	assert.Empty(t, db.Recovered())
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestChromemDB_DimensionMismatchBacksUp(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectorstore")

	_, store := newTestCollection(t, path, "documents", 8)
	_, err := store.AddDocuments(ctx, corpus)
	require.NoError(t, err)

	db, reopened := newTestCollection(t, path, "documents", 16)
	assert.Equal(t, path+"_backup", db.Recovered())
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "recreated index starts empty")

	_, err = os.Stat(filepath.Join(path+"_backup", "askd_manifest.json"))
	require.NoError(t, err, "previous index preserved")

	// A second recovery must not overwrite the first backup.
	db, _ = newTestCollection(t, path, "documents", 32)
	assert.NotEmpty(t, db.Recovered())
	assert.NotEqual(t, path+"_backup", db.Recovered())
	_, err = os.Stat(db.Recovered())
	assert.NoError(t, err)
}

func TestChromemDB_ProviderChangeBacksUp(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectorstore")
	open := func(provider string) vectorstore.DB {
		db, err := vectorstore.NewChromemDB(vectorstore.ChromemConfig{Path: path, EmbeddingProvider: provider}, hashEmbedder(t, 16), zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return db
	}

	db := open("ollama")
	store, err := db.Collection(ctx, "documents")
	require.NoError(t, err)
	_, err = store.AddDocuments(ctx, corpus)
	require.NoError(t, err)

	db = open("ollama")
	assert.Empty(t, db.Recovered(), "same provider and dimension reuses the index")

	db = open("openai")
	assert.Equal(t, path+"_backup", db.Recovered(), "equal dimension from another provider is a mismatch")
	reopened, err := db.Collection(ctx, "documents")
	require.NoError(t, err)
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	data, err := os.ReadFile(filepath.Join(path, "askd_manifest.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"provider":"openai"`)
}

func TestChromemDB_ManifestWithoutProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectorstore")
	newTestCollection(t, path, "documents", 16)

	db, err := vectorstore.NewChromemDB(vectorstore.ChromemConfig{Path: path, EmbeddingProvider: "hash"}, hashEmbedder(t, 16), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	assert.Empty(t, db.Recovered(), "an unnamed index is adopted, not discarded")

	data, err := os.ReadFile(filepath.Join(path, "askd_manifest.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"provider":"hash"`)
}

func TestChromemDB_Validation(t *testing.T) {
	_, err := vectorstore.NewChromemDB(vectorstore.ChromemConfig{}, nil, nil)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)

	db, err := vectorstore.NewChromemDB(vectorstore.ChromemConfig{}, hashEmbedder(t, 8), nil)
	require.NoError(t, err)
	_, err = db.Collection(context.Background(), "Bad Name")
	assert.ErrorIs(t, err, vectorstore.ErrInvalidCollectionName)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default().VectorStore
	cfg.Path = t.TempDir()

	db, err := vectorstore.Open(ctx, cfg, hashEmbedder(t, 8), "hash", nil)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Collection(ctx, cfg.DocumentsCollection)
	require.NoError(t, err)

	cfg.Provider = "pinecone"
	_, err = vectorstore.Open(ctx, cfg, hashEmbedder(t, 8), "hash", nil)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
}

func TestValidateCollectionName(t *testing.T) {
	assert.NoError(t, vectorstore.ValidateCollectionName("chat_history"))
	for _, bad := range []string{"", "Docs", "../etc", "with space"} {
		assert.ErrorIs(t, vectorstore.ValidateCollectionName(bad), vectorstore.ErrInvalidCollectionName, bad)
	}
}
