package clientdata

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE response_cache (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLStore_PutGet(t *testing.T) {
	store := NewSQLStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "openai_cache_a", []byte(`{"data":1}`)))

	got, err := store.Get(ctx, "openai_cache_a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":1}`, string(got))

	// upsert
	require.NoError(t, store.Put(ctx, "openai_cache_a", []byte(`{"data":2}`)))
	got, err = store.Get(ctx, "openai_cache_a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":2}`, string(got))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLStore_GetMissing(t *testing.T) {
	store := NewSQLStore(setupTestDB(t))

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_DeleteMissingIsNotAnError(t *testing.T) {
	store := NewSQLStore(setupTestDB(t))
	assert.NoError(t, store.Delete(context.Background(), "missing"))
}

func TestSQLStore_KeysTreatsUnderscoreLiterally(t *testing.T) {
	store := NewSQLStore(setupTestDB(t))
	ctx := context.Background()

	for _, k := range []string{"openai_cache_b", "openai_cache_a", "openaiXcacheXc", "other_key"} {
		require.NoError(t, store.Put(ctx, k, []byte(`{}`)))
	}

	keys, err := store.Keys(ctx, "openai_cache_")
	require.NoError(t, err)
	assert.Equal(t, []string{"openai_cache_a", "openai_cache_b"}, keys)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	buf := []byte("v1")
	require.NoError(t, store.Put(ctx, "k", buf))
	buf[0] = 'x'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got), "store must copy values")

	require.NoError(t, store.Put(ctx, "p_1", nil))
	keys, err := store.Keys(ctx, "p_")
	require.NoError(t, err)
	assert.Equal(t, []string{"p_1"}, keys)

	require.NoError(t, store.Delete(ctx, "k"))
	assert.Equal(t, 1, store.Len())
}
