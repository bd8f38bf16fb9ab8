package clientdata

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// failingStore simulates unavailable durable storage
type failingStore struct{}

var errStoreDown = errors.New("store unavailable")

func (failingStore) Get(context.Context, string) ([]byte, error)  { return nil, errStoreDown }
func (failingStore) Put(context.Context, string, []byte) error    { return errStoreDown }
func (failingStore) Delete(context.Context, string) error         { return errStoreDown }
func (failingStore) Name() string                                 { return "failing" }

// unlistedStore cannot enumerate keys
type unlistedStore struct {
	inner *MemoryStore
}

func (s unlistedStore) Get(ctx context.Context, k string) ([]byte, error) { return s.inner.Get(ctx, k) }
func (s unlistedStore) Put(ctx context.Context, k string, v []byte) error { return s.inner.Put(ctx, k, v) }
func (s unlistedStore) Delete(ctx context.Context, k string) error        { return s.inner.Delete(ctx, k) }
func (s unlistedStore) Name() string                                      { return "unlisted" }

func newTestCache(store Store, clock *fakeClock) *Cache {
	return NewCache(store, zerolog.Nop(), WithClock(clock.Now))
}

type commentary struct {
	Text string `json:"text"`
}

func TestCache_SetThenGet(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newTestCache(NewMemoryStore(), clock)

	c.SetWithTTL(ctx, "market_2026-10-17", commentary{Text: "calm"}, time.Hour)

	var got commentary
	require.True(t, c.GetInto(ctx, "market_2026-10-17", &got))
	assert.Equal(t, "calm", got.Text)
}

func TestCache_PersistsEntryShape(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()
	c := newTestCache(store, clock)

	c.SetWithTTL(ctx, "k", "v", 90*time.Second)

	raw, err := store.Get(ctx, "openai_cache_k")
	require.NoError(t, err)

	var entry Entry
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.JSONEq(t, `"v"`, string(entry.Data))
	assert.Equal(t, clock.Now().UnixMilli(), entry.Timestamp)
	assert.Equal(t, int64(90000), entry.TTL)
}

func TestCache_SubMillisecondTTLIsFreshUntilOneMillisecond(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newTestCache(NewMemoryStore(), clock)

	c.SetWithTTL(ctx, "k", "v", 500*time.Microsecond)

	_, ok := c.Get(ctx, "k")
	assert.True(t, ok)

	clock.Advance(time.Millisecond)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCache_ExpiredEntryIsAbsentAndPurged(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()
	c := newTestCache(store, clock)

	c.SetWithTTL(ctx, "k", "v", time.Minute)

	// exactly at ttl the entry is stale: now - ts < ttl is false
	clock.Advance(time.Minute)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	_, err := store.Get(ctx, "openai_cache_k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, c.Stats().MemoryEntries)
}

func TestCache_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewSQLStore(setupTestDB(t))

	first := newTestCache(store, clock)
	first.Set(ctx, "stock_AAPL_2026-10-17", commentary{Text: "strong quarter"})

	second := newTestCache(store, clock)
	data, ok := second.Get(ctx, "stock_AAPL_2026-10-17")
	require.True(t, ok)
	assert.JSONEq(t, `{"text":"strong quarter"}`, string(data))
	assert.Equal(t, 1, second.Stats().MemoryEntries, "durable hit repopulates memory")
}

func TestCache_ExpiredDurableEntryIsDeletedOnRead(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()

	newTestCache(store, clock).SetWithTTL(ctx, "k", 1, time.Hour)
	clock.Advance(2 * time.Hour)

	fresh := newTestCache(store, clock)
	_, ok := fresh.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestCache_UnreadableDurableEntryIsAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "openai_cache_k", []byte("not json")))

	c := newTestCache(store, newFakeClock())
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCache_Clear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := newTestCache(store, newFakeClock())

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)
	c.Clear(ctx, "a")

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "b")
	assert.True(t, ok)
	assert.Equal(t, 1, store.Len())
}

func TestCache_ClearAllKeepsUnrelatedKeys(t *testing.T) {
	ctx := context.Background()
	store := NewSQLStore(setupTestDB(t))
	require.NoError(t, store.Put(ctx, "supabase.auth.token", []byte(`"session"`)))

	c := newTestCache(store, newFakeClock())
	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)

	c.ClearAll(ctx)

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().MemoryEntries)

	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"supabase.auth.token"}, keys)
}

func TestCache_UnlistedStoreUsesIndex(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	require.NoError(t, inner.Put(ctx, "unrelated", []byte("1")))
	c := newTestCache(unlistedStore{inner: inner}, newFakeClock())

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)
	c.Set(ctx, "a", 3)

	raw, err := inner.Get(ctx, "openai_cache:index")
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(raw))

	c.Clear(ctx, "b")
	raw, err = inner.Get(ctx, "openai_cache:index")
	require.NoError(t, err)
	assert.JSONEq(t, `["a"]`, string(raw))

	c.ClearAll(ctx)
	keys, err := inner.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"unrelated"}, keys)
}

func TestCache_FailingStoreDegradesToMemory(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newTestCache(failingStore{}, clock)

	c.SetWithTTL(ctx, "k", "v", time.Minute)
	data, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.JSONEq(t, `"v"`, string(data))

	_, ok = c.Get(ctx, "other")
	assert.False(t, ok)

	c.Clear(ctx, "k")
	c.ClearAll(ctx)

	_, err := c.PurgeExpired(ctx)
	assert.Error(t, err)
}

func TestCache_NilStoreIsMemoryOnly(t *testing.T) {
	ctx := context.Background()
	c := NewCache(nil, zerolog.Nop())

	c.Set(ctx, "k", []int{1, 2})
	data, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.JSONEq(t, `[1,2]`, string(data))
	assert.Equal(t, "none", c.Stats().Backend)
}

func TestCache_UnencodableValueIsIgnored(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(NewMemoryStore(), newFakeClock())

	c.Set(ctx, "k", make(chan int))
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCache_Namespace(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := NewCache(store, zerolog.Nop(), WithNamespace("compass_"), WithDefaultTTL(time.Hour))

	c.Set(ctx, "k", 1)
	_, err := store.Get(ctx, "compass_k")
	assert.NoError(t, err)
	assert.Equal(t, time.Hour, c.DefaultTTL())
	assert.Equal(t, "compass:index", c.indexKey())
}

func TestCache_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()
	c := newTestCache(store, clock)

	c.SetWithTTL(ctx, "short", 1, time.Minute)
	c.SetWithTTL(ctx, "long", 2, time.Hour)
	clock.Advance(10 * time.Minute)

	removed, err := c.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, c.Stats().MemoryEntries)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(NewMemoryStore(), newFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set(ctx, "shared", i)
			c.Get(ctx, "shared")
		}(i)
	}
	wg.Wait()

	_, ok := c.Get(ctx, "shared")
	assert.True(t, ok)
}
