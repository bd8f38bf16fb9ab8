// Package clientdata provides the response cache placed in front of the
// commentary generator. Entries live in a volatile map and are mirrored to a
// durable Store so they survive restarts.
package clientdata

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Cache is a TTL cache with memory and durable tiers.
// No operation fails observably: durable errors are logged and the cache
// keeps serving from memory.
type Cache struct {
	mu  sync.Mutex
	mem map[string]Entry

	// indexMu serializes read-modify-write of the key index for stores
	// that cannot list keys
	indexMu sync.Mutex

	store      Store
	namespace  string
	defaultTTL time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// Option configures a Cache
type Option func(*Cache)

// WithNamespace sets the durable key prefix
func WithNamespace(ns string) Option {
	return func(c *Cache) {
		if ns != "" {
			c.namespace = ns
		}
	}
}

// WithDefaultTTL sets the TTL used by Set
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithClock replaces time.Now, used by tests
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache creates a cache over store. A nil store gives a memory-only cache.
func NewCache(store Store, log zerolog.Logger, opts ...Option) *Cache {
	c := &Cache{
		mem:        make(map[string]Entry),
		store:      store,
		namespace:  DefaultNamespace,
		defaultTTL: DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	backend := "none"
	if store != nil {
		backend = store.Name()
	}
	c.log = log.With().
		Str("component", "response_cache").
		Str("backend", backend).
		Logger()
	return c
}

// Namespace returns the durable key prefix
func (c *Cache) Namespace() string {
	return c.namespace
}

// DefaultTTL returns the TTL applied by Set
func (c *Cache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Set caches data for the default TTL
func (c *Cache) Set(ctx context.Context, key string, data any) {
	c.SetWithTTL(ctx, key, data, c.defaultTTL)
}

// SetWithTTL caches data for ttl. Concurrent writers of the same key: last one wins.
func (c *Cache) SetWithTTL(ctx context.Context, key string, data any, ttl time.Duration) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to encode cache value")
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	entry := newEntry(raw, c.now(), ttl)

	c.mu.Lock()
	c.mem[key] = entry
	c.mu.Unlock()

	if c.store == nil {
		return
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to encode cache entry")
		return
	}
	if err := c.store.Put(ctx, c.durableKey(key), encoded); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to persist cache entry")
		return
	}
	c.indexAdd(ctx, key)
}

// Get returns the cached data for key if present and fresh.
// Expired entries are removed from both tiers.
func (c *Cache) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	now := c.now()

	c.mu.Lock()
	entry, ok := c.mem[key]
	if ok && !entry.Fresh(now) {
		delete(c.mem, key)
	}
	c.mu.Unlock()

	if ok {
		if entry.Fresh(now) {
			return entry.Data, true
		}
		c.removeDurable(ctx, key)
		return nil, false
	}

	if c.store == nil {
		return nil, false
	}

	raw, err := c.store.Get(ctx, c.durableKey(key))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.log.Warn().Err(err).Str("key", key).Msg("Failed to read cache entry")
		}
		return nil, false
	}

	entry, err = decodeEntry(raw)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Discarding unreadable cache entry")
		return nil, false
	}

	if !entry.Fresh(now) {
		c.removeDurable(ctx, key)
		return nil, false
	}

	c.mu.Lock()
	c.mem[key] = entry
	c.mu.Unlock()

	return entry.Data, true
}

// GetInto decodes a fresh entry into v. It reports false when the entry is
// absent or does not decode.
func (c *Cache) GetInto(ctx context.Context, key string, v any) bool {
	data, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to decode cached value")
		return false
	}
	return true
}

// Clear removes key from both tiers
func (c *Cache) Clear(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.mem, key)
	c.mu.Unlock()

	c.removeDurable(ctx, key)
}

// ClearAll removes every cached entry. Durable keys outside the namespace are kept.
func (c *Cache) ClearAll(ctx context.Context) {
	c.mu.Lock()
	c.mem = make(map[string]Entry)
	c.mu.Unlock()

	if c.store == nil {
		return
	}

	keys, err := c.durableKeys(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to enumerate cache entries")
		return
	}

	for _, k := range keys {
		if err := c.store.Delete(ctx, k); err != nil {
			c.log.Warn().Err(err).Str("key", k).Msg("Failed to delete cache entry")
		}
	}

	if _, ok := c.store.(Lister); !ok {
		c.indexMu.Lock()
		if err := c.store.Delete(ctx, c.indexKey()); err != nil {
			c.log.Warn().Err(err).Msg("Failed to delete cache index")
		}
		c.indexMu.Unlock()
	}

	c.log.Debug().Int("durable_entries", len(keys)).Msg("Cleared response cache")
}

// PurgeExpired drops expired entries from memory and the durable store and
// returns how many durable entries were removed.
func (c *Cache) PurgeExpired(ctx context.Context) (int, error) {
	now := c.now()

	c.mu.Lock()
	for k, e := range c.mem {
		if !e.Fresh(now) {
			delete(c.mem, k)
		}
	}
	c.mu.Unlock()

	if c.store == nil {
		return 0, nil
	}

	keys, err := c.durableKeys(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, dk := range keys {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		raw, err := c.store.Get(ctx, dk)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, err
		}

		// unreadable entries are garbage too
		if entry, err := decodeEntry(raw); err == nil && entry.Fresh(now) {
			continue
		}

		c.removeDurable(ctx, strings.TrimPrefix(dk, c.namespace))
		removed++
	}
	return removed, nil
}

// Stats describes the cache for status output
type Stats struct {
	Backend       string `json:"backend"`
	Namespace     string `json:"namespace"`
	MemoryEntries int    `json:"memory_entries"`
	DefaultTTL    string `json:"default_ttl"`
}

// Stats returns a snapshot of cache state
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	n := len(c.mem)
	c.mu.Unlock()

	backend := "none"
	if c.store != nil {
		backend = c.store.Name()
	}
	return Stats{
		Backend:       backend,
		Namespace:     c.namespace,
		MemoryEntries: n,
		DefaultTTL:    c.defaultTTL.String(),
	}
}

func (c *Cache) durableKey(key string) string {
	return c.namespace + key
}

// indexKey is outside the namespace so prefix scans never see it
func (c *Cache) indexKey() string {
	return strings.TrimSuffix(c.namespace, "_") + ":index"
}

func (c *Cache) removeDurable(ctx context.Context, key string) {
	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, c.durableKey(key)); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to delete cache entry")
		return
	}
	c.indexRemove(ctx, key)
}

// durableKeys returns the full durable keys of every namespaced entry
func (c *Cache) durableKeys(ctx context.Context) ([]string, error) {
	if l, ok := c.store.(Lister); ok {
		return l.Keys(ctx, c.namespace)
	}

	c.indexMu.Lock()
	defer c.indexMu.Unlock()

	idx, err := c.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(idx))
	for _, k := range idx {
		keys = append(keys, c.durableKey(k))
	}
	return keys, nil
}

func (c *Cache) readIndex(ctx context.Context) ([]string, error) {
	raw, err := c.store.Get(ctx, c.indexKey())
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		c.log.Warn().Err(err).Msg("Resetting unreadable cache index")
		return nil, nil
	}
	return keys, nil
}

func (c *Cache) writeIndex(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return c.store.Delete(ctx, c.indexKey())
	}
	raw, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return c.store.Put(ctx, c.indexKey(), raw)
}

func (c *Cache) indexAdd(ctx context.Context, key string) {
	if _, ok := c.store.(Lister); ok {
		return
	}

	c.indexMu.Lock()
	defer c.indexMu.Unlock()

	keys, err := c.readIndex(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to read cache index")
		return
	}
	for _, k := range keys {
		if k == key {
			return
		}
	}
	if err := c.writeIndex(ctx, append(keys, key)); err != nil {
		c.log.Warn().Err(err).Msg("Failed to update cache index")
	}
}

func (c *Cache) indexRemove(ctx context.Context, key string) {
	if _, ok := c.store.(Lister); ok {
		return
	}

	c.indexMu.Lock()
	defer c.indexMu.Unlock()

	keys, err := c.readIndex(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to read cache index")
		return
	}
	kept := keys[:0]
	for _, k := range keys {
		if k != key {
			kept = append(kept, k)
		}
	}
	if len(kept) == len(keys) {
		return
	}
	if err := c.writeIndex(ctx, kept); err != nil {
		c.log.Warn().Err(err).Msg("Failed to update cache index")
	}
}
