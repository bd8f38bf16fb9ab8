package clientdata

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupJob_Name(t *testing.T) {
	job := NewCleanupJob(NewCache(nil, zerolog.Nop()), zerolog.Nop())
	assert.Equal(t, "response_cache_cleanup", job.Name())
}

func TestCleanupJob_Run(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewSQLStore(setupTestDB(t))
	c := newTestCache(store, clock)

	c.SetWithTTL(ctx, "expired", 1, time.Minute)
	c.SetWithTTL(ctx, "fresh", 2, 48*time.Hour)
	clock.Advance(time.Hour)

	job := NewCleanupJob(c, zerolog.Nop())
	require.NoError(t, job.Run())

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Get(ctx, "openai_cache_fresh")
	assert.NoError(t, err)
}

func TestCleanupJob_RunReportsStoreFailure(t *testing.T) {
	job := NewCleanupJob(newTestCache(failingStore{}, newFakeClock()), zerolog.Nop())
	assert.Error(t, job.Run())
}
