package clientdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob removes expired response cache entries.
// It should be scheduled to run daily.
type CleanupJob struct {
	cache   *Cache
	timeout time.Duration
	log     zerolog.Logger
}

// NewCleanupJob creates a new cache cleanup job
func NewCleanupJob(cache *Cache, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		cache:   cache,
		timeout: 5 * time.Minute,
		log:     log.With().Str("job", "response_cache_cleanup").Logger(),
	}
}

// Run purges expired entries
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	removed, err := j.cache.PurgeExpired(ctx)
	if err != nil {
		j.log.Error().Err(err).Int("deleted", removed).Msg("Failed to purge expired cache entries")
		return err
	}

	if removed > 0 {
		j.log.Info().Int("deleted", removed).Msg("Cleaned up expired cache entries")
	}
	return nil
}

// Name returns the job name for scheduling and logging
func (j *CleanupJob) Name() string {
	return "response_cache_cleanup"
}
