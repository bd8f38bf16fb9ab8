// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/aristath/compass/internal/clientdata"
	"github.com/aristath/compass/internal/config"
	"github.com/aristath/compass/internal/reliability"
	"github.com/aristath/compass/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the scheduler and registers maintenance jobs.
// Returns JobInstances for manual triggering via API.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}
	if container.Cache == nil {
		return nil, fmt.Errorf("cache not initialized")
	}

	sched := scheduler.New(log)
	instances := &JobInstances{}

	// Job 1: expired commentary purge
	cleanup := clientdata.NewCleanupJob(container.Cache, log)
	if err := sched.AddJob(cfg.Jobs.CacheCleanupSchedule, cleanup); err != nil {
		return nil, fmt.Errorf("failed to register cache cleanup job: %w", err)
	}
	instances.CacheCleanup = cleanup

	// Job 2: WAL checkpoints for both databases
	wal := scheduler.NewCheckWALCheckpointsJob(container.AppDB, container.CacheDB)
	wal.SetLogger(log)
	if err := sched.AddJob(cfg.Jobs.MaintenanceSchedule, wal); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}
	instances.WALCheckpoint = wal

	// Job 3: VACUUM to reclaim space from purged cache rows
	vacuum := reliability.NewVacuumJob(log, container.AppDB, container.CacheDB)
	if err := sched.AddJob(cfg.Jobs.VacuumSchedule, vacuum); err != nil {
		return nil, fmt.Errorf("failed to register vacuum job: %w", err)
	}
	instances.Vacuum = vacuum

	// Job 4: database backups, only when a backup store is configured
	if container.BackupService != nil {
		backup := reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
		if err := sched.AddJob(cfg.Backup.Schedule, backup); err != nil {
			return nil, fmt.Errorf("failed to register backup job: %w", err)
		}
		instances.Backup = backup
	}

	container.Scheduler = sched
	container.Jobs = instances

	log.Info().Int("jobs", len(sched.Jobs())).Msg("Jobs registered")
	return instances, nil
}
