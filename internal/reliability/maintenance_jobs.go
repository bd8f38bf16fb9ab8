package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/compass/internal/database"
	"github.com/rs/zerolog"
)

// backupTimeout bounds one scheduled backup run
const backupTimeout = 10 * time.Minute

// BackupJob uploads a fresh backup and then rotates old ones
type BackupJob struct {
	service       *BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewBackupJob creates the scheduled backup job
func NewBackupJob(service *BackupService, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "database_backup").Logger(),
	}
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	if _, err := j.service.CreateAndUpload(ctx); err != nil {
		return err
	}

	// A failed rotation leaves extra archives behind; the backup itself succeeded.
	if _, err := j.service.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "database_backup"
}

// VacuumJob rebuilds databases to reclaim space left by deleted rows,
// mostly expired cache entries
type VacuumJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewVacuumJob creates the vacuum job. Nil databases are skipped.
func NewVacuumJob(log zerolog.Logger, databases ...*database.DB) *VacuumJob {
	dbs := make([]*database.DB, 0, len(databases))
	for _, db := range databases {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return &VacuumJob{
		databases: dbs,
		log:       log.With().Str("job", "database_vacuum").Logger(),
	}
}

// Run vacuums every database. One failure does not stop the others.
func (j *VacuumJob) Run() error {
	j.log.Info().Msg("Starting database vacuum")
	startTime := time.Now()

	var failed []string
	for _, db := range j.databases {
		if err := j.vacuum(db); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("VACUUM failed")
			failed = append(failed, db.Name())
		}
	}

	j.log.Info().Dur("duration_ms", time.Since(startTime)).Msg("Database vacuum completed")

	if len(failed) > 0 {
		return fmt.Errorf("vacuum failed for %v", failed)
	}
	return nil
}

// Name returns the job name for scheduler
func (j *VacuumJob) Name() string {
	return "database_vacuum"
}

func (j *VacuumJob) vacuum(db *database.DB) error {
	before, err := db.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	if _, err := db.Conn().Exec("VACUUM"); err != nil {
		return fmt.Errorf("VACUUM failed: %w", err)
	}

	after, err := db.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	sizeBefore := before.PageCount * before.PageSize
	sizeAfter := after.PageCount * after.PageSize
	j.log.Info().
		Str("database", db.Name()).
		Int64("size_before_bytes", sizeBefore).
		Int64("size_after_bytes", sizeAfter).
		Int64("reclaimed_bytes", sizeBefore-sizeAfter).
		Msg("VACUUM completed")
	return nil
}
