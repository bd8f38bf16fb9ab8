package scheduler

import (
	"github.com/aristath/compass/internal/database"
	"github.com/rs/zerolog"
)

// walFrameWarnThreshold is the WAL size, in frames, above which a
// truncating checkpoint is forced
const walFrameWarnThreshold = 1000

// CheckWALCheckpointsJob inspects WAL growth of each database and truncates
// WAL files that have grown large
type CheckWALCheckpointsJob struct {
	log       zerolog.Logger
	databases map[string]*database.DB
}

// NewCheckWALCheckpointsJob creates a job over the given databases. Nil entries are skipped.
func NewCheckWALCheckpointsJob(databases ...*database.DB) *CheckWALCheckpointsJob {
	m := make(map[string]*database.DB, len(databases))
	for _, db := range databases {
		if db != nil {
			m[db.Name()] = db
		}
	}
	return &CheckWALCheckpointsJob{
		log:       zerolog.Nop(),
		databases: m,
	}
}

// SetLogger sets the logger for the job
func (j *CheckWALCheckpointsJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.Name()).Logger()
}

// Name returns the job name
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run executes the check
func (j *CheckWALCheckpointsJob) Run() error {
	checkedCount := 0
	for name, db := range j.databases {
		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, frames, checkpointed int
		err := db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("database", name).
				Msg("Failed to check WAL checkpoint")
			continue
		}

		if frames > walFrameWarnThreshold {
			j.log.Warn().
				Str("database", name).
				Int("wal_frames", frames).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large, truncating")
			if err := db.WALCheckpoint("TRUNCATE"); err != nil {
				j.log.Warn().Err(err).Str("database", name).Msg("Truncating checkpoint failed")
			}
		} else {
			j.log.Debug().
				Str("database", name).
				Int("wal_frames", frames).
				Msg("WAL checkpoint status OK")
		}

		checkedCount++
	}

	j.log.Info().
		Int("checked", checkedCount).
		Msg("WAL checkpoint check completed")

	return nil
}
