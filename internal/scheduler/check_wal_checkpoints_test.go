package scheduler

import (
	"testing"

	testhelpers "github.com/aristath/compass/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckWALCheckpointsJob_Name(t *testing.T) {
	job := NewCheckWALCheckpointsJob()
	assert.Equal(t, "check_wal_checkpoints", job.Name())
}

func TestCheckWALCheckpointsJob_Run_NoDatabases(t *testing.T) {
	job := NewCheckWALCheckpointsJob(nil, nil)
	job.SetLogger(zerolog.Nop())

	assert.NoError(t, job.Run())
}

func TestCheckWALCheckpointsJob_Run(t *testing.T) {
	appDB, cleanupApp := testhelpers.NewTestDB(t, "app")
	defer cleanupApp()
	cacheDB, cleanupCache := testhelpers.NewTestDB(t, "cache")
	defer cleanupCache()

	job := NewCheckWALCheckpointsJob(appDB, cacheDB)
	job.SetLogger(zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Len(t, job.databases, 2)
}
