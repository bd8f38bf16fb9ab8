package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/compass/internal/clientdata"
	testhelpers "github.com/aristath/compass/internal/testing"
)

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := map[string][]byte{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = body
	}
	return files
}

func TestBackupService_CreateAndUpload(t *testing.T) {
	appDB, cleanupApp := testhelpers.NewTestDB(t, "app")
	defer cleanupApp()
	cacheDB, cleanupCache := testhelpers.NewTestDB(t, "cache")
	defer cleanupCache()

	testhelpers.InsertUser(t, appDB, "ada@example.com")

	store := clientdata.NewMemoryStore()
	svc := NewBackupService(store, t.TempDir(), zerolog.Nop(), appDB, nil, cacheDB)
	svc.now = func() time.Time { return time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC) }

	key, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "compass-backup-2026-10-17-030000.tar.gz", key)

	data, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	files := readArchive(t, data)

	require.Contains(t, files, metadataFile)
	var meta BackupMetadata
	require.NoError(t, json.Unmarshal(files[metadataFile], &meta))
	require.Len(t, meta.Databases, 2)
	assert.Equal(t, "app", meta.Databases[0].Name)
	assert.Contains(t, meta.Databases[0].Checksum, "sha256:")

	// The snapshot is a working database holding the inserted user
	snapshotPath := filepath.Join(t.TempDir(), "app.db")
	require.NoError(t, os.WriteFile(snapshotPath, files["app.db"], 0644))
	conn, err := sql.Open("sqlite", snapshotPath)
	require.NoError(t, err)
	defer conn.Close()

	var integrity string
	require.NoError(t, conn.QueryRow("PRAGMA integrity_check").Scan(&integrity))
	assert.Equal(t, "ok", integrity)

	var users int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM users").Scan(&users))
	assert.Equal(t, 1, users)
}

func TestBackupService_RotateOldBackups(t *testing.T) {
	now := time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC)
	store := clientdata.NewMemoryStore()
	ctx := context.Background()

	for _, daysAgo := range []int{0, 1, 2, 10, 20, 40} {
		ts := now.AddDate(0, 0, -daysAgo)
		require.NoError(t, store.Put(ctx, archivePrefix+ts.Format(archiveTimeFmt)+archiveSuffix, []byte("x")))
	}
	require.NoError(t, store.Put(ctx, archivePrefix+"garbage.tar.gz", []byte("x")))

	svc := NewBackupService(store, t.TempDir(), zerolog.Nop())
	svc.now = func() time.Time { return now }

	deleted, err := svc.RotateOldBackups(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	backups, err := svc.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, now, backups[0].Timestamp)
	assert.Equal(t, int64(48), backups[2].AgeHours)
}

func TestBackupService_RotateKeepsMinimum(t *testing.T) {
	now := time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC)
	store := clientdata.NewMemoryStore()
	ctx := context.Background()

	for _, daysAgo := range []int{30, 60, 90} {
		ts := now.AddDate(0, 0, -daysAgo)
		require.NoError(t, store.Put(ctx, archivePrefix+ts.Format(archiveTimeFmt)+archiveSuffix, []byte("x")))
	}

	svc := NewBackupService(store, t.TempDir(), zerolog.Nop())
	svc.now = func() time.Time { return now }

	deleted, err := svc.RotateOldBackups(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = svc.RotateOldBackups(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestBackupJob_Run(t *testing.T) {
	appDB, cleanup := testhelpers.NewTestDB(t, "app")
	defer cleanup()

	store := clientdata.NewMemoryStore()
	job := NewBackupJob(NewBackupService(store, t.TempDir(), zerolog.Nop(), appDB), 30, zerolog.Nop())
	assert.Equal(t, "database_backup", job.Name())

	require.NoError(t, job.Run())
	assert.Equal(t, 1, store.Len())
}

func TestVacuumJob_Run(t *testing.T) {
	cacheDB, cleanup := testhelpers.NewTestDB(t, "cache")
	defer cleanup()

	job := NewVacuumJob(zerolog.Nop(), cacheDB, nil)
	assert.Equal(t, "database_vacuum", job.Name())
	assert.NoError(t, job.Run())
}
