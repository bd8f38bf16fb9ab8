// Package reliability provides database backups to object storage and
// periodic SQLite maintenance.
package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/compass/internal/database"
	"github.com/rs/zerolog"
)

const (
	archivePrefix   = "compass-backup-"
	archiveSuffix   = ".tar.gz"
	archiveTimeFmt  = "2006-01-02-150405"
	metadataFile    = "backup-metadata.json"
	metadataVersion = "1"

	// MinBackupsToKeep survive rotation regardless of age
	MinBackupsToKeep = 3
)

// ObjectStore receives backup archives. clientdata.S3Store and
// clientdata.MemoryStore implement it.
type ObjectStore interface {
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// BackupMetadata is stored next to the database snapshots in every archive
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes one snapshot in an archive
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo is a backup archive found in the store
type BackupInfo struct {
	Timestamp time.Time `json:"timestamp"`
	Key       string    `json:"key"`
	AgeHours  int64     `json:"age_hours"`
}

// BackupService snapshots databases with VACUUM INTO and uploads them as a
// single tar.gz archive
type BackupService struct {
	databases  []*database.DB
	store      ObjectStore
	stagingDir string
	now        func() time.Time
	log        zerolog.Logger
}

// NewBackupService creates a backup service. Snapshots are staged under stagingDir.
func NewBackupService(store ObjectStore, stagingDir string, log zerolog.Logger, databases ...*database.DB) *BackupService {
	dbs := make([]*database.DB, 0, len(databases))
	for _, db := range databases {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return &BackupService{
		databases:  dbs,
		store:      store,
		stagingDir: stagingDir,
		now:        time.Now,
		log:        log.With().Str("service", "backup").Logger(),
	}
}

// CreateAndUpload snapshots every database and uploads the archive.
// Returns the object key.
func (s *BackupService) CreateAndUpload(ctx context.Context) (string, error) {
	s.log.Info().Int("databases", len(s.databases)).Msg("Starting backup")
	startTime := time.Now()

	if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	staging, err := os.MkdirTemp(s.stagingDir, "backup-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	now := s.now().UTC()
	metadata := BackupMetadata{
		Timestamp: now,
		Version:   metadataVersion,
		Databases: make([]DatabaseMetadata, 0, len(s.databases)),
	}

	for _, db := range s.databases {
		filename := db.Name() + ".db"
		path := filepath.Join(staging, filename)

		if err := snapshot(ctx, db, path); err != nil {
			return "", fmt.Errorf("failed to back up %s: %w", db.Name(), err)
		}

		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s snapshot: %w", db.Name(), err)
		}
		checksum, err := fileChecksum(path)
		if err != nil {
			return "", fmt.Errorf("failed to checksum %s snapshot: %w", db.Name(), err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      db.Name(),
			Filename:  filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	archive, err := buildArchive(staging, metadata)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	key := archivePrefix + now.Format(archiveTimeFmt) + archiveSuffix
	if err := s.store.Put(ctx, key, archive); err != nil {
		return "", fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("key", key).
		Int("size_bytes", len(archive)).
		Msg("Backup completed")

	return key, nil
}

// ListBackups returns stored archives, newest first
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	keys, err := s.store.Keys(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	now := s.now()
	backups := make([]BackupInfo, 0, len(keys))
	for _, key := range keys {
		ts, ok := parseArchiveKey(key)
		if !ok {
			s.log.Warn().Str("key", key).Msg("Ignoring object with unexpected backup name")
			continue
		}
		backups = append(backups, BackupInfo{
			Timestamp: ts,
			Key:       key,
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateOldBackups deletes archives older than retentionDays, always keeping
// the newest MinBackupsToKeep. A retention of 0 keeps everything.
// Returns the number deleted.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= MinBackupsToKeep {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, b := range backups[MinBackupsToKeep:] {
		if !b.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, b.Key); err != nil {
			s.log.Error().Err(err).Str("key", b.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")

	return deleted, nil
}

func parseArchiveKey(key string) (time.Time, bool) {
	name := key[strings.LastIndex(key, "/")+1:]
	if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix)
	ts, err := time.Parse(archiveTimeFmt, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// snapshot writes a consistent copy of db to path without WAL files
func snapshot(ctx context.Context, db *database.DB, path string) error {
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}
	return nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// buildArchive packs the metadata and every listed snapshot into a tar.gz
func buildArchive(dir string, metadata BackupMetadata) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	meta, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:    metadataFile,
		Size:    int64(len(meta)),
		Mode:    0644,
		ModTime: metadata.Timestamp,
	}); err != nil {
		return nil, err
	}
	if _, err := tw.Write(meta); err != nil {
		return nil, err
	}

	for _, db := range metadata.Databases {
		if err := addFile(tw, filepath.Join(dir, db.Filename), db.Filename); err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", db.Filename, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addFile(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:    name,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
