package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Used to verify staged copies

	"github.com/qulab/qulab/internal/events"
	"github.com/qulab/qulab/internal/version"
)

const (
	archivePrefix     = "qulab-backup-"
	archiveTimeFormat = "2006-01-02-150405"
	metadataFilename  = "backup-metadata.json"
	metadataVersion   = "1.0.0"

	// Rotation never deletes below this many archives, whatever the
	// configured retention says.
	minBackupsToKeep = 3
)

// ErrBackupInProgress is returned when a backup is requested while a
// previous one is still running.
var ErrBackupInProgress = errors.New("a backup is already in progress")

// ObjectStore is the remote side of the backup service.
// Satisfied by *S3Client; tests substitute fakes.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// Source is one database that can write a consistent copy of itself.
// The copy lands in the archive as Name + ".db".
type Source struct {
	Name     string
	BackupTo func(path string) error
}

// BackupMetadata describes one backup archive. It travels inside the
// archive as backup-metadata.json.
type BackupMetadata struct {
	Timestamp    time.Time      `json:"timestamp"`
	Version      string         `json:"version"`
	QulabVersion string         `json:"qulab_version"`
	Databases    []FileMetadata `json:"databases"`
	Figures      []FileMetadata `json:"figures,omitempty"`
}

// FileMetadata describes a single file inside a backup archive.
type FileMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo summarizes one archive in remote storage.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// BackupConfig holds the wiring for a BackupService.
type BackupConfig struct {
	DataDir    string   // Staging directory parent
	FiguresDir string   // Rendered figures to include, may be empty
	Sources    []Source // Databases to snapshot
	Retention  int      // Remote archives to keep during rotation
	Bus        *events.Bus
}

// BackupService snapshots the local databases and rendered figures into
// a tar.gz archive and ships it to an object store.
type BackupService struct {
	store      ObjectStore
	sources    []Source
	dataDir    string
	figuresDir string
	retention  int
	bus        *events.Bus
	log        zerolog.Logger

	runMu sync.Mutex
}

// NewBackupService creates a backup service over the given store.
func NewBackupService(store ObjectStore, cfg BackupConfig, log zerolog.Logger) *BackupService {
	return &BackupService{
		store:      store,
		sources:    cfg.Sources,
		dataDir:    cfg.DataDir,
		figuresDir: cfg.FiguresDir,
		retention:  cfg.Retention,
		bus:        cfg.Bus,
		log:        log.With().Str("service", "backup").Logger(),
	}
}

// CreateAndUploadBackup snapshots every source, verifies the copies,
// bundles them with the rendered figures into a tar.gz archive, and
// uploads it. Only one backup runs at a time.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) error {
	if !s.runMu.TryLock() {
		return ErrBackupInProgress
	}
	defer s.runMu.Unlock()

	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	stagingDir := filepath.Join(s.dataDir, "backup-staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	metadata := BackupMetadata{
		Timestamp:    time.Now().UTC(),
		Version:      metadataVersion,
		QulabVersion: version.Version,
		Databases:    make([]FileMetadata, 0, len(s.sources)),
	}
	var entries []archiveEntry

	for _, source := range s.sources {
		filename := source.Name + ".db"
		stagedPath := filepath.Join(stagingDir, filename)

		s.log.Debug().Str("database", source.Name).Msg("Snapshotting database")

		if err := source.BackupTo(stagedPath); err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", source.Name, err)
		}

		if err := verifyStagedCopy(stagedPath); err != nil {
			return fmt.Errorf("staged copy of %s failed verification: %w", source.Name, err)
		}

		meta, err := describeFile(source.Name, filename, stagedPath)
		if err != nil {
			return err
		}
		metadata.Databases = append(metadata.Databases, meta)
		entries = append(entries, archiveEntry{path: stagedPath, name: filename})
	}

	figureEntries, figureMeta, err := s.stageFigures(stagingDir)
	if err != nil {
		return err
	}
	metadata.Figures = figureMeta
	entries = append(entries, figureEntries...)

	metadataPath := filepath.Join(stagingDir, metadataFilename)
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	entries = append(entries, archiveEntry{path: metadataPath, name: metadataFilename})

	archiveName := archivePrefix + time.Now().Format(archiveTimeFormat) + ".tar.gz"
	archivePath := filepath.Join(stagingDir, archiveName)
	if err := createArchive(archivePath, entries); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.store.Upload(ctx, archiveName, archiveFile, archiveInfo.Size()); err != nil {
		return fmt.Errorf("failed to upload archive: %w", err)
	}

	if s.bus != nil {
		s.bus.Emit(events.BackupCompleted, "reliability", &events.BackupCompletedData{
			Archive:   archiveName,
			SizeBytes: archiveInfo.Size(),
		})
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Int("databases", len(metadata.Databases)).
		Int("figures", len(metadata.Figures)).
		Msg("Backup completed successfully")

	return nil
}

// ListBackups lists the archives in remote storage, newest first.
// Objects whose names do not look like backup archives are skipped.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	now := time.Now()

	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		filename := *obj.Key
		if !strings.HasPrefix(filename, archivePrefix) || !strings.HasSuffix(filename, ".tar.gz") {
			continue
		}

		timestampStr := strings.TrimPrefix(filename, archivePrefix)
		timestampStr = strings.TrimSuffix(timestampStr, ".tar.gz")

		timestamp, err := time.Parse(archiveTimeFormat, timestampStr)
		if err != nil {
			s.log.Warn().Str("filename", filename).Msg("Failed to parse timestamp from filename")
			continue
		}

		var sizeBytes int64
		if obj.Size != nil {
			sizeBytes = *obj.Size
		}

		backups = append(backups, BackupInfo{
			Filename:  filename,
			Timestamp: timestamp,
			SizeBytes: sizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes archives beyond the configured retention
// count, always keeping at least minBackupsToKeep. Returns how many
// archives were deleted.
func (s *BackupService) RotateOldBackups(ctx context.Context) (int, error) {
	keep := s.retention
	if keep < minBackupsToKeep {
		keep = minBackupsToKeep
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}

	if len(backups) <= keep {
		s.log.Debug().
			Int("count", len(backups)).
			Int("keep", keep).
			Msg("No backups to rotate")
		return 0, nil
	}

	deleted := 0
	for _, backup := range backups[keep:] {
		if err := s.store.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().
				Err(err).
				Str("filename", backup.Filename).
				Msg("Failed to delete old backup")
			continue
		}

		s.log.Info().
			Str("filename", backup.Filename).
			Time("timestamp", backup.Timestamp).
			Msg("Deleted old backup")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")

	return deleted, nil
}

// stageFigures copies the rendered figures into the staging directory
// and returns their archive entries and metadata. A missing figures
// directory is not an error; there is simply nothing to include.
func (s *BackupService) stageFigures(stagingDir string) ([]archiveEntry, []FileMetadata, error) {
	if s.figuresDir == "" {
		return nil, nil, nil
	}

	dirEntries, err := os.ReadDir(s.figuresDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read figures directory: %w", err)
	}

	figuresStaging := filepath.Join(stagingDir, "figures")

	var entries []archiveEntry
	var meta []FileMetadata
	for _, entry := range dirEntries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".svg") {
			continue
		}

		if err := os.MkdirAll(figuresStaging, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create figures staging directory: %w", err)
		}

		stagedPath := filepath.Join(figuresStaging, entry.Name())
		if err := copyFile(filepath.Join(s.figuresDir, entry.Name()), stagedPath); err != nil {
			return nil, nil, fmt.Errorf("failed to stage figure %s: %w", entry.Name(), err)
		}

		fileMeta, err := describeFile(entry.Name(), "figures/"+entry.Name(), stagedPath)
		if err != nil {
			return nil, nil, err
		}
		meta = append(meta, fileMeta)
		entries = append(entries, archiveEntry{path: stagedPath, name: "figures/" + entry.Name()})
	}

	return entries, meta, nil
}

// verifyStagedCopy opens a staged database copy and runs an integrity
// check, catching corruption before it gets archived.
func verifyStagedCopy(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open staged copy: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check reported: %s", result)
	}

	return nil
}

// describeFile stats and checksums a staged file.
func describeFile(name, filename, path string) (FileMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileMetadata{}, fmt.Errorf("failed to stat %s: %w", filename, err)
	}

	checksum, err := fileChecksum(path)
	if err != nil {
		return FileMetadata{}, fmt.Errorf("failed to checksum %s: %w", filename, err)
	}

	return FileMetadata{
		Name:      name,
		Filename:  filename,
		SizeBytes: info.Size(),
		Checksum:  checksum,
	}, nil
}

// fileChecksum calculates the SHA256 checksum of a file.
func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// copyFile copies src to dst, replacing dst if it exists.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// writeMetadata writes backup metadata to a JSON file.
func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// archiveEntry maps a file on disk to its name inside the archive.
type archiveEntry struct {
	path string
	name string
}

// createArchive writes a tar.gz archive containing the given entries.
func createArchive(archivePath string, entries []archiveEntry) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, entry := range entries {
		if err := addFileToArchive(tarWriter, entry.path, entry.name); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", entry.name, err)
		}
	}

	return nil
}

// addFileToArchive adds a single file to a tar archive.
func addFileToArchive(tarWriter *tar.Writer, path, nameInArchive string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	if _, err := io.Copy(tarWriter, file); err != nil {
		return err
	}

	return nil
}
