package reliability

import (
	"archive/tar"
	"bytes"
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
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qulab/qulab/internal/database"
	"github.com/qulab/qulab/internal/events"
)

type fakeStore struct {
	uploads   map[string][]byte
	objects   []types.Object
	deleted   []string
	uploadErr error
	listErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: make(map[string][]byte)}
}

func (f *fakeStore) Upload(_ context.Context, key string, body io.Reader, _ int64) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.uploads[key] = data
	return nil
}

func (f *fakeStore) List(_ context.Context, _ string) ([]types.Object, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.objects, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func remoteObject(key string, size int64) types.Object {
	return types.Object{Key: aws.String(key), Size: aws.Int64(size)}
}

func nopLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

// newTestService builds a backup service over a real jobs database with
// one record and a figures directory with one rendered figure.
func newTestService(t *testing.T, store ObjectStore, retention int) (*BackupService, *events.Bus) {
	t.Helper()

	dataDir := t.TempDir()

	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "jobs.db"),
		Profile: database.ProfileStandard,
		Name:    "jobs",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(
		`INSERT INTO jobs (ref, backend, qasm, shots, status, created_at, updated_at)
		 VALUES ('ref-1', 'ibmqx4', 'OPENQASM 2.0;', 1024, 'RUNNING', 1000, 1000)`,
	)
	require.NoError(t, err)

	figuresDir := filepath.Join(dataDir, "figures")
	require.NoError(t, os.MkdirAll(figuresDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(figuresDir, "thermal.svg"), []byte("<svg>curves</svg>"), 0644))

	bus := events.NewBus(nopLogger())

	service := NewBackupService(store, BackupConfig{
		DataDir:    dataDir,
		FiguresDir: figuresDir,
		Sources:    []Source{{Name: "jobs", BackupTo: db.BackupTo}},
		Retention:  retention,
		Bus:        bus,
	}, nopLogger())

	return service, bus
}

// extractArchive unpacks a tar.gz archive into a name -> content map.
func extractArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()

	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer gz.Close()

	files := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)

		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[header.Name] = content
	}

	return files
}

func TestCreateAndUploadBackup(t *testing.T) {
	store := newFakeStore()
	service, bus := newTestService(t, store, 3)

	var captured []events.Event
	bus.Subscribe(events.BackupCompleted, func(ev events.Event) {
		captured = append(captured, ev)
	})

	require.NoError(t, service.CreateAndUploadBackup(context.Background()))

	require.Len(t, store.uploads, 1)
	var archiveName string
	for key := range store.uploads {
		archiveName = key
	}
	assert.True(t, len(archiveName) > len(archivePrefix))
	assert.Contains(t, archiveName, archivePrefix)
	assert.Contains(t, archiveName, ".tar.gz")

	files := extractArchive(t, store.uploads[archiveName])
	require.Contains(t, files, "jobs.db")
	require.Contains(t, files, metadataFilename)
	require.Contains(t, files, "figures/thermal.svg")

	assert.Equal(t, []byte("<svg>curves</svg>"), files["figures/thermal.svg"])

	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(files[metadataFilename], &metadata))
	assert.Equal(t, metadataVersion, metadata.Version)
	assert.False(t, metadata.Timestamp.IsZero())

	require.Len(t, metadata.Databases, 1)
	assert.Equal(t, "jobs", metadata.Databases[0].Name)
	assert.Equal(t, "jobs.db", metadata.Databases[0].Filename)
	assert.Equal(t, int64(len(files["jobs.db"])), metadata.Databases[0].SizeBytes)
	wantChecksum := fmt.Sprintf("sha256:%x", sha256.Sum256(files["jobs.db"]))
	assert.Equal(t, wantChecksum, metadata.Databases[0].Checksum)

	require.Len(t, metadata.Figures, 1)
	assert.Equal(t, "figures/thermal.svg", metadata.Figures[0].Filename)
	assert.Equal(t, int64(len("<svg>curves</svg>")), metadata.Figures[0].SizeBytes)

	require.Len(t, captured, 1)
	data, ok := captured[0].Data.(*events.BackupCompletedData)
	require.True(t, ok)
	assert.Equal(t, archiveName, data.Archive)
	assert.Equal(t, int64(len(store.uploads[archiveName])), data.SizeBytes)
	assert.Equal(t, "reliability", captured[0].Module)
}

func TestBackupCopyIsUsableDatabase(t *testing.T) {
	store := newFakeStore()
	service, _ := newTestService(t, store, 3)

	require.NoError(t, service.CreateAndUploadBackup(context.Background()))

	require.Len(t, store.uploads, 1)
	var files map[string][]byte
	for _, data := range store.uploads {
		files = extractArchive(t, data)
	}

	restored := filepath.Join(t.TempDir(), "restored.db")
	require.NoError(t, os.WriteFile(restored, files["jobs.db"], 0644))

	db, err := sql.Open("sqlite", restored)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM jobs").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestCreateAndUploadBackupSnapshotFailure(t *testing.T) {
	store := newFakeStore()
	service, _ := newTestService(t, store, 3)
	service.sources = append(service.sources, Source{
		Name:     "broken",
		BackupTo: func(string) error { return errors.New("disk gone") },
	})

	err := service.CreateAndUploadBackup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to snapshot broken")
	assert.Empty(t, store.uploads)
}

func TestCreateAndUploadBackupRejectsConcurrentRun(t *testing.T) {
	store := newFakeStore()
	service, _ := newTestService(t, store, 3)

	service.runMu.Lock()
	err := service.CreateAndUploadBackup(context.Background())
	service.runMu.Unlock()

	assert.ErrorIs(t, err, ErrBackupInProgress)
	assert.Empty(t, store.uploads)
}

func TestListBackups(t *testing.T) {
	store := newFakeStore()
	store.objects = []types.Object{
		remoteObject("qulab-backup-2026-08-18-020000.tar.gz", 100),
		remoteObject("qulab-backup-2026-08-20-020000.tar.gz", 300),
		remoteObject("qulab-backup-not-a-timestamp.tar.gz", 10),
		remoteObject("unrelated.txt", 5),
		{Key: nil},
	}
	service, _ := newTestService(t, store, 3)

	backups, err := service.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 2)

	// Newest first
	assert.Equal(t, "qulab-backup-2026-08-20-020000.tar.gz", backups[0].Filename)
	assert.Equal(t, int64(300), backups[0].SizeBytes)
	assert.Equal(t, "qulab-backup-2026-08-18-020000.tar.gz", backups[1].Filename)
	assert.GreaterOrEqual(t, backups[0].AgeHours, int64(0))
}

func TestRotateOldBackups(t *testing.T) {
	store := newFakeStore()
	store.objects = []types.Object{
		remoteObject("qulab-backup-2026-08-16-020000.tar.gz", 1),
		remoteObject("qulab-backup-2026-08-17-020000.tar.gz", 1),
		remoteObject("qulab-backup-2026-08-18-020000.tar.gz", 1),
		remoteObject("qulab-backup-2026-08-19-020000.tar.gz", 1),
		remoteObject("qulab-backup-2026-08-20-020000.tar.gz", 1),
	}
	service, _ := newTestService(t, store, 3)

	deleted, err := service.RotateOldBackups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.ElementsMatch(t, []string{
		"qulab-backup-2026-08-16-020000.tar.gz",
		"qulab-backup-2026-08-17-020000.tar.gz",
	}, store.deleted)
}

func TestRotateKeepsMinimumBackups(t *testing.T) {
	store := newFakeStore()
	store.objects = []types.Object{
		remoteObject("qulab-backup-2026-08-17-020000.tar.gz", 1),
		remoteObject("qulab-backup-2026-08-18-020000.tar.gz", 1),
		remoteObject("qulab-backup-2026-08-19-020000.tar.gz", 1),
		remoteObject("qulab-backup-2026-08-20-020000.tar.gz", 1),
	}
	// Retention below the floor still keeps three archives.
	service, _ := newTestService(t, store, 1)

	deleted, err := service.RotateOldBackups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, []string{"qulab-backup-2026-08-17-020000.tar.gz"}, store.deleted)
}

func TestFileChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	checksum, err := fileChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", checksum)
}

func TestVerifyStagedCopyRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0644))

	assert.Error(t, verifyStagedCopy(path))
}
