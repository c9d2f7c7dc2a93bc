package scheduler

import (
	"context"
	"time"

	"github.com/qulab/qulab/internal/reliability"
	"github.com/rs/zerolog"
)

// backupTimeout bounds one backup run, upload included
const backupTimeout = 10 * time.Minute

// BackupJob creates a backup archive and ships it to remote storage,
// then rotates archives past the retention count. Only registered when
// the S3 settings are configured.
type BackupJob struct {
	log     zerolog.Logger
	backups *reliability.BackupService
}

// NewBackupJob creates a new backup job
func NewBackupJob(backups *reliability.BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		log:     log.With().Str("job", "backup").Logger(),
		backups: backups,
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes one backup cycle. Rotation failures are logged but do not
// fail the run; the archive is already safe in remote storage.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	start := time.Now()

	if err := j.backups.CreateAndUploadBackup(ctx); err != nil {
		return err
	}

	if _, err := j.backups.RotateOldBackups(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	j.log.Info().Dur("elapsed", time.Since(start)).Msg("Backup cycle completed")
	return nil
}
