package scheduler

import (
	"fmt"
	"time"

	"github.com/qulab/qulab/internal/database"
	"github.com/qulab/qulab/internal/modules/backends"
	"github.com/qulab/qulab/internal/modules/jobs"
	"github.com/rs/zerolog"
)

// DefaultMaxJobRecords caps the jobs table; the oldest records beyond it
// are deleted by maintenance.
const DefaultMaxJobRecords = 1000

// MaintenanceJob keeps the databases bounded: it checkpoints WAL files,
// prunes snapshots past the retention window and caps the job records.
type MaintenanceJob struct {
	log           zerolog.Logger
	jobsDB        *database.DB
	cacheDB       *database.DB
	history       *backends.HistoryStore
	jobRepo       *jobs.Repository
	retentionDays int
	maxJobRecords int
}

// MaintenanceConfig holds configuration for the maintenance job
type MaintenanceConfig struct {
	Log           zerolog.Logger
	JobsDB        *database.DB
	CacheDB       *database.DB
	History       *backends.HistoryStore
	JobRepo       *jobs.Repository
	RetentionDays int
	MaxJobRecords int
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(cfg MaintenanceConfig) *MaintenanceJob {
	maxRecords := cfg.MaxJobRecords
	if maxRecords <= 0 {
		maxRecords = DefaultMaxJobRecords
	}
	return &MaintenanceJob{
		log:           cfg.Log.With().Str("job", "maintenance").Logger(),
		jobsDB:        cfg.JobsDB,
		cacheDB:       cfg.CacheDB,
		history:       cfg.History,
		jobRepo:       cfg.JobRepo,
		retentionDays: cfg.RetentionDays,
		maxJobRecords: maxRecords,
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes one maintenance pass. Checkpoint failures are logged and
// skipped; pruning failures fail the run.
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting maintenance")
	start := time.Now()

	j.checkpointDatabases()

	var pruned, capped int64
	if j.history != nil && j.retentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -j.retentionDays)
		n, err := j.history.PruneBefore(cutoff)
		if err != nil {
			return fmt.Errorf("snapshot prune failed: %w", err)
		}
		pruned = n
	}

	if j.jobRepo != nil {
		n, err := j.jobRepo.Cap(j.maxJobRecords)
		if err != nil {
			return fmt.Errorf("job record cap failed: %w", err)
		}
		capped = n
	}

	j.log.Info().
		Int64("snapshots_pruned", pruned).
		Int64("job_records_deleted", capped).
		Dur("elapsed", time.Since(start)).
		Msg("Maintenance completed")

	return nil
}

// checkpointDatabases runs a WAL checkpoint on each managed database.
// Non-critical; a busy database just picks it up next cycle.
func (j *MaintenanceJob) checkpointDatabases() {
	databases := map[string]*database.DB{
		"jobs":  j.jobsDB,
		"cache": j.cacheDB,
	}

	for name, db := range databases {
		if db == nil {
			continue
		}
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
		}
	}
}
