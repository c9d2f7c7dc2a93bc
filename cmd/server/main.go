// Package main is the entry point for the qulab service. It wires the
// Quantum Experience client, the local databases, the module services,
// the scheduler and the HTTP API server, then runs until interrupted.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/qulab/qulab/internal/clients/qx"
	"github.com/qulab/qulab/internal/config"
	"github.com/qulab/qulab/internal/database"
	"github.com/qulab/qulab/internal/events"
	"github.com/qulab/qulab/internal/modules/backends"
	"github.com/qulab/qulab/internal/modules/charts"
	"github.com/qulab/qulab/internal/modules/demos"
	"github.com/qulab/qulab/internal/modules/jobs"
	"github.com/qulab/qulab/internal/reliability"
	"github.com/qulab/qulab/internal/scheduler"
	"github.com/qulab/qulab/internal/server"
	"github.com/qulab/qulab/internal/version"
	"github.com/qulab/qulab/pkg/logger"
)

func main() {
	// Load configuration first to get the log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("version", version.Version).Msg("Starting qulab")

	// Databases. The jobs database holds submission records, the cache
	// database holds ephemeral calibration data, and the history store
	// keeps backend status snapshots.
	jobsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "jobs.db"),
		Profile: database.ProfileStandard,
		Name:    "jobs",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open jobs database")
	}
	defer jobsDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	if err := jobsDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate jobs database")
	}
	if err := cacheDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate cache database")
	}

	history, err := backends.NewHistoryStore(filepath.Join(cfg.DataDir, "history.db"), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history store")
	}
	defer history.Close()

	// Quantum Experience API client
	client := qx.NewClient(cfg.QXToken, log,
		qx.WithBaseURL(cfg.QXURL),
		qx.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSecs) * time.Second}),
	)

	bus := events.NewBus(log)

	// Module services
	backendsService := backends.NewService(client, history, backends.NewCalibrationCache(cacheDB, log), log)
	demosService := demos.NewService(log)
	chartsService := charts.NewService(demosService, filepath.Join(cfg.DataDir, "figures"), log)
	jobsService := jobs.NewService(client, jobs.NewRepository(jobsDB, log), bus, log)
	jobsService.ListenStream(bus)

	// Job status stream. A failed initial connection retries in the
	// background, so startup continues either way.
	var stream *qx.JobStream
	if cfg.StreamEnabled {
		stream = qx.NewJobStream(qx.StreamURL(cfg.QXURL), cfg.QXToken, bus, log)
		if err := stream.Start(); err != nil {
			log.Warn().Err(err).Msg("Job stream not connected yet")
		}
	}

	// Backups are optional and need the full S3 configuration.
	var backups *reliability.BackupService
	if cfg.BackupEnabled() {
		store, err := reliability.NewS3Client(reliability.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, log)
		if err != nil {
			log.Warn().Err(err).Msg("Backups disabled: S3 client setup failed")
		} else {
			backups = reliability.NewBackupService(store, reliability.BackupConfig{
				DataDir:    cfg.DataDir,
				FiguresDir: filepath.Join(cfg.DataDir, "figures"),
				Sources: []reliability.Source{
					{Name: "jobs", BackupTo: jobsDB.BackupTo},
					{Name: "cache", BackupTo: cacheDB.BackupTo},
					{Name: "history", BackupTo: history.BackupTo},
				},
				Retention: cfg.BackupRetention,
				Bus:       bus,
			}, log)
		}
	}

	// Background jobs
	sched := scheduler.New(log)
	mustAdd := func(schedule string, job scheduler.Job) {
		if err := sched.AddJob(schedule, job); err != nil {
			log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to register job")
		}
	}
	mustAdd(cfg.PollSchedule, scheduler.NewStatusSyncJob(backendsService, history, bus, log))
	mustAdd("0 */2 * * * *", scheduler.NewJobRefreshJob(jobsService, log))
	mustAdd("0 0 * * * *", scheduler.NewMaintenanceJob(scheduler.MaintenanceConfig{
		Log:           log,
		JobsDB:        jobsDB,
		CacheDB:       cacheDB,
		History:       history,
		JobRepo:       jobs.NewRepository(jobsDB, log),
		RetentionDays: cfg.RetentionDays,
	}))
	if backups != nil {
		mustAdd("0 0 4 * * *", scheduler.NewBackupJob(backups, log))
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		JobsDB:    jobsDB,
		CacheDB:   cacheDB,
		Bus:       bus,
		Backends:  backendsService,
		Demos:     demosService,
		Charts:    chartsService,
		Jobs:      jobsService,
		Scheduler: sched,
		Stream:    stream,
		Backups:   backups,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	if stream != nil {
		if err := stream.Stop(); err != nil {
			log.Error().Err(err).Msg("Error stopping job stream")
		}
	}

	// Graceful shutdown with a hard deadline for in-flight requests
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
