package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/qulab/qulab/internal/clients/qx"
	"github.com/qulab/qulab/internal/events"
	"github.com/qulab/qulab/internal/modules/backends"
	"github.com/rs/zerolog"
)

// statusSyncTimeout bounds one poll cycle across all backends
const statusSyncTimeout = 60 * time.Second

// StatusSyncJob polls the remote service for backend status and queue
// depth, persists a snapshot per operational backend, and announces
// state changes on the event bus.
type StatusSyncJob struct {
	log      zerolog.Logger
	backends *backends.Service
	history  *backends.HistoryStore
	bus      *events.Bus

	// Operational state seen on the previous run, for flip detection.
	// Empty until the first poll completes.
	lastOperational map[string]bool
}

// NewStatusSyncJob creates a new status sync job
func NewStatusSyncJob(
	backendsService *backends.Service,
	history *backends.HistoryStore,
	bus *events.Bus,
	log zerolog.Logger,
) *StatusSyncJob {
	return &StatusSyncJob{
		log:             log.With().Str("job", "status_sync").Logger(),
		backends:        backendsService,
		history:         history,
		bus:             bus,
		lastOperational: make(map[string]bool),
	}
}

// Name returns the job name
func (j *StatusSyncJob) Name() string {
	return "status_sync"
}

// Run executes one poll cycle
func (j *StatusSyncJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), statusSyncTimeout)
	defer cancel()

	j.log.Info().Msg("Starting status sync")
	start := time.Now()

	all, err := j.backends.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list backends: %w", err)
	}

	overviews, err := j.backends.Overview(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch overview: %w", err)
	}

	j.announceChanges(all, overviews)

	if err := j.backends.RecordOverview(overviews); err != nil {
		return fmt.Errorf("failed to record snapshots: %w", err)
	}

	elapsed := time.Since(start)
	if j.bus != nil {
		j.bus.Emit(events.SnapshotStored, "scheduler", &events.SnapshotStoredData{
			Backends:    len(all),
			Operational: len(overviews),
			ElapsedMs:   elapsed.Milliseconds(),
		})
	}

	j.log.Info().
		Int("backends", len(all)).
		Int("operational", len(overviews)).
		Dur("elapsed", elapsed).
		Msg("Status sync completed")

	return nil
}

// announceChanges emits one event per backend whose operational state
// flipped since the previous run or whose queue moved since the last
// stored snapshot. Must run before the new snapshots are recorded.
func (j *StatusSyncJob) announceChanges(all []qx.Backend, overviews []backends.Overview) {
	pending := make(map[string]int64, len(overviews))
	for _, o := range overviews {
		pending[o.Name] = o.PendingJobs
	}

	for _, b := range all {
		operational := b.Operational()
		prevOp, seen := j.lastOperational[b.Name]
		flipped := seen && prevOp != operational

		var queueMoved bool
		var prevPending int64
		if operational && j.history != nil {
			if latest, err := j.history.Latest(b.Name); err != nil {
				j.log.Warn().Err(err).Str("backend", b.Name).Msg("Failed to load last snapshot")
			} else if latest != nil {
				prevPending = latest.PendingJobs
				queueMoved = latest.PendingJobs != pending[b.Name]
			}
		}

		if (flipped || queueMoved) && j.bus != nil {
			j.bus.Emit(events.BackendStatusChanged, "scheduler", &events.BackendStatusChangedData{
				Backend:         b.Name,
				Operational:     operational,
				PendingJobs:     pending[b.Name],
				PreviousPending: prevPending,
			})
		}
		if flipped {
			j.log.Info().
				Str("backend", b.Name).
				Bool("operational", operational).
				Msg("Backend flipped operational state")
		}

		j.lastOperational[b.Name] = operational
	}
}
