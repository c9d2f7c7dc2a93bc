// Package jobs submits experiments to the remote service and tracks them
// locally. Every submission gets a local reference that stays valid even
// when the remote side is unreachable; remote job IDs and statuses are
// filled in as they arrive, either by polling or over the job stream.
package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qulab/qulab/internal/clients/qx"
	"github.com/qulab/qulab/internal/events"
	"github.com/qulab/qulab/internal/simulator"
	"github.com/rs/zerolog"
)

// SubmitClient is the remote surface the service needs.
// Satisfied by *qx.Client; tests substitute fakes.
type SubmitClient interface {
	RunExperiment(ctx context.Context, qasm, backend string, shots int) (*qx.Job, error)
	Job(ctx context.Context, id string) (*qx.Job, error)
}

// DefaultShots is used when a submission does not specify a shot count.
const DefaultShots = 1024

// Service coordinates submissions, local records and status updates.
type Service struct {
	client SubmitClient
	repo   *Repository
	bus    *events.Bus
	log    zerolog.Logger
}

// NewService creates a jobs service. The bus may be nil; status changes
// are then not announced.
func NewService(client SubmitClient, repo *Repository, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		client: client,
		repo:   repo,
		bus:    bus,
		log:    log.With().Str("service", "jobs").Logger(),
	}
}

// Submit sends a QASM program to the given backend and returns the local
// record. The record is persisted before the remote call, so a failed
// submission still leaves an ERROR_CREATING_JOB record behind.
func (s *Service) Submit(ctx context.Context, qasm, backend string, shots int) (*Record, error) {
	if qasm == "" {
		return nil, fmt.Errorf("qasm program is required")
	}
	if backend == "" {
		return nil, fmt.Errorf("backend name is required")
	}
	if shots <= 0 {
		shots = DefaultShots
	}

	rec := Record{
		Ref:     uuid.New().String(),
		Backend: backend,
		QASM:    qasm,
		Shots:   shots,
		Status:  StatusCreating,
	}
	if err := s.repo.Create(rec); err != nil {
		return nil, err
	}

	job, err := s.client.RunExperiment(ctx, qasm, backend, shots)
	if err != nil {
		if updateErr := s.repo.UpdateStatus(rec.Ref, StatusSubmitFailed); updateErr != nil {
			s.log.Error().Err(updateErr).Str("ref", rec.Ref).Msg("Failed to mark submission failure")
		}
		return nil, fmt.Errorf("failed to submit job %s: %w", rec.Ref, err)
	}

	status := job.Status
	if status == "" {
		status = qx.JobStatusRunning
	}
	if err := s.repo.SetSubmitted(rec.Ref, job.ID, status); err != nil {
		return nil, err
	}

	s.emitStatus(rec.Ref, job.ID, backend, status)
	return s.repo.Get(rec.Ref)
}

// SubmitEcho submits the two-gate echo circuit, the same circuit the
// local demonstrations run, to a real backend.
func (s *Service) SubmitEcho(ctx context.Context, backend string, shots int) (*Record, error) {
	qasm, err := simulator.QASM(simulator.EchoCircuit())
	if err != nil {
		return nil, fmt.Errorf("failed to build echo circuit: %w", err)
	}
	return s.Submit(ctx, qasm, backend, shots)
}

// Get returns the local record for a reference, or nil when none exists.
func (s *Service) Get(ref string) (*Record, error) {
	return s.repo.Get(ref)
}

// List returns tracked records, most recent first.
func (s *Service) List(limit int) ([]Record, error) {
	return s.repo.List(limit)
}

// Refresh polls the remote service for a record's current state and
// persists any change. Completed jobs also pick up their measurement
// counts. Returns the refreshed record.
func (s *Service) Refresh(ctx context.Context, ref string) (*Record, error) {
	rec, err := s.repo.Get(ref)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if rec.RemoteID == "" {
		return rec, nil
	}

	job, err := s.client.Job(ctx, rec.RemoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh job %s: %w", ref, err)
	}

	counts := extractCounts(job)
	changed := job.Status != rec.Status || (counts != nil && rec.Counts == nil)
	if !changed {
		return rec, nil
	}

	if counts != nil {
		err = s.repo.UpdateResult(ref, job.Status, counts)
	} else {
		err = s.repo.UpdateStatus(ref, job.Status)
	}
	if err != nil {
		return nil, err
	}

	if job.Status != rec.Status {
		s.emitStatus(ref, rec.RemoteID, rec.Backend, job.Status)
	}
	return s.repo.Get(ref)
}

// RefreshPending polls every record that still wants a remote update.
// Errors on individual jobs are logged and skipped so one bad job does
// not starve the rest. Returns how many records changed.
func (s *Service) RefreshPending(ctx context.Context) (int, error) {
	pending, err := s.repo.ListNeedingRefresh(0)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, rec := range pending {
		before := rec.Status
		after, err := s.Refresh(ctx, rec.Ref)
		if err != nil {
			s.log.Warn().Err(err).Str("ref", rec.Ref).Msg("Failed to refresh job")
			continue
		}
		if after.Status != before || (after.Counts != nil && rec.Counts == nil) {
			changed++
		}
	}

	if changed > 0 {
		s.log.Info().Int("changed", changed).Int("polled", len(pending)).Msg("Refreshed pending jobs")
	}
	return changed, nil
}

// ListenStream subscribes the service to job status updates arriving over
// the websocket stream. Stream frames carry only the remote ID, so each
// update is resolved to its local record here.
func (s *Service) ListenStream(bus *events.Bus) {
	bus.Subscribe(events.JobStatusChanged, func(ev events.Event) {
		if ev.Module != "job_stream" {
			return
		}
		data, ok := ev.Data.(*events.JobStatusChangedData)
		if !ok || data.RemoteID == "" {
			return
		}

		rec, err := s.repo.GetByRemoteID(data.RemoteID)
		if err != nil {
			s.log.Error().Err(err).Str("remote_id", data.RemoteID).Msg("Failed to resolve stream update")
			return
		}
		if rec == nil {
			s.log.Debug().Str("remote_id", data.RemoteID).Msg("Stream update for unknown job")
			return
		}
		if rec.Status == data.Status {
			return
		}

		if err := s.repo.UpdateStatus(rec.Ref, data.Status); err != nil {
			s.log.Error().Err(err).Str("ref", rec.Ref).Msg("Failed to apply stream update")
			return
		}

		s.log.Info().
			Str("ref", rec.Ref).
			Str("status", data.Status).
			Msg("Job status updated from stream")
	})
}

// emitStatus announces a status change on the bus, when one is attached
func (s *Service) emitStatus(ref, remoteID, backend, status string) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(events.JobStatusChanged, "jobs", &events.JobStatusChangedData{
		Ref:      ref,
		RemoteID: remoteID,
		Backend:  backend,
		Status:   status,
	})
}

// extractCounts pulls the first experiment's measurement histogram out of
// a remote job, or nil when no result has landed yet.
func extractCounts(job *qx.Job) map[string]int64 {
	for _, q := range job.QASMs {
		if q.Result != nil && len(q.Result.Data.Counts) > 0 {
			return q.Result.Data.Counts
		}
	}
	return nil
}
