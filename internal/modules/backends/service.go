// Package backends reports on the quantum backends of the remote service:
// live overviews of queue depth per operational device, snapshot history,
// calibration data and queue trend analysis.
package backends

import (
	"context"
	"fmt"

	"github.com/qulab/qulab/internal/clients/qx"
	"github.com/rs/zerolog"
)

// Service coordinates backend status fetching, snapshot persistence and
// calibration caching.
type Service struct {
	client   StatusClient
	history  *HistoryStore
	calCache *CalibrationCache
	log      zerolog.Logger
}

// NewService creates a backends service. history and calCache are optional;
// without them the service still serves live data.
func NewService(client StatusClient, history *HistoryStore, calCache *CalibrationCache, log zerolog.Logger) *Service {
	return &Service{
		client:   client,
		history:  history,
		calCache: calCache,
		log:      log.With().Str("service", "backends").Logger(),
	}
}

// All fetches every backend known to the service, operational or not,
// in API order.
func (s *Service) All(ctx context.Context) ([]qx.Backend, error) {
	return s.client.Backends(ctx)
}

// Overview builds the status report data: every operational backend with
// its qubit count and current queue depth, in the order the API lists
// them. The operation is all-or-nothing: if any queue lookup fails the
// whole overview fails.
func (s *Service) Overview(ctx context.Context) ([]Overview, error) {
	operational, err := s.client.OperationalBackends(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list operational backends: %w", err)
	}

	overviews := make([]Overview, 0, len(operational))
	for _, b := range operational {
		status, err := s.client.BackendStatus(ctx, b.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch queue status for %s: %w", b.Name, err)
		}

		overviews = append(overviews, Overview{
			Name:        b.Name,
			Qubits:      b.Qubits,
			PendingJobs: status.PendingJobs,
			Simulator:   b.Simulator,
			Description: b.Description,
		})
	}

	s.log.Debug().Int("backends", len(overviews)).Msg("Built backend overview")
	return overviews, nil
}

// Status fetches the live queue state of one backend.
func (s *Service) Status(ctx context.Context, name string) (*qx.QueueStatus, error) {
	return s.client.BackendStatus(ctx, name)
}

// Calibration returns calibration data for a backend, preferring a fresh
// cache entry over a round-trip. When the API fails and a stale entry
// exists, the stale entry is returned (stale data > no data).
func (s *Service) Calibration(ctx context.Context, name string) (*qx.Calibration, error) {
	if s.calCache != nil {
		if cal, ok := s.calCache.GetFresh(name); ok {
			s.log.Debug().Str("backend", name).Msg("Calibration cache hit")
			return cal, nil
		}
	}

	cal, err := s.client.BackendCalibration(ctx, name)
	if err != nil {
		if s.calCache != nil {
			if stale, ok := s.calCache.Get(name); ok {
				s.log.Warn().Err(err).Str("backend", name).Msg("Calibration fetch failed, using stale cache")
				return stale, nil
			}
		}
		return nil, err
	}

	if s.calCache != nil {
		if err := s.calCache.Put(name, cal); err != nil {
			s.log.Warn().Err(err).Str("backend", name).Msg("Failed to cache calibration")
		}
	}
	return cal, nil
}

// History returns the stored snapshots for one backend, newest first.
func (s *Service) History(ctx context.Context, name string, limit int) ([]Snapshot, error) {
	if s.history == nil {
		return nil, fmt.Errorf("snapshot history is not enabled")
	}
	return s.history.History(name, limit)
}

// RecordOverview persists one poll cycle's overviews as snapshots.
func (s *Service) RecordOverview(overviews []Overview) error {
	if s.history == nil {
		return nil
	}
	return s.history.RecordOverview(overviews)
}
