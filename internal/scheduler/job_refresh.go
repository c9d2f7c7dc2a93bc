package scheduler

import (
	"context"
	"time"

	"github.com/qulab/qulab/internal/modules/jobs"
	"github.com/rs/zerolog"
)

// jobRefreshTimeout bounds one refresh cycle across all pending jobs
const jobRefreshTimeout = 120 * time.Second

// JobRefreshJob polls the remote service for every tracked job that has
// not reached a final state. The websocket stream covers the common case;
// this job catches updates missed while the stream was down.
type JobRefreshJob struct {
	log  zerolog.Logger
	jobs *jobs.Service
}

// NewJobRefreshJob creates a new job refresh job
func NewJobRefreshJob(jobsService *jobs.Service, log zerolog.Logger) *JobRefreshJob {
	return &JobRefreshJob{
		log:  log.With().Str("job", "job_refresh").Logger(),
		jobs: jobsService,
	}
}

// Name returns the job name
func (j *JobRefreshJob) Name() string {
	return "job_refresh"
}

// Run executes one refresh cycle
func (j *JobRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobRefreshTimeout)
	defer cancel()

	changed, err := j.jobs.RefreshPending(ctx)
	if err != nil {
		return err
	}

	j.log.Debug().Int("changed", changed).Msg("Job refresh completed")
	return nil
}
