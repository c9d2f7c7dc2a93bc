package qx

import (
	"context"
	"fmt"
	"net/url"
)

// RunExperiment submits a single QASM program as a job and returns the
// server-side job record. Shot counts above MaxShots are capped.
func (c *Client) RunExperiment(ctx context.Context, qasm, backend string, shots int) (*Job, error) {
	if qasm == "" {
		return nil, fmt.Errorf("qasm program is required")
	}
	if backend == "" {
		return nil, fmt.Errorf("backend name is required")
	}
	if shots <= 0 {
		shots = 1
	}
	if shots > MaxShots {
		c.log.Warn().Int("shots", shots).Int("max", MaxShots).Msg("Shot count capped at service maximum")
		shots = MaxShots
	}

	req := jobRequest{
		QASMs:   []JobQASM{{QASM: qasm}},
		Shots:   shots,
		Backend: jobBackendName{Name: backend},
	}

	var job Job
	if err := c.post(ctx, "/Jobs", req, &job); err != nil {
		return nil, fmt.Errorf("failed to submit job: %w", err)
	}
	if job.ID == "" {
		return nil, fmt.Errorf("job submission returned no job ID")
	}

	c.log.Info().Str("job_id", job.ID).Str("backend", backend).Int("shots", shots).Msg("Submitted job")
	return &job, nil
}

// Job fetches the current state of a previously submitted job.
func (c *Client) Job(ctx context.Context, id string) (*Job, error) {
	if id == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	var job Job
	if err := c.get(ctx, "/Jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, fmt.Errorf("failed to fetch job %s: %w", id, err)
	}
	return &job, nil
}
