package qx

import (
	"context"
	"fmt"
	"net/url"
)

// Backends fetches every backend the service knows about, in the order
// the API returns them.
func (c *Client) Backends(ctx context.Context) ([]Backend, error) {
	var backends []Backend
	if err := c.get(ctx, "/Backends", nil, &backends); err != nil {
		return nil, fmt.Errorf("failed to fetch backends: %w", err)
	}

	c.log.Debug().Int("count", len(backends)).Msg("Fetched backends")
	return backends, nil
}

// OperationalBackends fetches all backends and keeps only the ones that
// are online. Relative order is preserved.
func (c *Client) OperationalBackends(ctx context.Context) ([]Backend, error) {
	backends, err := c.Backends(ctx)
	if err != nil {
		return nil, err
	}

	operational := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Operational() {
			operational = append(operational, b)
		}
	}
	return operational, nil
}

// BackendStatus fetches the live queue state of one backend.
func (c *Client) BackendStatus(ctx context.Context, name string) (*QueueStatus, error) {
	if name == "" {
		return nil, fmt.Errorf("backend name is required")
	}

	var status QueueStatus
	path := "/Backends/" + url.PathEscape(name) + "/queue/status"
	if err := c.get(ctx, path, nil, &status); err != nil {
		return nil, fmt.Errorf("failed to fetch queue status for %s: %w", name, err)
	}

	if status.Backend == "" {
		status.Backend = name
	}
	return &status, nil
}

// BackendCalibration fetches the most recent calibration data of one backend.
func (c *Client) BackendCalibration(ctx context.Context, name string) (*Calibration, error) {
	if name == "" {
		return nil, fmt.Errorf("backend name is required")
	}

	var cal Calibration
	path := "/Backends/" + url.PathEscape(name) + "/calibration"
	if err := c.get(ctx, path, nil, &cal); err != nil {
		return nil, fmt.Errorf("failed to fetch calibration for %s: %w", name, err)
	}
	return &cal, nil
}
