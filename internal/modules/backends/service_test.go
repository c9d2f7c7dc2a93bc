package backends

import (
	"context"
	"errors"
	"testing"

	"github.com/qulab/qulab/internal/clients/qx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient implements StatusClient for tests.
type fakeClient struct {
	backends     []qx.Backend
	statuses     map[string]*qx.QueueStatus
	calibrations map[string]*qx.Calibration

	backendsErr    error
	statusErr      map[string]error
	calibrationErr error

	statusCalls []string
}

func (f *fakeClient) Backends(ctx context.Context) ([]qx.Backend, error) {
	if f.backendsErr != nil {
		return nil, f.backendsErr
	}
	return f.backends, nil
}

func (f *fakeClient) OperationalBackends(ctx context.Context) ([]qx.Backend, error) {
	all, err := f.Backends(ctx)
	if err != nil {
		return nil, err
	}
	var operational []qx.Backend
	for _, b := range all {
		if b.Operational() {
			operational = append(operational, b)
		}
	}
	return operational, nil
}

func (f *fakeClient) BackendStatus(ctx context.Context, name string) (*qx.QueueStatus, error) {
	f.statusCalls = append(f.statusCalls, name)
	if err, ok := f.statusErr[name]; ok {
		return nil, err
	}
	status, ok := f.statuses[name]
	if !ok {
		return nil, errors.New("unknown backend")
	}
	return status, nil
}

func (f *fakeClient) BackendCalibration(ctx context.Context, name string) (*qx.Calibration, error) {
	if f.calibrationErr != nil {
		return nil, f.calibrationErr
	}
	cal, ok := f.calibrations[name]
	if !ok {
		return nil, errors.New("unknown backend")
	}
	return cal, nil
}

// TestOverviewOrderAndContent tests that the overview follows API order
// and joins queue depth onto each backend.
func TestOverviewOrderAndContent(t *testing.T) {
	client := &fakeClient{
		backends: []qx.Backend{
			{Name: "ibmqx5", Status: "on", Qubits: 16},
			{Name: "ibmqx2", Status: "off", Qubits: 5},
			{Name: "ibmqx4", Status: "on", Qubits: 5},
			{Name: "simulator", Status: "on", Qubits: 32, Simulator: true},
		},
		statuses: map[string]*qx.QueueStatus{
			"ibmqx5":    {PendingJobs: 27},
			"ibmqx4":    {PendingJobs: 3},
			"simulator": {PendingJobs: 0},
		},
	}

	service := NewService(client, nil, nil, zerolog.Nop())
	overview, err := service.Overview(context.Background())
	require.NoError(t, err)
	require.Len(t, overview, 3)

	assert.Equal(t, "ibmqx5", overview[0].Name)
	assert.Equal(t, int64(16), overview[0].Qubits)
	assert.Equal(t, int64(27), overview[0].PendingJobs)

	assert.Equal(t, "ibmqx4", overview[1].Name)
	assert.Equal(t, "simulator", overview[2].Name)
	assert.True(t, overview[2].Simulator)

	// Offline backends never get a queue lookup.
	assert.NotContains(t, client.statusCalls, "ibmqx2")
}

// TestOverviewAllOrNothing tests that one failed queue lookup fails the
// entire overview.
func TestOverviewAllOrNothing(t *testing.T) {
	client := &fakeClient{
		backends: []qx.Backend{
			{Name: "ibmqx5", Status: "on", Qubits: 16},
			{Name: "ibmqx4", Status: "on", Qubits: 5},
		},
		statuses: map[string]*qx.QueueStatus{
			"ibmqx5": {PendingJobs: 1},
		},
		statusErr: map[string]error{
			"ibmqx4": errors.New("queue endpoint down"),
		},
	}

	service := NewService(client, nil, nil, zerolog.Nop())
	overview, err := service.Overview(context.Background())
	require.Error(t, err)
	assert.Nil(t, overview)
	assert.Contains(t, err.Error(), "ibmqx4")
}

// TestOverviewListFailure tests that a failed backend listing is fatal.
func TestOverviewListFailure(t *testing.T) {
	client := &fakeClient{backendsErr: errors.New("network down")}

	service := NewService(client, nil, nil, zerolog.Nop())
	_, err := service.Overview(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")
}

// TestOverviewEmpty tests the no-operational-backends case.
func TestOverviewEmpty(t *testing.T) {
	client := &fakeClient{
		backends: []qx.Backend{{Name: "ibmqx2", Status: "off", Qubits: 5}},
	}

	service := NewService(client, nil, nil, zerolog.Nop())
	overview, err := service.Overview(context.Background())
	require.NoError(t, err)
	assert.Empty(t, overview)
}

// TestCalibrationWithoutCache tests pass-through calibration fetching.
func TestCalibrationWithoutCache(t *testing.T) {
	client := &fakeClient{
		calibrations: map[string]*qx.Calibration{
			"ibmqx4": {LastUpdateDate: "2017-06-12T08:33:00Z"},
		},
	}

	service := NewService(client, nil, nil, zerolog.Nop())
	cal, err := service.Calibration(context.Background(), "ibmqx4")
	require.NoError(t, err)
	assert.Equal(t, "2017-06-12T08:33:00Z", cal.LastUpdateDate)

	_, err = service.Calibration(context.Background(), "missing")
	assert.Error(t, err)
}
