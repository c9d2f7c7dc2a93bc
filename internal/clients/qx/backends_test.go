package qx

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBackendsPreservesOrder tests that backends come back in API order.
func TestBackendsPreservesOrder(t *testing.T) {
	srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Backends", r.URL.Path)
		json.NewEncoder(w).Encode([]Backend{
			{Name: "ibmqx5", Status: "on", Qubits: 16},
			{Name: "ibmqx4", Status: "on", Qubits: 5},
			{Name: "ibmqx2", Status: "off", Qubits: 5},
			{Name: "simulator", Status: "on", Qubits: 32, Simulator: true},
		})
	})

	client := newTestClient(srv)
	backends, err := client.Backends(context.Background())
	require.NoError(t, err)
	require.Len(t, backends, 4)

	names := []string{backends[0].Name, backends[1].Name, backends[2].Name, backends[3].Name}
	assert.Equal(t, []string{"ibmqx5", "ibmqx4", "ibmqx2", "simulator"}, names)
}

// TestOperationalBackends tests the online filter.
func TestOperationalBackends(t *testing.T) {
	srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Backend{
			{Name: "ibmqx5", Status: "on", Qubits: 16},
			{Name: "ibmqx2", Status: "off", Qubits: 5},
			{Name: "ibmqx4", Status: "maintenance", Qubits: 5},
			{Name: "simulator", Status: "on", Qubits: 32, Simulator: true},
		})
	})

	client := newTestClient(srv)
	backends, err := client.OperationalBackends(context.Background())
	require.NoError(t, err)
	require.Len(t, backends, 2)
	assert.Equal(t, "ibmqx5", backends[0].Name)
	assert.Equal(t, "simulator", backends[1].Name)
}

// TestBackendStatus tests queue status retrieval.
func TestBackendStatus(t *testing.T) {
	srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Backends/ibmqx4/queue/status", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"state":       true,
			"busy":        false,
			"lengthQueue": 12,
		})
	})

	client := newTestClient(srv)
	status, err := client.BackendStatus(context.Background(), "ibmqx4")
	require.NoError(t, err)
	assert.Equal(t, "ibmqx4", status.Backend)
	assert.True(t, status.State)
	assert.False(t, status.Busy)
	assert.Equal(t, int64(12), status.PendingJobs)
}

// TestBackendStatusRequiresName tests the empty-name validation.
func TestBackendStatusRequiresName(t *testing.T) {
	srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {})

	client := newTestClient(srv)
	_, err := client.BackendStatus(context.Background(), "")
	assert.Error(t, err)
}

// TestBackendCalibration tests calibration retrieval.
func TestBackendCalibration(t *testing.T) {
	srv := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Backends/ibmqx4/calibration", r.URL.Path)
		json.NewEncoder(w).Encode(Calibration{
			LastUpdateDate: "2017-06-12T08:33:00Z",
			Qubits: []QubitCalibration{
				{Name: "Q0", ReadoutError: GateError{Value: 0.051}, GateError: GateError{Value: 0.0013}},
				{Name: "Q1", ReadoutError: GateError{Value: 0.049}, GateError: GateError{Value: 0.0011}},
			},
			MultiQubitGates: []MultiQubitGate{
				{Name: "CX0_1", Type: "CX", Qubits: []int{0, 1}, GateError: GateError{Value: 0.023}},
			},
		})
	})

	client := newTestClient(srv)
	cal, err := client.BackendCalibration(context.Background(), "ibmqx4")
	require.NoError(t, err)
	assert.Equal(t, "2017-06-12T08:33:00Z", cal.LastUpdateDate)
	require.Len(t, cal.Qubits, 2)
	assert.InDelta(t, 0.051, cal.Qubits[0].ReadoutError.Value, 1e-9)
	require.Len(t, cal.MultiQubitGates, 1)
	assert.Equal(t, []int{0, 1}, cal.MultiQubitGates[0].Qubits)
}

// TestOperationalReportsWireStatus tests the operational predicate.
func TestOperationalReportsWireStatus(t *testing.T) {
	assert.True(t, Backend{Status: "on"}.Operational())
	assert.False(t, Backend{Status: "off"}.Operational())
	assert.False(t, Backend{Status: ""}.Operational())
	assert.False(t, Backend{Status: "maintenance"}.Operational())
}
