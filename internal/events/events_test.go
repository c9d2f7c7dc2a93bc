package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDispatchesToSubscribers(t *testing.T) {
	bus := NewBus(zerolog.New(nil).Level(zerolog.Disabled))

	var received []Event
	bus.Subscribe(BackendStatusChanged, func(ev Event) {
		received = append(received, ev)
	})

	data := &BackendStatusChangedData{
		Backend:     "ibmq_lima",
		Operational: true,
		PendingJobs: 7,
	}
	bus.Emit(BackendStatusChanged, "backends", data)

	require.Len(t, received, 1)
	assert.Equal(t, BackendStatusChanged, received[0].Type)
	assert.Equal(t, "backends", received[0].Module)
	assert.False(t, received[0].Timestamp.IsZero())

	payload, ok := received[0].Data.(*BackendStatusChangedData)
	require.True(t, ok)
	assert.Equal(t, "ibmq_lima", payload.Backend)
	assert.Equal(t, int64(7), payload.PendingJobs)
}

func TestBusIgnoresUnsubscribedTypes(t *testing.T) {
	bus := NewBus(zerolog.New(nil).Level(zerolog.Disabled))

	called := false
	bus.Subscribe(BackupCompleted, func(Event) { called = true })

	bus.Emit(JobStatusChanged, "jobs", &JobStatusChangedData{Ref: "r1"})

	assert.False(t, called)
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := NewBus(zerolog.New(nil).Level(zerolog.Disabled))

	count := 0
	for i := 0; i < 3; i++ {
		bus.Subscribe(SnapshotStored, func(Event) { count++ })
	}

	bus.Emit(SnapshotStored, "scheduler", &SnapshotStoredData{Backends: 5})

	assert.Equal(t, 3, count)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.New(nil).Level(zerolog.Disabled))

	first, second := 0, 0
	off := bus.Subscribe(SnapshotStored, func(Event) { first++ })
	bus.Subscribe(SnapshotStored, func(Event) { second++ })

	bus.Emit(SnapshotStored, "scheduler", &SnapshotStoredData{Backends: 2})
	off()
	off() // second call is a no-op
	bus.Emit(SnapshotStored, "scheduler", &SnapshotStoredData{Backends: 2})

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestEventDataTypes(t *testing.T) {
	tests := []struct {
		name string
		data EventData
		want EventType
	}{
		{"Backend status", &BackendStatusChangedData{}, BackendStatusChanged},
		{"Snapshot stored", &SnapshotStoredData{}, SnapshotStored},
		{"Job status", &JobStatusChangedData{}, JobStatusChanged},
		{"Backup completed", &BackupCompletedData{}, BackupCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.data.EventType())
		})
	}
}
