package backends

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSeries(t *testing.T, store *HistoryStore, backend string, series []int64) {
	t.Helper()
	for _, pending := range series {
		require.NoError(t, store.RecordOverview([]Overview{
			{Name: backend, Qubits: 16, PendingJobs: pending},
		}))
	}
}

// TestQueueTrendRising tests trend computation on a growing queue.
func TestQueueTrendRising(t *testing.T) {
	store := newTestHistoryStore(t)
	seedSeries(t, store, "ibmqx5", []int64{1, 2, 3, 4, 5, 6})

	service := NewService(&fakeClient{}, store, nil, zerolog.Nop())
	trend, err := service.QueueTrend("ibmqx5", 100)
	require.NoError(t, err)

	assert.Equal(t, "ibmqx5", trend.Backend)
	assert.Equal(t, 6, trend.Samples)
	assert.Equal(t, 6.0, trend.Latest)
	assert.Equal(t, 1.0, trend.Min)
	assert.Equal(t, 6.0, trend.Max)
	// SMA(5) over the last five values: mean(2..6) = 4.
	assert.InDelta(t, 4.0, trend.SMA, 1e-9)
	// EMA(5) seeds with mean(1..5)=3, then 6*(1/3) + 3*(2/3) = 4.
	assert.InDelta(t, 4.0, trend.EMA, 1e-9)
	assert.Equal(t, "rising", trend.Direction)
}

// TestQueueTrendFalling tests trend direction on a draining queue.
func TestQueueTrendFalling(t *testing.T) {
	store := newTestHistoryStore(t)
	seedSeries(t, store, "ibmqx5", []int64{9, 8, 7, 6, 5, 4})

	service := NewService(&fakeClient{}, store, nil, zerolog.Nop())
	trend, err := service.QueueTrend("ibmqx5", 100)
	require.NoError(t, err)

	// SMA(5) over the last five values: mean(8,7,6,5,4) = 6.
	assert.InDelta(t, 6.0, trend.SMA, 1e-9)
	assert.Equal(t, 4.0, trend.Latest)
	assert.Equal(t, "falling", trend.Direction)
}

// TestQueueTrendFlat tests trend direction on a steady queue.
func TestQueueTrendFlat(t *testing.T) {
	store := newTestHistoryStore(t)
	seedSeries(t, store, "ibmqx5", []int64{5, 5, 5, 5, 5, 5})

	service := NewService(&fakeClient{}, store, nil, zerolog.Nop())
	trend, err := service.QueueTrend("ibmqx5", 100)
	require.NoError(t, err)

	assert.Equal(t, "flat", trend.Direction)
	assert.InDelta(t, 5.0, trend.SMA, 1e-9)
	assert.InDelta(t, 5.0, trend.EMA, 1e-9)
}

// TestQueueTrendInsufficientHistory tests the typed error below the
// minimum sample count.
func TestQueueTrendInsufficientHistory(t *testing.T) {
	store := newTestHistoryStore(t)
	seedSeries(t, store, "ibmqx5", []int64{1, 2, 3})

	service := NewService(&fakeClient{}, store, nil, zerolog.Nop())
	_, err := service.QueueTrend("ibmqx5", 100)
	require.Error(t, err)

	insufficient, ok := err.(ErrInsufficientHistory)
	require.True(t, ok)
	assert.Equal(t, "ibmqx5", insufficient.Backend)
	assert.Equal(t, 3, insufficient.Samples)
	assert.Equal(t, TrendPeriod+1, insufficient.Needed)
}

// TestQueueTrendWithoutStore tests the disabled-history error.
func TestQueueTrendWithoutStore(t *testing.T) {
	service := NewService(&fakeClient{}, nil, nil, zerolog.Nop())
	_, err := service.QueueTrend("ibmqx5", 100)
	assert.Error(t, err)
}
