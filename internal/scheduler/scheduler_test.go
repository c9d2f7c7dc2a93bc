package scheduler

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
	runs int
	err  error
}

func (j *stubJob) Run() error {
	j.runs++
	return j.err
}

func (j *stubJob) Name() string {
	return j.name
}

func nopLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(nopLogger())

	err := s.AddJob("not a schedule", &stubJob{name: "broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Empty(t, s.Jobs())
}

func TestRunNow(t *testing.T) {
	s := New(nopLogger())
	job := &stubJob{name: "poll"}
	require.NoError(t, s.AddJob("@every 1h", job))

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)

	infos := s.Jobs()
	require.Len(t, infos, 1)
	assert.Equal(t, "poll", infos[0].Name)
	assert.Equal(t, "@every 1h", infos[0].Schedule)
	require.NotNil(t, infos[0].LastRun)
	assert.Empty(t, infos[0].LastErr)
}

func TestRunByName(t *testing.T) {
	s := New(nopLogger())
	job := &stubJob{name: "maintenance"}
	require.NoError(t, s.AddJob("@hourly", job))

	require.NoError(t, s.RunByName("maintenance"))
	assert.Equal(t, 1, job.runs)
}

func TestRunByNameUnknown(t *testing.T) {
	s := New(nopLogger())

	err := s.RunByName("ghost")
	require.ErrorIs(t, err, ErrUnknownJob)
	assert.Contains(t, err.Error(), "ghost")
}

func TestRunRecordsFailure(t *testing.T) {
	s := New(nopLogger())
	job := &stubJob{name: "flaky", err: errors.New("remote down")}
	require.NoError(t, s.AddJob("@hourly", job))

	require.Error(t, s.RunNow(job))

	infos := s.Jobs()
	require.Len(t, infos, 1)
	assert.Equal(t, "remote down", infos[0].LastErr)
	require.NotNil(t, infos[0].LastRun)

	// A later successful run clears the recorded error.
	job.err = nil
	require.NoError(t, s.RunNow(job))
	assert.Empty(t, s.Jobs()[0].LastErr)
}

func TestJobsSortedByName(t *testing.T) {
	s := New(nopLogger())
	require.NoError(t, s.AddJob("@hourly", &stubJob{name: "status_sync"}))
	require.NoError(t, s.AddJob("@hourly", &stubJob{name: "backup"}))
	require.NoError(t, s.AddJob("@hourly", &stubJob{name: "maintenance"}))

	infos := s.Jobs()
	require.Len(t, infos, 3)
	assert.Equal(t, "backup", infos[0].Name)
	assert.Equal(t, "maintenance", infos[1].Name)
	assert.Equal(t, "status_sync", infos[2].Name)
}
