package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qulab/qulab/internal/events"
)

type streamFixture struct {
	bus    *events.Bus
	server *httptest.Server
}

func newStreamFixture(t *testing.T) *streamFixture {
	t.Helper()
	log := nopLogger()
	bus := events.NewBus(log)

	router := chi.NewRouter()
	router.Get("/api/events/stream", NewEventsStreamHandler(bus, log).ServeHTTP)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &streamFixture{bus: bus, server: srv}
}

// connect opens the SSE stream and returns a reader positioned after the
// initial connected message.
func (f *streamFixture) connect(t *testing.T, query string) func() string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/api/events/stream"+query, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	readData := func() string {
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data: ") {
				return strings.TrimPrefix(line, "data: ")
			}
		}
		t.Fatalf("stream ended early: %v", scanner.Err())
		return ""
	}

	var connected map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(readData()), &connected))
	require.Equal(t, "connected", connected["type"])

	return readData
}

func TestEventsStreamDeliversBusEvents(t *testing.T) {
	f := newStreamFixture(t)
	readData := f.connect(t, "")

	f.bus.Emit(events.BackendStatusChanged, "backends", &events.BackendStatusChangedData{
		Backend:     "ibmqx4",
		Operational: true,
		PendingJobs: 9,
	})

	var ev struct {
		Type   string `json:"type"`
		Module string `json:"module"`
		Data   struct {
			Backend     string `json:"backend"`
			PendingJobs int64  `json:"pending_jobs"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(readData()), &ev))
	assert.Equal(t, string(events.BackendStatusChanged), ev.Type)
	assert.Equal(t, "backends", ev.Module)
	assert.Equal(t, "ibmqx4", ev.Data.Backend)
	assert.Equal(t, int64(9), ev.Data.PendingJobs)
}

func TestEventsStreamTypeFilter(t *testing.T) {
	f := newStreamFixture(t)
	readData := f.connect(t, "?types=JOB_STATUS_CHANGED")

	// Filtered out entirely, so the next data line is the job event.
	f.bus.Emit(events.BackendStatusChanged, "backends", &events.BackendStatusChangedData{
		Backend: "ibmqx4",
	})
	f.bus.Emit(events.JobStatusChanged, "jobs", &events.JobStatusChangedData{
		Ref:    "job-1",
		Status: "COMPLETED",
	})

	var ev struct {
		Type string `json:"type"`
		Data struct {
			Ref string `json:"ref"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(readData()), &ev))
	assert.Equal(t, string(events.JobStatusChanged), ev.Type)
	assert.Equal(t, "job-1", ev.Data.Ref)
}
