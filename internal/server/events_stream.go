package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/qulab/qulab/internal/events"
)

// EventsStreamHandler relays bus events to clients over Server-Sent Events.
type EventsStreamHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventsStreamHandler creates the SSE relay served at /api/events/stream.
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus: bus,
		log: log.With().Str("component", "events_stream").Logger(),
	}
}

// streamedTypes lists the bus events exposed on the stream.
var streamedTypes = []events.EventType{
	events.BackendStatusChanged,
	events.SnapshotStored,
	events.JobStatusChanged,
	events.BackupCompleted,
}

// ServeHTTP handles GET /api/events/stream requests. Clients can narrow
// the stream with ?types=BACKEND_STATUS_CHANGED,JOB_STATUS_CHANGED.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var allowed map[events.EventType]bool
	if filter := r.URL.Query().Get("types"); filter != "" {
		allowed = make(map[events.EventType]bool)
		for _, t := range strings.Split(filter, ",") {
			allowed[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	// Buffered so a slow client drops events instead of stalling Emit.
	eventChan := make(chan events.Event, 100)
	relay := func(ev events.Event) {
		select {
		case eventChan <- ev:
		default:
			h.log.Warn().
				Str("event_type", string(ev.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	var unsubscribe []func()
	for _, t := range streamedTypes {
		if allowed != nil && !allowed[t] {
			continue
		}
		unsubscribe = append(unsubscribe, h.bus.Subscribe(t, relay))
	}
	defer func() {
		for _, off := range unsubscribe {
			off()
		}
	}()

	h.log.Info().Msg("Client connected to event stream")

	fmt.Fprintf(w, "data: %s\n\n", h.encode(map[string]interface{}{
		"type": "connected",
	}))
	flusher.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	done := r.Context().Done()
	for {
		select {
		case <-done:
			h.log.Info().Msg("Client disconnected from event stream")
			return

		case ev := <-eventChan:
			fmt.Fprintf(w, "data: %s\n\n", h.encode(ev))
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprintf(w, "data: %s\n\n", h.encode(map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			}))
			flusher.Flush()
		}
	}
}

func (h *EventsStreamHandler) encode(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		return `{"error":"failed to encode event"}`
	}
	return string(data)
}
