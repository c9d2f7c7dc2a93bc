package qx

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/qulab/qulab/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10

	// Updates older than this mark the stream cache as stale.
	streamStaleThreshold = 5 * time.Minute
)

// JobUpdate is one job status change pushed over the stream.
type JobUpdate struct {
	ID        string `json:"id"`
	Backend   string `json:"backend"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}

// JobStream receives live job status updates over a WebSocket connection.
// It keeps the last known status per job and republishes every update on
// the event bus. The connection reconnects with exponential backoff when
// it drops.
type JobStream struct {
	url        string
	token      string
	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	mu         sync.RWMutex

	eventBus *events.Bus
	log      zerolog.Logger

	connected    bool
	reconnecting bool
	stopChan     chan struct{}
	stopped      bool

	statusCache map[string]JobUpdate
	lastUpdate  time.Time
	cacheMu     sync.RWMutex
}

// StreamURL derives the WebSocket endpoint from the REST API base URL.
func StreamURL(baseURL string) string {
	u := strings.TrimSuffix(baseURL, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/ws/jobs"
}

// NewJobStream creates a job status stream client. The token authenticates
// the connection and may be empty when the endpoint is open.
func NewJobStream(url, token string, eventBus *events.Bus, log zerolog.Logger) *JobStream {
	return &JobStream{
		url:         url,
		token:       token,
		eventBus:    eventBus,
		log:         log.With().Str("component", "job_stream").Logger(),
		statusCache: make(map[string]JobUpdate),
		stopChan:    make(chan struct{}),
	}
}

// Start connects and launches the read loop. A failed initial connection
// is retried in the background rather than treated as fatal.
func (s *JobStream) Start() error {
	s.log.Info().Msg("Starting job stream client")

	if err := s.Connect(); err != nil {
		s.log.Warn().Err(err).Msg("Initial stream connection failed, will retry in background")
		go s.reconnectLoop()
		return err
	}

	s.mu.RLock()
	ctx := s.connCtx
	s.mu.RUnlock()
	go s.readMessages(ctx)

	s.log.Info().Msg("Job stream client started")
	return nil
}

// Stop shuts the stream down and stops any reconnection attempts.
func (s *JobStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.log.Info().Msg("Stopping job stream client")

	close(s.stopChan)
	return s.Disconnect()
}

// Connect establishes the WebSocket connection and subscribes to the jobs
// channel.
func (s *JobStream) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wsURL := s.url
	if s.token != "" {
		wsURL += "?access_token=" + s.token
	}

	s.log.Info().Str("url", s.url).Msg("Connecting to job stream")

	dialCtx, dialCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		HTTPClient: &http.Client{},
	})
	if err != nil {
		return fmt.Errorf("failed to dial job stream: %w", err)
	}

	// Long-lived context for the connection, cancelled on disconnect to
	// unblock pending reads.
	connCtx, connCancel := context.WithCancel(context.Background())
	s.conn = conn
	s.connCtx = connCtx
	s.cancelFunc = connCancel
	s.connected = true

	if err := s.subscribe(connCtx); err != nil {
		connCancel()
		conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		s.conn = nil
		s.connCtx = nil
		s.cancelFunc = nil
		s.connected = false
		return fmt.Errorf("failed to subscribe to job updates: %w", err)
	}

	s.log.Info().Msg("Connected to job stream")
	return nil
}

// Disconnect closes the WebSocket connection.
func (s *JobStream) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	s.log.Info().Msg("Disconnecting from job stream")

	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}

	err := s.conn.Close(websocket.StatusNormalClosure, "")

	s.conn = nil
	s.connCtx = nil
	s.connected = false

	if err != nil {
		return fmt.Errorf("error closing job stream: %w", err)
	}
	return nil
}

// subscribe asks the server for job status updates. Protocol: ["jobs"].
func (s *JobStream) subscribe(ctx context.Context) error {
	data, err := json.Marshal([]string{"jobs"})
	if err != nil {
		return fmt.Errorf("failed to marshal subscription message: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	if err := s.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to send subscription message: %w", err)
	}

	s.log.Debug().Msg("Subscribed to job updates")
	return nil
}

// readMessages reads frames until the connection drops or the stream stops.
func (s *JobStream) readMessages(ctx context.Context) {
	defer func() {
		s.log.Info().Msg("Stream read loop stopped")
		s.mu.RLock()
		stopped := s.stopped
		s.mu.RUnlock()
		if !stopped {
			go s.reconnectLoop()
		}
	}()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			s.log.Debug().Msg("Read loop context cancelled")
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()

		if conn == nil {
			s.log.Warn().Msg("Connection is nil, stopping read loop")
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				s.log.Info().Int("status", int(closeStatus)).Msg("Stream closed normally")
			} else if ctx.Err() != nil {
				s.log.Debug().Msg("Read cancelled by context")
			} else {
				s.log.Error().Err(err).Msg("Unexpected stream read error")
			}
			return
		}

		if msgType != websocket.MessageText {
			s.log.Debug().Int("type", int(msgType)).Msg("Ignoring non-text message")
			continue
		}

		if err := s.handleMessage(message); err != nil {
			s.log.Error().Err(err).Str("message", string(message)).Msg("Failed to handle stream message")
			// Keep reading; one bad frame must not kill the stream.
		}
	}
}

// handleMessage parses one ["channel", payload] frame.
func (s *JobStream) handleMessage(message []byte) error {
	var frame []json.RawMessage
	if err := json.Unmarshal(message, &frame); err != nil {
		return fmt.Errorf("failed to parse message frame: %w", err)
	}
	if len(frame) < 2 {
		return fmt.Errorf("message frame too short: expected 2 elements, got %d", len(frame))
	}

	var channel string
	if err := json.Unmarshal(frame[0], &channel); err != nil {
		return fmt.Errorf("failed to parse channel: %w", err)
	}
	if channel != "jobs" {
		s.log.Debug().Str("channel", channel).Msg("Ignoring message on other channel")
		return nil
	}

	var update JobUpdate
	if err := json.Unmarshal(frame[1], &update); err != nil {
		return fmt.Errorf("failed to parse job update: %w", err)
	}

	return s.handleUpdate(update)
}

// handleUpdate caches a job update and republishes it on the event bus.
func (s *JobStream) handleUpdate(update JobUpdate) error {
	if update.ID == "" {
		s.log.Warn().Msg("Received job update without an ID")
		return nil
	}

	s.cacheMu.Lock()
	s.statusCache[update.ID] = update
	s.lastUpdate = time.Now()
	s.cacheMu.Unlock()

	s.log.Debug().
		Str("job_id", update.ID).
		Str("backend", update.Backend).
		Str("status", update.Status).
		Msg("Job status update received")

	if s.eventBus != nil {
		s.eventBus.Emit(events.JobStatusChanged, "job_stream", &events.JobStatusChangedData{
			RemoteID: update.ID,
			Backend:  update.Backend,
			Status:   update.Status,
		})
	}
	return nil
}

// reconnectLoop retries the connection with exponential backoff.
func (s *JobStream) reconnectLoop() {
	s.mu.Lock()
	if s.reconnecting || s.stopped {
		s.mu.Unlock()
		return
	}
	s.reconnecting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.reconnecting = false
		s.mu.Unlock()
	}()

	attempt := 0
	for {
		select {
		case <-s.stopChan:
			s.log.Info().Msg("Reconnection loop stopped")
			return
		default:
		}

		s.mu.RLock()
		stopped := s.stopped
		s.mu.RUnlock()
		if stopped {
			return
		}

		attempt++
		delay := s.calculateBackoff(attempt)

		if attempt <= maxReconnectAttempts {
			s.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("Attempting stream reconnect")
		} else {
			s.log.Warn().Int("attempt", attempt).Dur("delay", delay).Msg("Stream reconnect attempt (exceeded max attempts, will keep retrying)")
		}

		select {
		case <-time.After(delay):
		case <-s.stopChan:
			return
		}

		if err := s.Connect(); err != nil {
			s.log.Error().Err(err).Int("attempt", attempt).Msg("Stream reconnect failed")
			continue
		}

		s.log.Info().Int("attempt", attempt).Msg("Stream reconnected")
		attempt = 0

		s.mu.RLock()
		ctx := s.connCtx
		s.mu.RUnlock()
		go s.readMessages(ctx)
		return
	}
}

// calculateBackoff returns baseDelay * 2^(attempt-1) capped at the maximum.
func (s *JobStream) calculateBackoff(attempt int) time.Duration {
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}
	return time.Duration(delay)
}

// JobStatus returns the last streamed status for a job.
func (s *JobStream) JobStatus(id string) (*JobUpdate, error) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	update, exists := s.statusCache[id]
	if !exists {
		return nil, fmt.Errorf("job %s not seen on stream", id)
	}
	return &update, nil
}

// AllJobStatuses returns a copy of every cached job status.
func (s *JobStream) AllJobStatuses() map[string]JobUpdate {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	result := make(map[string]JobUpdate, len(s.statusCache))
	for k, v := range s.statusCache {
		result[k] = v
	}
	return result
}

// IsCacheStale reports whether no update has arrived recently.
func (s *JobStream) IsCacheStale() bool {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	if s.lastUpdate.IsZero() {
		return true
	}
	return time.Since(s.lastUpdate) > streamStaleThreshold
}

// IsConnected returns the current connection state.
func (s *JobStream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}
