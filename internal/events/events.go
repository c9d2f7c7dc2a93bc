// Package events provides the in-process event bus connecting the poller,
// the job stream and the backup service to their listeners.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies a class of event on the bus
type EventType string

const (
	// BackendStatusChanged fires when a poll observes a backend flip its
	// operational state or move its queue
	BackendStatusChanged EventType = "BACKEND_STATUS_CHANGED"

	// SnapshotStored fires after a poll cycle persists its snapshots
	SnapshotStored EventType = "SNAPSHOT_STORED"

	// JobStatusChanged fires when a submitted job changes remote status
	JobStatusChanged EventType = "JOB_STATUS_CHANGED"

	// BackupCompleted fires after a backup archive lands in remote storage
	BackupCompleted EventType = "BACKUP_COMPLETED"
)

// Event is a single emitted event with its payload
type Event struct {
	Type      EventType `json:"type"`
	Module    string    `json:"module"`
	Data      EventData `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler receives events for the types it subscribed to
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a small synchronous pub/sub dispatcher
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[EventType][]subscription
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]subscription),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for an event type. The returned function
// removes the handler again; long-lived subscribers can discard it.
func (b *Bus) Subscribe(t EventType, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[t] = append(b.handlers[t], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[t]
		for i := range subs {
			if subs[i].id != id {
				continue
			}
			// Copy instead of splicing in place so a concurrent Emit
			// iterating the old slice stays undisturbed.
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			b.handlers[t] = next
			return
		}
	}
}

// Emit dispatches an event to all handlers subscribed to its type.
// Dispatch is synchronous; handlers must not block for long.
func (b *Bus) Emit(t EventType, module string, data EventData) {
	b.mu.RLock()
	subs := b.handlers[t]
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	ev := Event{
		Type:      t,
		Module:    module,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	b.log.Debug().
		Str("type", string(t)).
		Str("module", module).
		Int("handlers", len(subs)).
		Msg("Dispatching event")

	for _, sub := range subs {
		sub.handler(ev)
	}
}
