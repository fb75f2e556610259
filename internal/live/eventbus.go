// Package live pushes interview changes to connected dashboard clients.
package live

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/snarg/mockprep/internal/api"
	"github.com/snarg/mockprep/internal/metrics"
)

// EventBus provides pub-sub event distribution for live subscribers.
// It maintains a ring buffer for replay on reconnect.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[uint64]subscriber
	nextID      uint64
	seq         atomic.Uint64

	ring     []api.SSEEvent
	ringSize int
	ringHead int
	ringMu   sync.RWMutex
}

type subscriber struct {
	ch     chan api.SSEEvent
	filter api.EventFilter
}

// NewEventBus creates an event bus with the given ring buffer size.
func NewEventBus(ringSize int) *EventBus {
	if ringSize <= 0 {
		ringSize = 256
	}
	return &EventBus{
		subscribers: make(map[uint64]subscriber),
		ring:        make([]api.SSEEvent, ringSize),
		ringSize:    ringSize,
	}
}

// Subscribe registers a new subscriber and returns a channel and cancel function.
func (eb *EventBus) Subscribe(filter api.EventFilter) (<-chan api.SSEEvent, func()) {
	eb.mu.Lock()
	id := eb.nextID
	eb.nextID++
	ch := make(chan api.SSEEvent, 64)
	eb.subscribers[id] = subscriber{ch: ch, filter: filter}
	eb.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			eb.mu.Lock()
			delete(eb.subscribers, id)
			eb.mu.Unlock()
		})
	}
	return ch, cancel
}

// SubscriberCount returns the number of connected subscribers.
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// ReplaySince returns buffered events since the given event ID. An empty ID,
// or one that has been overwritten by the ring, replays the whole buffer so a
// reconnecting client does not silently miss everything.
func (eb *EventBus) ReplaySince(lastEventID string, filter api.EventFilter) []api.SSEEvent {
	eb.ringMu.RLock()
	defer eb.ringMu.RUnlock()

	start := 0
	if lastEventID != "" {
		for i := 0; i < eb.ringSize; i++ {
			if eb.ring[(eb.ringHead+i)%eb.ringSize].ID == lastEventID {
				start = i + 1
				break
			}
		}
	}

	var events []api.SSEEvent
	for i := start; i < eb.ringSize; i++ {
		e := eb.ring[(eb.ringHead+i)%eb.ringSize]
		if e.ID != "" && matchesFilter(e, filter) {
			events = append(events, e)
		}
	}
	return events
}

// EventData holds all fields needed to publish a live event.
type EventData struct {
	Type    string
	SubType string
	UserID  string
	Payload any
}

// Publish sends an event to all matching subscribers and adds it to the ring buffer.
// Slow subscribers miss events rather than block the publisher.
func (eb *EventBus) Publish(e EventData) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return
	}

	now := time.Now()
	event := api.SSEEvent{
		ID:        fmt.Sprintf("%d-%d", now.UnixMilli(), eb.seq.Add(1)),
		Type:      e.Type,
		SubType:   e.SubType,
		Timestamp: now.UTC().Format(time.RFC3339),
		UserID:    e.UserID,
		Data:      data,
	}

	eb.ringMu.Lock()
	eb.ring[eb.ringHead] = event
	eb.ringHead = (eb.ringHead + 1) % eb.ringSize
	eb.ringMu.Unlock()

	eb.mu.RLock()
	for _, sub := range eb.subscribers {
		if matchesFilter(event, sub.filter) {
			select {
			case sub.ch <- event:
			default:
			}
		}
	}
	eb.mu.RUnlock()
	metrics.LiveEventsPublishedTotal.Inc()
}

func matchesFilter(e api.SSEEvent, f api.EventFilter) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		t = strings.TrimSpace(t)
		if base, sub, ok := strings.Cut(t, ":"); ok {
			if base == e.Type && sub == e.SubType {
				return true
			}
		} else if t == e.Type {
			return true
		}
	}
	return false
}
