package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one job-progress notification delivered to SSE subscribers.
type Event struct {
	ID    string         `json:"id"`
	Type  string         `json:"type"` // "job.queued", "job.stage", "job.done", "job.failed"
	JobID string         `json:"job_id"`
	Stage string         `json:"stage,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
	Time  time.Time      `json:"time"`
}

// EventBus provides pub-sub distribution of job events to SSE subscribers,
// with a ring buffer for replay on reconnect.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[uint64]chan Event
	nextID      uint64
	seq         atomic.Uint64

	ringMu   sync.RWMutex
	ring     []Event
	ringSize int
	ringHead int
}

// NewEventBus creates an event bus with the given ring buffer size.
func NewEventBus(ringSize int) *EventBus {
	return &EventBus{
		subscribers: make(map[uint64]chan Event),
		ring:        make([]Event, ringSize),
		ringSize:    ringSize,
	}
}

// Subscribe registers a subscriber and returns its channel plus a cancel
// function. Slow subscribers drop events rather than blocking publishers.
func (eb *EventBus) Subscribe() (<-chan Event, func()) {
	eb.mu.Lock()
	id := eb.nextID
	eb.nextID++
	ch := make(chan Event, 64)
	eb.subscribers[id] = ch
	eb.mu.Unlock()

	cancel := func() {
		eb.mu.Lock()
		delete(eb.subscribers, id)
		eb.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount returns the number of active subscribers.
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// Publish assigns the event an id, buffers it for replay, and fans it out.
func (eb *EventBus) Publish(e Event) {
	e.ID = fmt.Sprintf("%d", eb.seq.Add(1))
	e.Time = time.Now().UTC()

	eb.ringMu.Lock()
	eb.ring[eb.ringHead] = e
	eb.ringHead = (eb.ringHead + 1) % eb.ringSize
	eb.ringMu.Unlock()

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

// ReplaySince returns buffered events after the given event id, oldest
// first. An empty id returns everything still in the ring.
func (eb *EventBus) ReplaySince(lastEventID string) []Event {
	eb.ringMu.RLock()
	defer eb.ringMu.RUnlock()

	var events []Event
	found := lastEventID == ""
	for i := 0; i < eb.ringSize; i++ {
		e := eb.ring[(eb.ringHead+i)%eb.ringSize]
		if e.ID == "" {
			continue
		}
		if !found {
			if e.ID == lastEventID {
				found = true
			}
			continue
		}
		events = append(events, e)
	}
	return events
}
