package jobs

import (
	"sync"
	"time"

	"meeting-analyzer/internal/domain"
)

// EventType classifies messages emitted during a pipeline run.
type EventType string

const (
	EventTypeState  EventType = "state"
	EventTypeExport EventType = "export"
	EventTypeError  EventType = "error"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq       int64                `json:"seq"`
	Timestamp time.Time            `json:"timestamp"`
	SessionID string               `json:"sessionId,omitempty"`
	Type      EventType            `json:"type"`
	State     domain.PipelineState `json:"state"`
	Message   string               `json:"message,omitempty"`
	Path      string               `json:"path,omitempty"`
}

// EventBus stores recent events, provides incremental reads, and pushes each
// event to live subscribers.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event

	nextSubID   int
	subscribers map[int]func(Event)
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents:   maxEvents,
		events:      make([]Event, 0, maxEvents),
		subscribers: make(map[int]func(Event)),
	}
}

// Subscribe registers fn for every future event and returns its cancel func.
// fn is called synchronously from Publish and must not block. It may start a
// pipeline transition; that transition is published after fn returns.
func (b *EventBus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	id := b.nextSubID
	b.subscribers[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers, id)
	}
}

// Publish appends one event, assigns sequence and timestamp, and fans it out.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	subs := make([]func(Event), 0, len(b.subscribers))
	for id := 1; id <= b.nextSubID; id++ {
		if fn, ok := b.subscribers[id]; ok {
			subs = append(subs, fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}
