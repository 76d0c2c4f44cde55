// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package bus

import (
	"sync"
	"time"
)

// Event is a single observable occurrence published on the bus.
// Deployment cut-overs and model failovers are reported this way.
type Event struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Handler receives published events. Dispatch is synchronous; handlers
// must not publish back into the bus from the same goroutine chain.
type Handler func(Event)

// EventBus fan-outs events to registered handlers.
type EventBus struct {
	handlers map[int]Handler
	nextID   int
	closed   bool
	mu       sync.RWMutex
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[int]Handler),
	}
}

// Publish delivers an event to every registered handler.
// Events published after Close are dropped.
func (b *EventBus) Publish(eventType string, fields map[string]any) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	evt := Event{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		Fields:    fields,
	}
	for _, h := range handlers {
		h(evt)
	}
}

// Subscribe registers a handler and returns its subscription handle.
func (b *EventBus) Subscribe(h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = h

	return &Subscription{bus: b, id: id}
}

// Close drops all handlers. Further publishes are no-ops.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[int]Handler)
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	bus  *EventBus
	id   int
	once sync.Once
}

// Unsubscribe removes the handler. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		delete(s.bus.handlers, s.id)
	})
}
