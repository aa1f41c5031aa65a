package event

import (
	"log"
	"runtime/debug"
	"sync"
)

// defaultHistoryLimit caps the in-memory event history.
const defaultHistoryLimit = 1000

// Handler is a function that handles an event.
type Handler func(Event)

// UnsubscribeFunc removes the subscription it was returned for.
// Calling it more than once is a no-op.
type UnsubscribeFunc func()

// subscription represents a registered event handler.
type subscription struct {
	id        uint64
	eventType string
	handler   Handler
}

// Bus is a synchronous pub-sub event bus with a bounded in-memory
// history. It allows components to communicate without direct
// dependencies and is safe for concurrent use.
//
// Dispatch is synchronous: Publish returns only after every handler has
// run, so sequential Publish calls from one goroutine are observed in
// call order by all subscribers. No ordering is guaranteed between
// handlers of the same event.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription
	nextID        uint64
	history       []Event
	historyLimit  int
}

// NewBus creates a new event bus with the default history limit.
func NewBus() *Bus {
	return NewBusWithHistoryLimit(defaultHistoryLimit)
}

// NewBusWithHistoryLimit creates a bus whose history holds at most limit
// events. Oldest entries are evicted first. A limit of zero disables
// history.
func NewBusWithHistoryLimit(limit int) *Bus {
	return &Bus{
		subscriptions: make(map[string][]subscription),
		historyLimit:  limit,
	}
}

// Subscribe registers a handler for a specific event type (or "*" for
// all events) and returns a function that removes the subscription.
func (b *Bus) Subscribe(eventType string, handler Handler) UnsubscribeFunc {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subscriptions[eventType] = append(b.subscriptions[eventType], subscription{
		id:        id,
		eventType: eventType,
		handler:   handler,
	})

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(eventType, id) })
	}
}

// SubscribeAll registers a handler for all event types.
// The handler will be called for every published event.
func (b *Bus) SubscribeAll(handler Handler) UnsubscribeFunc {
	return b.Subscribe("*", handler)
}

// unsubscribe removes a subscription by type and ID.
func (b *Bus) unsubscribe(eventType string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscriptions[eventType]
	for i, sub := range subs {
		if sub.id == id {
			b.subscriptions[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish records the event in history and dispatches it to all handlers
// registered for its exact type, followed by all wildcard handlers.
// If a handler panics, the panic is logged, recovered, and publishing
// continues to remaining handlers.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	if b.historyLimit > 0 {
		b.history = append(b.history, event)
		if len(b.history) > b.historyLimit {
			// Evict oldest entries; copy to release the backing array.
			trimmed := make([]Event, b.historyLimit)
			copy(trimmed, b.history[len(b.history)-b.historyLimit:])
			b.history = trimmed
		}
	}

	eventType := event.EventType()
	specificSubs := make([]subscription, len(b.subscriptions[eventType]))
	copy(specificSubs, b.subscriptions[eventType])
	wildcardSubs := make([]subscription, len(b.subscriptions["*"]))
	copy(wildcardSubs, b.subscriptions["*"])
	b.mu.Unlock()

	for _, sub := range specificSubs {
		b.safeCall(sub.handler, event)
	}
	for _, sub := range wildcardSubs {
		b.safeCall(sub.handler, event)
	}
}

// Emit is sugar over Publish: it stamps a timestamp and wraps the payload
// in a GenericEvent. It returns only after all handlers have run, so
// sequential Emit calls from the same caller append to history in call
// order.
func (b *Bus) Emit(eventType, sessionID string, data map[string]any) {
	b.Publish(NewGenericEvent(eventType, sessionID, data))
}

// History returns a copy of the recorded events, oldest first. When
// sessionID is non-empty only that session's events are returned.
func (b *Bus) History(sessionID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, 0, len(b.history))
	for _, e := range b.history {
		if sessionID == "" || e.SessionID() == sessionID {
			out = append(out, e)
		}
	}
	return out
}

// safeCall invokes a handler and recovers from any panics.
// Panics are logged with stack traces to aid debugging while ensuring
// one misbehaving handler cannot block event delivery to other handlers.
func (b *Bus) safeCall(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: event handler panicked for event %s: %v\n%s",
				event.EventType(), r, debug.Stack())
		}
	}()
	handler(event)
}

// Clear removes all subscriptions and recorded history. It exists for
// test isolation and session teardown.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = make(map[string][]subscription)
	b.history = nil
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}
