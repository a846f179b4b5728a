package events

import (
	"sync"

	"AgentChat/internal/session"
)

// Event is a notification passed between components. It never carries
// user input; user sends go through the conversation manager.
type Event interface {
	eventName() string
}

// SourcesUpdated announces citations derived while rendering a response
type SourcesUpdated struct {
	Citations []session.Citation
}

// MessageAppended announces a new entry in a thread's message store
type MessageAppended struct {
	ThreadID string
	Message  session.Message
}

// StateChanged announces a transport state transition
type StateChanged struct {
	From string
	To   string
}

// LoadingChanged announces the shared loading flag flipping
type LoadingChanged struct {
	Loading bool
}

func (SourcesUpdated) eventName() string  { return "sources_updated" }
func (MessageAppended) eventName() string { return "message_appended" }
func (StateChanged) eventName() string    { return "state_changed" }
func (LoadingChanged) eventName() string  { return "loading_changed" }

// Handler receives published events
type Handler func(Event)

// Bus fans events out to subscribers
type Bus struct {
	handlers map[int]Handler
	nextID   int
	mu       sync.RWMutex
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[int]Handler),
	}
}

// Subscribe registers a handler and returns a func that removes it
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Publish delivers an event to every subscriber synchronously.
// A nil bus drops the event.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Count returns the number of subscribers
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
