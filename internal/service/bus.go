package service

import "sync"

// Event resources.
const (
	ResourceMap        = "map"
	ResourceLayer      = "layer"
	ResourceDatasource = "datasource"
	ResourceSelection  = "selection"
	ResourceSettings   = "settings"
)

// Event actions.
const (
	ActionReady   = "ready"
	ActionAdded   = "added"
	ActionRemoved = "removed"
	ActionStyled  = "styled"
	ActionUpdated = "updated"
	ActionCleared = "cleared"
	ActionQueued  = "queued"
)

// Event represents a map lifecycle change.
type Event struct {
	Resource string `json:"resource"` // e.g. "layer"
	Action   string `json:"action"`   // "added", "removed", "styled", ...
	ID       string `json:"id"`       // layer or source id
	Count    int    `json:"count,omitempty"`
}

// EventBus is a simple fan-out pub/sub for map lifecycle events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking). A nil bus drops it.
func (b *EventBus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
