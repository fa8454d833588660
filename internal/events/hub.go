// Package events is a small publish/subscribe registry scoped by string keys.
package events

import "sync"

// Name identifies an event type
type Name string

const (
	// ExtensionRegistered fires once a database view becomes queryable.
	// Key carries the view name.
	ExtensionRegistered Name = "extension_registered"
)

// Event is a published notification
type Event struct {
	Name Name
	Key  string
}

// Handler receives events
type Handler func(Event)

// Hub dispatches events to subscribers registered for a (name, key) pair
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscription)}
}

// Subscription is a scoped registration. Close removes it; closing twice is a no-op.
type Subscription struct {
	hub     *Hub
	id      uint64
	name    Name
	key     string
	handler Handler
	once    sync.Once
}

// Subscribe registers handler for events matching name and key
func (h *Hub) Subscribe(name Name, key string, handler Handler) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		hub:     h,
		id:      h.nextID,
		name:    name,
		key:     key,
		handler: handler,
	}
	h.subs[sub.id] = sub
	return sub
}

// Publish delivers e synchronously to every matching subscriber
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	var matched []Handler
	for _, sub := range h.subs {
		if sub.name == e.Name && sub.key == e.Key {
			matched = append(matched, sub.handler)
		}
	}
	h.mu.RUnlock()

	for _, handler := range matched {
		handler(e)
	}
}

// Len returns the number of live subscriptions
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close removes the subscription from its hub
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()
	})
}
