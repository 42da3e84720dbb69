// Package broadcast fans session events out to the subscribers of a topic.
package broadcast

import (
	"sync"
)

// Event is one message published on a topic
type Event struct {
	Name    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Subscriber receives events for the topics it joined.
// Send must not block; it reports false when the subscriber cannot keep up.
// Close releases the subscriber's transport and must be safe to call twice.
type Subscriber interface {
	Send(Event) bool
	Close()
}

// Hub tracks topic membership. A subscriber may belong to several topics.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[Subscriber]struct{}

	// OnChange, when set, is called with the total subscriber count after
	// every membership change.
	OnChange func(total int)
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[Subscriber]struct{}),
	}
}

// Subscribe adds sub to topic
func (h *Hub) Subscribe(topic string, sub Subscriber) {
	h.mu.Lock()
	members, ok := h.topics[topic]
	if !ok {
		members = make(map[Subscriber]struct{})
		h.topics[topic] = members
	}
	members[sub] = struct{}{}
	total := h.totalLocked()
	h.mu.Unlock()

	h.changed(total)
}

// Unsubscribe removes sub from topic without closing it
func (h *Hub) Unsubscribe(topic string, sub Subscriber) {
	h.mu.Lock()
	removed := h.removeLocked(topic, sub)
	total := h.totalLocked()
	h.mu.Unlock()

	if removed {
		h.changed(total)
	}
}

// Publish delivers ev to every current subscriber of topic.
// Subscribers that cannot accept the event are dropped and closed.
// Publishing to a topic without subscribers is a no-op.
func (h *Hub) Publish(topic string, ev Event) int {
	h.mu.RLock()
	members := make([]Subscriber, 0, len(h.topics[topic]))
	for sub := range h.topics[topic] {
		members = append(members, sub)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, sub := range members {
		if sub.Send(ev) {
			delivered++
			continue
		}
		h.Unsubscribe(topic, sub)
		sub.Close()
	}
	return delivered
}

// CloseTopic removes every subscriber of topic and closes them
func (h *Hub) CloseTopic(topic string) {
	h.mu.Lock()
	members := h.topics[topic]
	delete(h.topics, topic)
	total := h.totalLocked()
	h.mu.Unlock()

	for sub := range members {
		sub.Close()
	}
	if len(members) > 0 {
		h.changed(total)
	}
}

// SubscriberCount returns the number of subscribers of topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// TopicCount returns the number of topics with at least one subscriber
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}

func (h *Hub) removeLocked(topic string, sub Subscriber) bool {
	members, ok := h.topics[topic]
	if !ok {
		return false
	}
	if _, ok := members[sub]; !ok {
		return false
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(h.topics, topic)
	}
	return true
}

func (h *Hub) totalLocked() int {
	total := 0
	for _, members := range h.topics {
		total += len(members)
	}
	return total
}

func (h *Hub) changed(total int) {
	if h.OnChange != nil {
		h.OnChange(total)
	}
}
