// Package realtime fans broadcast events out to in-process subscribers.
// It is the transport-independent edge of the event feed: the API server
// feeds it from the RabbitMQ broadcast exchange and bridges subscriptions
// onto websocket clients.
package realtime

import (
	"sync"

	"curbcycle.dev/opsdash/pkg/wire"
)

// subscriberBuffer is the per-subscriber channel depth. Slow consumers drop
// events rather than stall the hub; clients recover by re-fetching
// snapshots.
const subscriberBuffer = 32

// Subscription is a disposable handle on the event feed. Close releases it;
// C is closed afterwards.
type Subscription struct {
	C      <-chan wire.Event
	hub    *Hub
	ch     chan wire.Event
	topics map[string]struct{}
	once   sync.Once
}

// Close detaches the subscription from the hub and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.ch)
	})
}

// Hub distributes events to subscribers by topic.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber for the given topics. With no topics the
// subscriber receives every event.
func (h *Hub) Subscribe(topics ...string) *Subscription {
	ch := make(chan wire.Event, subscriberBuffer)
	sub := &Subscription{
		C:   ch,
		hub: h,
		ch:  ch,
	}
	if len(topics) > 0 {
		sub.topics = make(map[string]struct{}, len(topics))
		for _, t := range topics {
			sub.topics[t] = struct{}{}
		}
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Publish delivers an event to every matching subscriber. Delivery is
// best-effort: a full subscriber buffer drops the event for that subscriber.
func (h *Hub) Publish(event wire.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if sub.topics != nil {
			if _, ok := sub.topics[event.Topic]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- event:
		default:
			// Slow consumer; the client re-fetches on reconnect.
		}
	}
}

// SubscriberCount reports the number of attached subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}
