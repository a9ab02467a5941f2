// Package adminevents fans operational events out to back-office clients.
// Outbox rows reach Redis through the Relay; each API instance bridges the
// Redis channel into an in-process Hub that serves the SSE stream.
package adminevents

import (
	"sync"
	"time"

	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

const (
	DefaultHistory   = 100
	subscriberBuffer = 32
)

// Hub keeps the most recent events and broadcasts new ones to subscribers.
// A subscriber that falls behind loses events rather than slowing the hub.
type Hub struct {
	mu      sync.Mutex
	history []types.AdminEvent
	next    int
	full    bool
	subs    map[*Subscription]struct{}
	dropped uint64
	now     func() time.Time
}

func NewHub(history int) *Hub {
	if history <= 0 {
		history = DefaultHistory
	}
	return &Hub{
		history: make([]types.AdminEvent, history),
		subs:    make(map[*Subscription]struct{}),
		now:     time.Now,
	}
}

// Subscription receives live events on C. Replay holds the history at the
// time of subscribing, oldest first.
type Subscription struct {
	C      <-chan types.AdminEvent
	Replay []types.AdminEvent

	ch   chan types.AdminEvent
	hub  *Hub
	once sync.Once
}

func (h *Hub) Subscribe() *Subscription {
	ch := make(chan types.AdminEvent, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	sub.Replay = h.recentLocked()
	h.subs[sub] = struct{}{}
	return sub
}

// Close detaches the subscription and closes C. It is safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

// Publish records the event and offers it to every subscriber.
func (h *Hub) Publish(evt types.AdminEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = h.now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.history[h.next] = evt
	h.next = (h.next + 1) % len(h.history)
	if h.next == 0 {
		h.full = true
	}
	for sub := range h.subs {
		select {
		case sub.ch <- evt:
		default:
			h.dropped++
		}
	}
}

// Recent returns the retained history, oldest first.
func (h *Hub) Recent() []types.AdminEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recentLocked()
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped counts deliveries skipped because a subscriber buffer was full.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

func (h *Hub) recentLocked() []types.AdminEvent {
	if !h.full {
		return append([]types.AdminEvent(nil), h.history[:h.next]...)
	}
	out := make([]types.AdminEvent, 0, len(h.history))
	out = append(out, h.history[h.next:]...)
	return append(out, h.history[:h.next]...)
}
