// Package notify broadcasts best-effort events to connected clients.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventStockUpdated is emitted after a checkout commits.
const EventStockUpdated = "stockUpdated"

type Event struct {
	Type       string    `json:"event"`
	ProductIDs []string  `json:"productIds,omitempty"`
	At         time.Time `json:"at"`
}

// Hub fans events out to subscribers. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
	lg     *zap.Logger
}

func NewHub(buffer int, lg *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		lg:     lg.Named("notify"),
	}
}

type Subscription struct {
	ch  chan Event
	hub *Hub
}

// Events is closed when the subscription or the hub is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.hub.remove(s)
}

func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan Event, h.buffer), hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.lg.Warn("Dropped event for slow subscribers",
			zap.String("event", ev.Type),
			zap.Int("dropped", dropped),
		)
	}
}

// PublishStockUpdated is the hook checkout calls after commit.
func (h *Hub) PublishStockUpdated(productIDs []string) {
	h.Publish(Event{Type: EventStockUpdated, ProductIDs: productIDs})
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription; later subscriptions are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}
