// Package broadcast fans every appended journal event out to every
// currently-subscribed observer, in append order. A slow observer never
// blocks the journal: its queue is bounded, and once full the oldest queued
// message is dropped to make room, with a synthetic lag notice taking its
// place.
package broadcast

import (
	"sync"

	"github.com/ralphorch/ralph/internal/domain"
)

// DefaultQueueSize is the default per-subscriber channel capacity.
const DefaultQueueSize = 64

// Message is the envelope delivered to every subscriber.
type Message struct {
	Channel string        `json:"channel"`
	Event   *domain.Event `json:"event,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Hub is a broadcast fan-out point. The zero value is not usable; call New.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan Message]struct{}
	queueSize   int
}

// New returns a Hub whose subscribers are given bounded channels of the
// given size (DefaultQueueSize if <= 0).
func New(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		subscribers: make(map[chan Message]struct{}),
		queueSize:   queueSize,
	}
}

// Subscribe registers a new observer and returns its channel. The observer
// receives only messages published after this call returns — no backfill.
// Unsubscribe must be called when the observer disconnects.
func (h *Hub) Subscribe() chan Message {
	ch := make(chan Message, h.queueSize)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes an observer's channel.
func (h *Hub) Unsubscribe(ch chan Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
}

// Publish delivers msg to every current subscriber. A full subscriber queue
// has its oldest message dropped to make room, and a lag notice is enqueued
// in its place — Publish itself never blocks on a slow observer.
func (h *Hub) Publish(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
			// Queue full: drop the oldest queued message to make room, then
			// let the subscriber know it fell behind instead of the message
			// it missed.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- Message{Channel: "system", Message: "lag"}:
			default:
			}
		}
	}
}

// PublishEvent is a convenience wrapper for the common case of broadcasting
// a freshly-appended journal event.
func (h *Hub) PublishEvent(e domain.Event) {
	h.Publish(Message{Channel: "events", Event: &e})
}
