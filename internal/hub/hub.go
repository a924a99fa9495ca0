package hub

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// KindReading is the message kind carrying a telemetry envelope
const KindReading = "reading"

// DefaultBuffer is the per-subscriber queue length used when none is given
const DefaultBuffer = 64

// Message is what subscribers receive
type Message struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

// Observer is notified of subscriber churn; metrics implement it
type Observer interface {
	SubscriberAdded()
	SubscriberRemoved(dropped bool)
	ConsumerResubscribed(consumer string)
}

// Subscription is one live consumer of the hub
type Subscription struct {
	ID uuid.UUID
	C  <-chan Message

	ch chan Message
}

// Hub fans messages out to every current subscriber without blocking on any of them
type Hub struct {
	mu       sync.RWMutex
	subs     map[uuid.UUID]*Subscription
	closed   bool
	observer Observer
}

// New creates an empty hub
func New(observer Observer) *Hub {
	return &Hub{
		subs:     make(map[uuid.UUID]*Subscription),
		observer: observer,
	}
}

// Subscribe registers a consumer that receives everything published from now on.
// On a closed hub the returned subscription's channel is already closed.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Message, buffer)
	sub := &Subscription{ID: uuid.New(), C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub.ID] = sub
	if h.observer != nil {
		h.observer.SubscriberAdded()
	}
	log.Debug().Str("subscriber_id", sub.ID.String()).Int("subscribers", len(h.subs)).Msg("Subscriber connected")
	return sub
}

// Unsubscribe removes the subscriber and closes its channel; unknown ids are ignored
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(id, false)
}

// remove must be called with the write lock held
func (h *Hub) remove(id uuid.UUID, dropped bool) {
	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.ch)
	if h.observer != nil {
		h.observer.SubscriberRemoved(dropped)
	}
}

// Publish delivers msg to every subscriber with room in its queue and returns
// how many received it. Subscribers whose queue is full are removed.
func (h *Hub) Publish(msg Message) int {
	var full []uuid.UUID
	delivered := 0

	h.mu.RLock()
	for id, sub := range h.subs {
		select {
		case sub.ch <- msg:
			delivered++
		default:
			full = append(full, id)
		}
	}
	h.mu.RUnlock()

	if len(full) > 0 {
		h.mu.Lock()
		for _, id := range full {
			log.Warn().Str("subscriber_id", id.String()).Msg("Subscriber queue full, dropping subscriber")
			h.remove(id, true)
		}
		h.mu.Unlock()
	}

	return delivered
}

// Count returns the number of live subscribers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Closed reports whether Close has been called
func (h *Hub) Closed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// Close disconnects every subscriber; later publishes reach nobody
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id := range h.subs {
		h.remove(id, false)
	}
	log.Info().Msg("Broadcast hub closed")
}

// Forward subscribes with the given buffer and drains messages into fn until
// the context ends or the hub closes. A consumer dropped for falling behind is
// resubscribed; messages published while it was detached are not replayed.
// Handler errors are logged and do not stop forwarding.
func Forward(ctx context.Context, h *Hub, buffer int, name string, fn func(context.Context, Message) error) error {
	sub := h.Subscribe(buffer)
	defer func() { h.Unsubscribe(sub.ID) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C:
			if !ok {
				if h.Closed() {
					log.Info().Str("consumer", name).Msg("Hub closed, consumer stopping")
					return nil
				}
				log.Warn().Str("consumer", name).Msg("Hub consumer fell behind, resubscribing")
				if h.observer != nil {
					h.observer.ConsumerResubscribed(name)
				}
				sub = h.Subscribe(buffer)
				continue
			}
			if err := fn(ctx, msg); err != nil {
				log.Error().Err(err).Str("consumer", name).Msg("Failed to handle hub message")
			}
		}
	}
}
