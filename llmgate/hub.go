package llmgate

import (
	"fmt"
	"sync"
)

const defaultSubscriptionBuffer = 64

// Hub routes stream events to per-correlation-id subscribers. Each
// subscription is a dedicated channel that is closed and removed when a
// terminal event is delivered, when the stream is stopped, or when the
// subscriber releases it. A subscription never outlives its stream.
type Hub struct {
	mu   sync.Mutex
	subs map[string]chan Event
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan Event)}
}

// Subscribe registers a subscription for the correlation id and returns
// its event channel. Registering the same id twice is an error.
func (h *Hub) Subscribe(correlationID string) (<-chan Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[correlationID]; ok {
		return nil, fmt.Errorf("stream %s already has a subscriber", correlationID)
	}
	ch := make(chan Event, defaultSubscriptionBuffer)
	h.subs[correlationID] = ch
	return ch, nil
}

// Publish delivers an event to the subscriber for its correlation id.
// Terminal events close and remove the subscription. Events for unknown
// correlation ids are dropped, so a producer that keeps publishing after
// a stop is harmless. The send and the close both happen under the
// mutex so a producer can never send on a channel a concurrent stop has
// closed. The send never blocks: when the buffer is full the event is
// dropped, since a subscriber that far behind has stopped reading and a
// blocked Stop would wedge the cancelling goroutine.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.subs[ev.CorrelationID]
	if !ok {
		return
	}
	select {
	case ch <- ev:
	default:
	}
	if ev.Terminal() {
		delete(h.subs, ev.CorrelationID)
		close(ch)
	}
}

// Stop delivers a stopped terminal event to the subscription for the
// correlation id, if one exists.
func (h *Hub) Stop(correlationID string) {
	h.Publish(Event{Type: EventStopped, CorrelationID: correlationID})
}

// Release removes a subscription without delivering a terminal event.
// Used when the caller abandons the stream (cancellation cleanup).
func (h *Hub) Release(correlationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.subs[correlationID]
	if !ok {
		return
	}
	delete(h.subs, correlationID)
	close(ch)
}

// Active returns the number of live subscriptions.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
