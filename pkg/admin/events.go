package admin

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"vibehub/gateway/pkg/proxy"
)

// subscriberBuffer is the per-subscriber event queue depth. A subscriber
// that falls this far behind starts losing events rather than slowing
// the request path.
const subscriberBuffer = 16

// EventBroker fans provider status events out to SSE subscribers. It
// implements the proxy's Notifier contract: Publish never blocks, and a
// slow or dead subscriber only loses its own events.
type EventBroker struct {
	mu          sync.Mutex
	subscribers map[chan proxy.StatusEvent]struct{}
	closed      bool
}

// NewEventBroker creates an empty broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{
		subscribers: make(map[chan proxy.StatusEvent]struct{}),
	}
}

// Publish implements proxy.Notifier. Events are delivered best-effort
// with a non-blocking send per subscriber.
func (b *EventBroker) Publish(event proxy.StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full, drop the event for this one.
		}
	}
}

// subscribe registers a new subscriber channel.
func (b *EventBroker) subscribe() chan proxy.StatusEvent {
	ch := make(chan proxy.StatusEvent, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = struct{}{}
	return ch
}

// unsubscribe removes a subscriber channel.
func (b *EventBroker) unsubscribe(ch chan proxy.StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// Close disconnects all subscribers. Publishes after Close are dropped.
func (b *EventBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}

// handleEvents streams provider status events to the client as
// server-sent events until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broker.subscribe()
	defer s.broker.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				slog.Error("failed to encode status event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: provider-status\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
