package gateway

import "sync"

// Hub fans scan results and device-status updates out to dashboard
// listeners. Slow listeners drop messages instead of blocking scans.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan any]struct{}
	buffer int
}

// NewHub creates a hub with the given per-subscriber buffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{subs: make(map[chan any]struct{}), buffer: buffer}
}

// Subscribe registers a listener channel.
func (h *Hub) Subscribe() chan any {
	ch := make(chan any, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener.
func (h *Hub) Unsubscribe(ch chan any) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// Broadcast delivers to every listener without blocking.
func (h *Hub) Broadcast(v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- v:
		default:
		}
	}
}
