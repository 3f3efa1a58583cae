package control

import (
	"encoding/json"
	"sync"
)

// Hub tracks the connected WebSocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	onCount func(int)
}

// NewHub creates an empty hub. onCount, when set, is called with the new
// client count after every connect and disconnect.
func NewHub(onCount func(int)) *Hub {
	return &Hub{clients: make(map[*Client]struct{}), onCount: onCount}
}

func (h *Hub) register(c *Client) int {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	if h.onCount != nil {
		h.onCount(n)
	}
	return n
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if h.onCount != nil {
		h.onCount(n)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends v to every connected client. Clients with a full send
// queue miss the message. Broadcast never blocks and never logs, so it is
// safe to call from the log store hook.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.enqueue(data)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}
