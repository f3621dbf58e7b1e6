package relay

import (
	"sync"

	"github.com/codefionn/threadgate/internal/logger"
)

// Hub is the connection registry. It owns the map of live clients; nothing
// outside this type touches the backing map.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.ID] = c
	logger.Info("Connection registered: %s (total: %d)", c.ID, len(h.clients))
}

// Remove drops a client from the hub. Removing an unknown id is a no-op;
// a socket may close mid-operation.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		logger.Info("Connection removed: %s (total: %d)", id, len(h.clients))
	}
}

// Get looks up a client by connection id
func (h *Hub) Get(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[id]
	return c, ok
}

// Count returns the number of registered connections
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a frame to every authenticated connection of the given
// user except excludeID. Per-connection failures are skipped; a dead socket
// must not stop delivery to the rest, and removal is the close handler's
// job, not ours.
func (h *Hub) Broadcast(frame interface{}, userID, excludeID string) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if c.ID == excludeID || !c.Authenticated() || c.UserID() != userID {
			continue
		}
		c.Send(frame)
	}
}

// Shutdown closes all client connections
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	logger.Info("Shutting down hub, closing %d connections", len(clients))
	for _, c := range clients {
		c.Stop()
	}
}
