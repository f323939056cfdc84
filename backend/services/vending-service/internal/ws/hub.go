package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"snackbox/backend/services/vending-service/internal/models"
)

// Hub tracks subscriber connections and fans session events out to them.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*Connection
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{connections: make(map[uuid.UUID]*Connection)}
}

// Add registers new connection.
func (h *Hub) Add(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn.ID()] = conn
}

// Remove removes connection.
func (h *Hub) Remove(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, id)
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Broadcast queues msg on every connection and returns how many accepted it.
func (h *Hub) Broadcast(msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for _, conn := range h.connections {
		if conn.Send(msg) {
			sent++
		}
	}
	return sent
}

// OnSessionEvent broadcasts event as JSON.
func (h *Hub) OnSessionEvent(_ context.Context, event models.SessionEvent) error {
	if h.Len() == 0 {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}
