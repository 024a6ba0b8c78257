package ws

import (
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Hub groups live connections by authenticated user so one user's devices
// can be addressed together. Connections enter a group only after a
// successful handshake; before that they receive nothing. Nothing here is
// durable: a disconnect just removes the connection from its group.
type Hub struct {
	log *zap.Logger

	mu    sync.RWMutex
	users map[uuid.UUID]map[*Client]struct{}
}

// NewHub constructs an empty hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{log: log, users: make(map[uuid.UUID]map[*Client]struct{})}
}

// Join adds an authenticated connection to its user's group.
func (h *Hub) Join(c *Client, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.users[userID]
	if !ok {
		group = make(map[*Client]struct{})
		h.users[userID] = group
	}
	group[c] = struct{}{}
}

// Leave removes a connection from its group, if it ever joined one.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.users[c.userID]
	if !ok {
		return
	}
	delete(group, c)
	if len(group) == 0 {
		delete(h.users, c.userID)
	}
}

// Broadcast fans a message out to every connection in the user's group,
// including the one that originated the action: all devices render from the
// same authoritative message instead of a local guess. Implements
// service.Broadcaster.
func (h *Hub) Broadcast(userID uuid.UUID, event string, payload any) {
	msg, err := Encode(event, payload)
	if err != nil {
		h.log.Error("broadcast encode", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		if !c.enqueue(msg) {
			h.log.Warn("dropped broadcast to slow connection",
				zap.String("event", event),
				zap.String("user_id", userID.String()),
			)
		}
	}
}

// ConnectionCount reports the size of a user's group.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
