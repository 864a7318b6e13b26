package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user across all rooms.
	maxConnsPerUser = 8
	// Max total connections.
	maxTotalConns = 10000
)

// RoomHub tracks which sockets are subscribed to which room and user
// channels. Subscriptions are process-local and rebuilt as clients
// reconnect; nothing here is durable or authoritative.
type RoomHub struct {
	mu         sync.RWMutex
	rooms      map[uint]map[*Client]struct{}
	users      map[uint]map[*Client]struct{}
	totalConns int
}

// NewRoomHub creates a new RoomHub instance.
func NewRoomHub() *RoomHub {
	return &RoomHub{
		rooms: make(map[uint]map[*Client]struct{}),
		users: make(map[uint]map[*Client]struct{}),
	}
}

// Register subscribes a connection to its room channel and its user channel.
// Returns the Client, or an error if connection limits are exceeded.
func (h *RoomHub) Register(roomID, userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.totalConns >= maxTotalConns {
		return nil, errors.New("server connection limit reached")
	}
	if len(h.users[userID]) >= maxConnsPerUser {
		return nil, errors.New("user connection limit reached")
	}

	client := &Client{
		hub:    h,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		UserID: userID,
		RoomID: roomID,
	}

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][client] = struct{}{}

	if h.users[userID] == nil {
		h.users[userID] = make(map[*Client]struct{})
	}
	h.users[userID][client] = struct{}{}

	h.totalConns++
	return client, nil
}

// UnregisterClient removes a connection from both channels.
func (h *RoomHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m, ok := h.rooms[client.RoomID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
		}
		if len(m) == 0 {
			delete(h.rooms, client.RoomID)
		}
	}
	if m, ok := h.users[client.UserID]; ok {
		delete(m, client)
		if len(m) == 0 {
			delete(h.users, client.UserID)
		}
	}
}

// BroadcastRoom sends message to every connection subscribed to the room.
func (h *RoomHub) BroadcastRoom(roomID uint, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomID] {
		c.TrySend(message)
	}
}

// BroadcastUser sends message to all of one user's connections, across rooms.
func (h *RoomHub) BroadcastUser(userID uint, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		c.TrySend(message)
	}
}

// RoomConnections reports how many sockets are subscribed to the room.
func (h *RoomHub) RoomConnections(roomID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// IsOnline reports whether a user has at least one live connection.
func (h *RoomHub) IsOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// UserConnectionsInRoom reports how many of the user's sockets are
// subscribed to the given room. Presence cleanup is room-scoped, so a
// surviving socket in another room must not count.
func (h *RoomHub) UserConnectionsInRoom(roomID, userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.users[userID] {
		if c.RoomID == roomID {
			n++
		}
	}
	return n
}

// StartWiring connects the Notifier to this hub: events published by other
// instances arrive over Redis and fan out to locally connected sockets.
func (h *RoomHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartEventSubscriber(ctx, func(channel, payload string) {
		var id uint
		if _, err := fmt.Sscanf(channel, "room:events:%d", &id); err == nil {
			h.BroadcastRoom(id, []byte(payload))
			return
		}
		if _, err := fmt.Sscanf(channel, "user:events:%d", &id); err == nil {
			h.BroadcastUser(id, []byte(payload))
		}
	})
}
