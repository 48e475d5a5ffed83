package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// PresenceEvent is an online/offline edge for one identity.
type PresenceEvent struct {
	UserID uuid.UUID
	Online bool
	At     time.Time
}

// PresenceSink receives presence edges. It is called with the hub lock held, so edges
// arrive in registry order, and must not block.
type PresenceSink func(PresenceEvent)

// Hub is the connection registry: active clients per user and room membership per client.
// Nothing else holds references to live connections.
type Hub struct {
	// Registered clients. Maps user ID to a set of active client connections.
	clients map[uuid.UUID]map[*Client]bool

	// Clients that joined each room, and the reverse.
	roomMembers map[uuid.UUID]map[*Client]bool
	clientRooms map[*Client]map[uuid.UUID]bool

	presence PresenceSink
	log      *logrus.Logger

	// Mutex to protect concurrent access to the maps above.
	mu sync.RWMutex
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:     make(map[uuid.UUID]map[*Client]bool),
		roomMembers: make(map[uuid.UUID]map[*Client]bool),
		clientRooms: make(map[*Client]map[uuid.UUID]bool),
		log:         log,
	}
}

// SetPresenceSink installs the receiver of online/offline edges.
func (h *Hub) SetPresenceSink(sink PresenceSink) {
	h.mu.Lock()
	h.presence = sink
	h.mu.Unlock()
}

// Register adds a connection. It reports true when this is the user's first connection.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	userClients, ok := h.clients[client.UserID]
	if !ok {
		userClients = make(map[*Client]bool)
		h.clients[client.UserID] = userClients
	}
	if userClients[client] {
		return false
	}
	userClients[client] = true

	online := len(userClients) == 1
	h.log.WithFields(logrus.Fields{
		"user_id":       client.UserID,
		"connection_id": client.ID,
		"connections":   len(userClients),
	}).Info("WebSocket client registered")

	if online {
		h.emit(client.UserID, true)
	}
	return online
}

// Unregister removes a connection, drops its room memberships and closes its send
// channel. It reports true when the user's last connection went away.
func (h *Hub) Unregister(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	userClients, ok := h.clients[client.UserID]
	if !ok || !userClients[client] {
		return false
	}
	delete(userClients, client)

	for roomID := range h.clientRooms[client] {
		h.removeFromRoom(client, roomID)
	}
	delete(h.clientRooms, client)
	close(client.Send)

	offline := len(userClients) == 0
	if offline {
		delete(h.clients, client.UserID)
		h.log.WithField("user_id", client.UserID).Info("WebSocket client unregistered, user has no more connections")
		h.emit(client.UserID, false)
	} else {
		h.log.WithFields(logrus.Fields{
			"user_id":     client.UserID,
			"connections": len(userClients),
		}).Info("WebSocket client unregistered")
	}
	return offline
}

// ActiveConnections returns a snapshot of the user's connections.
func (h *Hub) ActiveConnections(userID uuid.UUID) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return lo.Keys(h.clients[userID])
}

func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// ConnectedUsers counts identities with at least one connection.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// JoinRoom adds a registered client to the room's broadcast set and reports whether it
// was newly added.
func (h *Hub) JoinRoom(client *Client, roomID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[client.UserID][client] || h.roomMembers[roomID][client] {
		return false
	}
	if _, ok := h.roomMembers[roomID]; !ok {
		h.roomMembers[roomID] = make(map[*Client]bool)
	}
	h.roomMembers[roomID][client] = true
	if _, ok := h.clientRooms[client]; !ok {
		h.clientRooms[client] = make(map[uuid.UUID]bool)
	}
	h.clientRooms[client][roomID] = true
	return true
}

// LeaveRoom reports whether the client was in the room.
func (h *Hub) LeaveRoom(client *Client, roomID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clientRooms[client][roomID] {
		return false
	}
	h.removeFromRoom(client, roomID)
	delete(h.clientRooms[client], roomID)
	return true
}

func (h *Hub) IsClientInRoom(client *Client, roomID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.roomMembers[roomID][client]
}

// IsUserInRoom reports whether any connection of userID has joined roomID.
func (h *Hub) IsUserInRoom(userID, roomID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.roomMembers[roomID] {
		if client.UserID == userID {
			return true
		}
	}
	return false
}

// SendToUser queues payload on every connection of userID and returns how many took it.
func (h *Hub) SendToUser(userID uuid.UUID, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.deliver(h.clients[userID], payload, uuid.Nil)
}

// BroadcastRoom queues payload on every connection joined to roomID, skipping the
// connections of exclude (uuid.Nil skips nobody).
func (h *Hub) BroadcastRoom(roomID uuid.UUID, payload []byte, exclude uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.deliver(h.roomMembers[roomID], payload, exclude)
}

// SendToClient queues payload on a single connection.
func (h *Hub) SendToClient(client *Client, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.clients[client.UserID][client] {
		return false
	}
	return h.trySend(client, payload)
}

func (h *Hub) deliver(targets map[*Client]bool, payload []byte, exclude uuid.UUID) int {
	sent := 0
	for client := range targets {
		if exclude != uuid.Nil && client.UserID == exclude {
			continue
		}
		if h.trySend(client, payload) {
			sent++
		}
	}
	return sent
}

// trySend never blocks; a slow connection loses the payload.
func (h *Hub) trySend(client *Client, payload []byte) bool {
	select {
	case client.Send <- payload:
		return true
	default:
		h.log.WithFields(logrus.Fields{
			"user_id":       client.UserID,
			"connection_id": client.ID,
		}).Warn("Send buffer full, message dropped for this client")
		return false
	}
}

func (h *Hub) removeFromRoom(client *Client, roomID uuid.UUID) {
	members := h.roomMembers[roomID]
	delete(members, client)
	if len(members) == 0 {
		delete(h.roomMembers, roomID)
	}
}

func (h *Hub) emit(userID uuid.UUID, online bool) {
	if h.presence == nil {
		return
	}
	h.presence(PresenceEvent{UserID: userID, Online: online, At: time.Now()})
}
