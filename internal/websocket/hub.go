package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a real-time change notification for one circle.
type Message struct {
	Type     string         `json:"type"`
	CircleID int64          `json:"circle_id"`
	Entity   string         `json:"entity"`
	Action   string         `json:"action"`
	ID       int64          `json:"id,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(circleID int64, entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:     fmt.Sprintf("%s_%s", entity, action),
		CircleID: circleID,
		Entity:   entity,
		Action:   action,
		ID:       id,
		Extra:    extra,
	}
}

// Hub keeps one room of clients per circle and fans messages out to the
// room of the circle they concern.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int64]map[*Client]struct{}
	logger *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[int64]map[*Client]struct{}),
		logger: logger,
	}
}

// Register adds a client to its circle's room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.circleID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.circleID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if room, ok := h.rooms[c.circleID]; ok {
		if _, ok := room[c]; ok {
			delete(room, c)
			close(c.send)
		}
		if len(room) == 0 {
			delete(h.rooms, c.circleID)
		}
	}
	h.mu.Unlock()
}

// Broadcast sends a message to every client watching msg.CircleID.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	removed := msg.Entity == "member" && msg.Action == "removed"
	for c := range h.rooms[msg.CircleID] {
		select {
		case c.send <- data:
		default:
			// Full buffer: drop rather than block the mutation.
		}
		if removed && c.userID == msg.ID {
			c.evict()
		}
	}
}

// BroadcastCircle builds and broadcasts a message for circleID.
func (h *Hub) BroadcastCircle(circleID int64, entity, action string, id int64, extra map[string]any) {
	h.Broadcast(NewMessage(circleID, entity, action, id, extra))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	return n
}
