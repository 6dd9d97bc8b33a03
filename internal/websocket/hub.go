package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a change notification sent to the clients of one house.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub tracks connected clients per house. A message broadcast to a house
// reaches only that house's clients.
type Hub struct {
	mu     sync.RWMutex
	houses map[int64]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		houses: make(map[int64]map[*Client]struct{}),
		logger: logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.houses[c.houseID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.houses[c.houseID] = clients
	}
	clients[c] = struct{}{}
}

// Unregister removes a client and closes its send channel. It is safe to
// call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

func (h *Hub) remove(c *Client) {
	clients, ok := h.houses[c.houseID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.houses, c.houseID)
	}
}

// Broadcast sends msg to every client connected to houseID.
func (h *Hub) Broadcast(houseID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.houses[houseID] {
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop the message rather than block
			h.logger.Warn("dropping message for slow client", "house_id", houseID, "user_id", c.userID)
		}
	}
}

// DropUser disconnects userID's clients from houseID, used when the user
// stops being a member.
func (h *Hub) DropUser(houseID, userID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	dropped := 0
	for c := range h.houses[houseID] {
		if c.userID == userID {
			h.remove(c)
			dropped++
		}
	}
	return dropped
}

// CloseHouse disconnects every client of a deleted house.
func (h *Hub) CloseHouse(houseID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	dropped := 0
	for c := range h.houses[houseID] {
		h.remove(c)
		dropped++
	}
	return dropped
}

// ClientCount returns the number of connected clients across all houses.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.houses {
		n += len(clients)
	}
	return n
}

func (h *Hub) HouseClientCount(houseID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.houses[houseID])
}

// CloseAll disconnects every client, used on shutdown.
func (h *Hub) CloseAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	dropped := 0
	for _, clients := range h.houses {
		for c := range clients {
			h.remove(c)
			dropped++
		}
	}
	return dropped
}
