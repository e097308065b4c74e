package realtime

import "sync"

// Hub owns every active room and implements Publisher for the services.
// Empty rooms are pruned when their last client leaves.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewHub() *Hub { return &Hub{rooms: make(map[string]*Room)} }

func (h *Hub) getOrCreate(name string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[name]; ok {
		return r
	}
	r := NewRoom(name)
	h.rooms[name] = r
	return r
}

func (h *Hub) get(name string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[name]
	return r, ok
}

// Subscribe joins the client to the named room, creating it on demand.
func (h *Hub) Subscribe(topic string, c *Client) {
	h.getOrCreate(topic).Join(c)
}

// Unsubscribe removes the client from one room, dropping the room if it
// emptied.
func (h *Hub) Unsubscribe(topic string, c *Client) {
	room, ok := h.get(topic)
	if !ok {
		return
	}
	if room.Leave(c) == 0 {
		h.mu.Lock()
		if r, ok := h.rooms[topic]; ok && r.Size() == 0 {
			delete(h.rooms, topic)
		}
		h.mu.Unlock()
	}
}

// UnsubscribeAll detaches a disconnecting client from every room.
func (h *Hub) UnsubscribeAll(c *Client) {
	h.mu.Lock()
	names := make([]string, 0, len(h.rooms))
	for name := range h.rooms {
		names = append(names, name)
	}
	h.mu.Unlock()

	for _, name := range names {
		h.Unsubscribe(name, c)
	}
}

// Publish fans the event out to the topic's room. Publishing to a topic
// nobody subscribed to is a no-op.
func (h *Hub) Publish(topic string, event Event) {
	room, ok := h.get(topic)
	if !ok {
		return
	}
	room.Broadcast(nil, event)
}

// RoomSize reports connected-client count for a topic (admin dashboard).
func (h *Hub) RoomSize(topic string) int {
	room, ok := h.get(topic)
	if !ok {
		return 0
	}
	return room.Size()
}
