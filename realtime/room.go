package realtime

import "sync"

// Room is a named broadcast group — one per game, one per user, plus the
// shared lobby.
type Room struct {
	Name string

	mu      sync.Mutex
	clients map[*Client]struct{}
}

func NewRoom(name string) *Room {
	return &Room{Name: name, clients: make(map[*Client]struct{})}
}

func (r *Room) Join(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = struct{}{}
}

// Leave removes the client and reports how many remain.
func (r *Room) Leave(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c)
	return len(r.clients)
}

func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Broadcast delivers the event to every client in the room. Pass a sender
// to skip echoing back to the origin connection.
func (r *Room) Broadcast(sender *Client, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		if c == sender {
			continue
		}
		c.Send(event)
	}
}
