package realtime

import (
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// Client is one connected socket. Writes are serialized through the mutex
// because fiber websocket connections are not safe for concurrent writers.
type Client struct {
	UserID string

	conn *websocket.Conn
	mu   sync.Mutex
	hook func(Event)
}

func NewClient(conn *websocket.Conn, userID string) *Client {
	return &Client{conn: conn, UserID: userID}
}

// SetSendHook replaces the default socket sender (used in tests).
func (c *Client) SetSendHook(fn func(Event)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

func (c *Client) Send(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hook != nil {
		c.hook(event)
		return
	}
	if c.conn == nil {
		return
	}
	_ = c.conn.WriteJSON(event)
}
