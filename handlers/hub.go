package handlers

import (
	"log"
	"sync"

	"github.com/gofiber/websocket/v2"
)

type eventFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Client is one live WebSocket session.
type Client struct {
	UserID    string
	SessionID string
	conn      *websocket.Conn
	writeMu   sync.Mutex
}

func NewClient(userID, sessionID string, conn *websocket.Conn) *Client {
	return &Client{UserID: userID, SessionID: sessionID, conn: conn}
}

// Send writes one event frame. Serialized: the websocket writer is not
// safe for concurrent use.
func (c *Client) Send(event string, payload any) {
	c.writeMu.Lock()
	err := c.conn.WriteJSON(eventFrame{Event: event, Data: payload})
	c.writeMu.Unlock()
	if err != nil {
		log.Printf("[HUB] write to %s failed: %v", c.UserID, err)
	}
}

// Hub maps users to their live session and implements the
// services.Notifier push capability. Pushes to users without a session
// are dropped.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Register binds a client, replacing any previous session for the user.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.UserID] = c
	h.mu.Unlock()
}

// Unregister removes the binding only if it still belongs to this
// session, so a fast reconnect is not torn down by the old socket's
// deferred cleanup.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if cur, ok := h.clients[c.UserID]; ok && cur.SessionID == c.SessionID {
		delete(h.clients, c.UserID)
	}
	h.mu.Unlock()
}

func (h *Hub) Push(userID string, event string, payload any) {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if ok {
		c.Send(event, payload)
	}
}

func (h *Hub) Broadcast(event string, payload any, excludeUserID string) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for id, c := range h.clients {
		if id == excludeUserID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Send(event, payload)
	}
}
