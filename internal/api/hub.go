package api

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"barter/internal/game"
	"barter/internal/trade"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	commandTimeout = 5 * time.Second
)

// Hub tracks the connected player clients
type Hub struct {
	mu      sync.RWMutex
	clients map[trade.PartyID]*Client
}

// Client is one player's WebSocket connection. It is the player's outbox.
type Client struct {
	hub  *Hub
	svc  *game.Service
	conn *websocket.Conn
	id   trade.PartyID

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[trade.PartyID]*Client),
	}
}

func newClient(hub *Hub, svc *game.Service, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		svc:  svc,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()
	c.close()
}

// Notify pushes a message to one player if connected
func (h *Hub) Notify(id trade.PartyID, msg game.Message) {
	h.mu.RLock()
	c := h.clients[id]
	h.mu.RUnlock()
	if c != nil {
		c.Push(msg)
	}
}

// Online returns the number of connected clients
func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop closes every connection
func (h *Hub) Stop() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

// Push queues a message without blocking. A client that cannot keep up
// loses messages; the next view render brings it back in sync.
func (c *Client) Push(msg game.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Hub] failed to encode %s message: %v", msg.Type, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("[Hub] dropped %s message for %s", msg.Type, c.id)
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump applies client commands until the connection closes, then
// disconnects the player
func (c *Client) ReadPump() {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		if err := c.svc.Disconnect(ctx, c.id); err != nil {
			log.Printf("[Hub] disconnect %s: %v", c.id, err)
		}
		cancel()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd game.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.Push(game.Message{Type: game.MsgError, Text: "invalid command"})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		err = c.svc.Handle(ctx, c.id, cmd)
		cancel()
		if err != nil {
			c.Push(game.Message{Type: game.MsgError, Text: err.Error()})
		}
	}
}
