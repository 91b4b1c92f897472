package console

import (
	"context"
	"log"
	"sync"
	"time"

	"reviewdesk/internal/review"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Frame is one websocket message.
type Frame struct {
	Type   string           `json:"type"`
	State  *review.Snapshot `json:"state,omitempty"`
	Notice *NoticeFrame     `json:"notice,omitempty"`
}

// NoticeFrame is a review notice with its localized text.
type NoticeFrame struct {
	review.Notice
	Text string `json:"text"`
}

// Client is one connected console websocket.
type Client struct {
	Conn    *websocket.Conn
	Subject string
	Send    chan []byte
}

// Hub tracks the websocket clients of every moderator and pushes frames to
// them. Slow clients miss frames rather than block the sender.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	// onPresence is called from Run with the number of clients a
	// moderator has left after each change. It must not block.
	onPresence func(subject string, connected int)
}

func NewHub(onPresence func(subject string, connected int)) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		onPresence: onPresence,
	}
}

// Run processes registrations until ctx is done, then disconnects every
// client. It must run for Register and Unregister to return.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.clients[client.Subject]; !ok {
				h.clients[client.Subject] = make(map[*Client]bool)
			}
			h.clients[client.Subject][client] = true
			n := len(h.clients[client.Subject])
			h.mu.Unlock()
			log.Printf("[Hub Sub:%s] Client registered (%d connected)", client.Subject, n)
			h.presence(client.Subject, n)

		case client := <-h.unregister:
			h.mu.Lock()
			clients, ok := h.clients[client.Subject]
			if !ok || !clients[client] {
				h.mu.Unlock()
				continue
			}
			delete(clients, client)
			close(client.Send)
			n := len(clients)
			if n == 0 {
				delete(h.clients, client.Subject)
			}
			h.mu.Unlock()
			log.Printf("[Hub Sub:%s] Client unregistered (%d connected)", client.Subject, n)
			h.presence(client.Subject, n)

		case <-ctx.Done():
			h.mu.Lock()
			for subject, clients := range h.clients {
				for client := range clients {
					close(client.Send)
				}
				delete(h.clients, subject)
			}
			h.mu.Unlock()
			log.Println("Hub stopped, all clients disconnected.")
			return
		}
	}
}

func (h *Hub) presence(subject string, n int) {
	if h.onPresence != nil {
		h.onPresence(subject, n)
	}
}

// Register adds a client. It reports false once the hub stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Connected returns how many clients subject has.
func (h *Hub) Connected(subject string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[subject])
}

// Publish sends frame to every client of subject.
func (h *Hub) Publish(subject string, frame Frame) {
	message, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[Hub Sub:%s] Error marshaling %s frame: %v", subject, frame.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[subject] {
		select {
		case client.Send <- message:
		default:
		}
	}
}

// writePump forwards queued frames to the connection and keeps it alive
// with pings. It owns all writes to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and unregisters the client once the
// connection fails.
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(4096)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Hub Sub:%s] Read error: %v", c.Subject, err)
			}
			return
		}
	}
}
