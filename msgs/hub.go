package msgs

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Client is one websocket connection. A user with several tabs open has
// several clients.
type Client struct {
	Conn   *websocket.Conn
	Send   chan []byte
	UserID string
}

type directMsg struct {
	UserID string
	Data   []byte
}

// Hub routes outbound payloads to the connections of a single user.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	direct     chan directMsg
	quit       chan struct{}
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan directMsg),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.clients[c.UserID] == nil {
				h.clients[c.UserID] = make(map[*Client]bool)
			}
			h.clients[c.UserID][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if conns := h.clients[c.UserID]; conns != nil && conns[c] {
				delete(conns, c)
				close(c.Send)
				if len(conns) == 0 {
					delete(h.clients, c.UserID)
				}
			}
			h.mu.Unlock()

		case m := <-h.direct:
			h.mu.Lock()
			for c := range h.clients[m.UserID] {
				select {
				case c.Send <- m.Data:
				default:
					close(c.Send)
					delete(h.clients[m.UserID], c)
				}
			}
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for _, conns := range h.clients {
				for c := range conns {
					close(c.Send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.quit)
}

// Register attaches a client. Safe against a connection racing with Stop:
// once the run loop has quit the client is simply never added.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// Push delivers data to every live connection of userID. A user with no open
// connection simply misses the push; the message is already persisted.
func (h *Hub) Push(userID string, data []byte) {
	select {
	case h.direct <- directMsg{UserID: userID, Data: data}:
	case <-h.quit:
	}
}
