package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/gridiron-odds/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Pending broadcasts before new ones are dropped.
	broadcastBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is pushed to browser clients watching a page.
type Message struct {
	PageID string      `json:"page_id"`
	Event  string      `json:"event"`
	Data   interface{} `json:"data,omitempty"`
}

// Client is one browser connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	pageID string
}

// Hub tracks browser clients per page and fans page snapshots out to them.
type Hub struct {
	// Registered clients by page ID
	pages   map[string]map[*Client]bool
	clients int

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubMetrics reports the connected client count to m.
func WithHubMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a hub. A nil logger discards output.
func NewHub(logger *zap.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		pages:      make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     logger.Named("hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run starts the hub's event loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-h.quit:
			for _, clients := range h.pages {
				for client := range clients {
					h.unregisterClient(client)
				}
			}
			return
		}
	}
}

// Stop ends Run and disconnects every client.
func (h *Hub) Stop() {
	close(h.quit)
}

// ServeWS upgrades the request and subscribes the connection to pageID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, pageID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		pageID: pageID,
	}

	select {
	case h.register <- client:
	case <-h.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// BroadcastToPage queues an event for every client watching pageID. It never
// blocks; when the queue is full the event is dropped, since a later
// snapshot supersedes it.
func (h *Hub) BroadcastToPage(pageID, event string, data interface{}) {
	message := &Message{
		PageID: pageID,
		Event:  event,
		Data:   data,
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast queue full, dropping event",
			zap.String("page_id", pageID), zap.String("event", event))
	}
}

// watchers must only be called from the event loop goroutine.
func (h *Hub) watchers(pageID string) int {
	return len(h.pages[pageID])
}

func (h *Hub) registerClient(client *Client) {
	if h.pages[client.pageID] == nil {
		h.pages[client.pageID] = make(map[*Client]bool)
	}
	h.pages[client.pageID][client] = true
	h.clients++
	h.metrics.BrowserClients(h.clients)

	h.logger.Debug("client registered",
		zap.String("page_id", client.pageID),
		zap.Int("clients", h.watchers(client.pageID)))
}

func (h *Hub) unregisterClient(client *Client) {
	clients, ok := h.pages[client.pageID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	h.clients--
	h.metrics.BrowserClients(h.clients)

	if len(clients) == 0 {
		delete(h.pages, client.pageID)
	}

	h.logger.Debug("client unregistered",
		zap.String("page_id", client.pageID),
		zap.Int("remaining", h.watchers(client.pageID)))
}

func (h *Hub) broadcastMessage(message *Message) {
	clients, ok := h.pages[message.PageID]
	if !ok {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal broadcast", zap.Error(err))
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
		default:
			// slow client, drop it
			h.unregisterClient(client)
		}
	}
}

// readPump discards client input and notices disconnects.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("browser connection error", zap.Error(err))
			}
			return
		}
	}
}

// writePump sends queued events and keeps the connection alive with pings.
func (c *Client) writePump() {
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
				// The hub closed the channel
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
