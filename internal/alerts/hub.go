// Package alerts persists system alerts and streams them to dashboards over
// websockets.
package alerts

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"actms/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBuffer     = 16
)

// Event is one message on the alert stream.
type Event struct {
	Type      string        `json:"type"`
	Alert     *models.Alert `json:"alert,omitempty"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

const (
	EventConnected = "connection.established"
	EventAlert     = "alert.created"
)

// Hub fans alert events out to connected websocket clients. Membership is
// owned by the Run loop; each client writes from its own goroutine.
type Hub struct {
	log        *zap.Logger
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
	clients    map[uuid.UUID]*client
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	done       chan struct{}
	pingPeriod time.Duration
}

type client struct {
	id   uuid.UUID
	hub  *Hub
	conn *websocket.Conn
	send chan Event
}

// NewHub builds a hub. checkOrigin may be nil to accept any origin.
func NewHub(log *zap.Logger, checkOrigin func(*http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		log: log.Named("alerts.hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clients:    make(map[uuid.UUID]*client),
		broadcast:  make(chan Event, 100),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		pingPeriod: pingPeriod,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()
			h.log.Info("websocket client registered", zap.String("client_id", c.id.String()))
			h.deliver(c, Event{Type: EventConnected, Message: "Connected to alert stream", Timestamp: time.Now().UTC()})
		case c := <-h.unregister:
			h.drop(c)
		case ev := <-h.broadcast:
			h.mu.RLock()
			targets := make([]*client, 0, len(h.clients))
			for _, c := range h.clients {
				targets = append(targets, c)
			}
			h.mu.RUnlock()
			for _, c := range targets {
				h.deliver(c, ev)
			}
		}
	}
}

// deliver queues ev for c and drops clients that cannot keep up.
func (h *Hub) deliver(c *client, ev Event) {
	select {
	case c.send <- ev:
	default:
		h.log.Warn("client send buffer full, disconnecting", zap.String("client_id", c.id.String()))
		h.drop(c)
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
		h.log.Info("websocket client unregistered", zap.String("client_id", c.id.String()))
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}

// Publish queues ev for every client. It never blocks: events are dropped
// when the hub is stopped or its queue is full.
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	select {
	case <-h.done:
	case h.broadcast <- ev:
	default:
		h.log.Warn("alert broadcast queue full, event dropped", zap.String("type", ev.Type))
	}
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until either side hangs up.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err), zap.String("remote_addr", r.RemoteAddr))
		return
	}
	c := &client{id: uuid.New(), hub: h, conn: conn, send: make(chan Event, sendBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump only consumes control frames and detects disconnects.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read error", zap.String("client_id", c.id.String()), zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
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
