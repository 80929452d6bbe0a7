// Package adminws implements a read-only WebSocket dashboard feed:
// window and reconciliation state transitions are broadcast to every
// connected operator dashboard, directly adapted from the teacher's
// WebSocketHub for this module's own event shapes.
package adminws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/paynet/nexus-clearing/internal/domain"
	"github.com/paynet/nexus-clearing/internal/telemetry/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one connected dashboard's outgoing message channel.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub manages connected dashboard clients and fans out broadcast
// messages to all of them, grounded on the teacher's register/
// unregister/broadcast channel loop.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
}

// NewHub constructs a Hub with its channels initialized. Call Run in a
// goroutine before serving connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
	}
}

// Run drives the hub's event loop until ctx-independent shutdown; the
// caller runs it in its own goroutine for the lifetime of the process.
func (h *Hub) Run() {
	logger := log.For("adminws").Sugar()
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			logger.Infow("dashboard client connected", "total", len(h.clients))
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			logger.Infow("dashboard client disconnected", "total", len(h.clients))
		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// message is the envelope every broadcast event is wrapped in.
type message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (h *Hub) publish(kind string, data any) {
	body, err := json.Marshal(message{Type: kind, Data: data})
	if err != nil {
		log.For("adminws").Sugar().Errorw("marshal broadcast message", "type", kind, "err", err)
		return
	}
	select {
	case h.broadcast <- body:
	default:
		log.For("adminws").Sugar().Warnw("broadcast channel full, message dropped", "type", kind)
	}
}

// WindowClosing satisfies window.Broadcaster.
func (h *Hub) WindowClosing(w domain.ClearingWindow) { h.publish("window.closing", w) }

// WindowClosed satisfies window.Broadcaster.
func (h *Hub) WindowClosed(w domain.ClearingWindow) { h.publish("window.closed", w) }

// Alert satisfies reconciliation.Broadcaster.
func (h *Hub) Alert(accountID string, severity domain.DiscrepancySeverity, diff float64) {
	h.publish("reconciliation.alert", struct {
		AccountID string                     `json:"account_id"`
		Severity  domain.DiscrepancySeverity `json:"severity"`
		Diff      float64                    `json:"diff"`
	}{accountID, severity, diff})
}

// CircuitBreaker satisfies reconciliation.Broadcaster.
func (h *Hub) CircuitBreaker(accountID string, opened bool, actor, reason string) {
	h.publish("reconciliation.circuit_breaker", struct {
		AccountID string `json:"account_id"`
		Opened    bool   `json:"opened"`
		Actor     string `json:"actor,omitempty"`
		Reason    string `json:"reason,omitempty"`
	}{accountID, opened, actor, reason})
}

// ServeHTTP upgrades the request to a WebSocket connection and
// registers the client with the hub until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.For("adminws").Sugar().Warnw("upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 64)}
	h.register <- c

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
