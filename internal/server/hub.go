package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/formrelay/internal/logging"
	"github.com/muurk/formrelay/internal/submit"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// client is one websocket subscriber. Writes are serialized by mu.
type client struct {
	conn *websocket.Conn
	form string
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// Hub fans snapshots out to the websocket clients watching each form. It
// implements submit.Observer.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	upgrader websocket.Upgrader
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Serve upgrades the request and streams snapshots for form until the
// client disconnects. initial is sent first so late subscribers see the
// current state.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, form string, initial submit.Snapshot) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	c := &client{conn: conn, form: form}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	logging.LogConnection(r.RemoteAddr, "websocket_subscribed")

	defer func() {
		h.remove(c)
		logging.LogConnection(r.RemoteAddr, "websocket_closed")
	}()

	if data, err := json.Marshal(initial); err == nil {
		if err := c.write(websocket.TextMessage, data); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go h.ping(c, done)
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Keep connection alive until client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) ping(c *client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// StateChanged implements submit.Observer
func (h *Hub) StateChanged(s submit.Snapshot) {
	data, err := json.Marshal(s)
	if err != nil {
		logging.Error("Failed to marshal snapshot", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c.form == s.FormID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(websocket.TextMessage, data); err != nil {
			h.remove(c)
		}
	}
}

// AttemptFinished implements submit.Observer; outcomes are already
// reflected in the snapshots.
func (h *Hub) AttemptFinished(submit.Outcome) {}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		_ = c.conn.Close()
	}
}
