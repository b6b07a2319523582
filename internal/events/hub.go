// Package events streams actuation records to WebSocket clients.
package events

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/micro-ha/pod-door-controller/internal/model"
)

const (
	clientBuffer = 32
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Hub fans actuation records out to connected clients. Slow clients drop
// records rather than stall the executor.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	door string
	send chan model.Actuation
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: map[*client]struct{}{},
	}
}

// Record broadcasts a; it satisfies executor.Sink and never blocks.
func (h *Hub) Record(_ context.Context, a model.Actuation) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.door != "" && c.door != a.DoorKey {
			continue
		}
		select {
		case c.send <- a:
		default:
			h.logger.Warn("event client too slow; dropping record", "id", a.ID)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams records as JSON text frames.
// The optional door query parameter limits the stream to one door key.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("event stream upgrade failed", "err", err)
		return
	}
	c := &client{door: r.URL.Query().Get("door"), send: make(chan model.Actuation, clientBuffer)}
	h.register(c)
	defer h.unregister(c)
	defer conn.Close()

	done := make(chan struct{})
	go h.readLoop(conn, done)
	h.writeLoop(r.Context(), conn, c, done)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// readLoop discards client frames and handles pongs until the peer goes away.
func (h *Hub) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, c *client, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeTimeout))
			return
		case <-done:
			return
		case rec := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(rec); err != nil {
				h.logger.Debug("event client write failed", "err", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
