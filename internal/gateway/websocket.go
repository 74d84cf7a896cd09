package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

// WebSocketHub pushes every event as a JSON text frame to connected
// dashboard clients. It is also the http.Handler that accepts them.
type WebSocketHub struct {
	upgrader websocket.Upgrader
	clients  map[*wsClient]struct{}
	mu       sync.Mutex
	logger   *zap.Logger
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewWebSocketHub creates an empty hub.
func NewWebSocketHub(logger *zap.Logger) *WebSocketHub {
	return &WebSocketHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
		logger:  logger,
	}
}

func (h *WebSocketHub) Name() string { return "websocket" }

// ServeHTTP upgrades the request and keeps the client until it disconnects.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &wsClient{conn: conn}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.String("remote", r.RemoteAddr))

	// Clients only listen; reading detects the close.
	go func() {
		defer h.drop(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish writes ev to every client. Clients that fail to accept the frame
// are disconnected.
func (h *WebSocketHub) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.mu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.conn.WriteMessage(websocket.TextMessage, data)
		c.mu.Unlock()
		if err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			h.drop(c)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *WebSocketHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *WebSocketHub) drop(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}

// Close disconnects all clients.
func (h *WebSocketHub) Close() error {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()
	for c := range clients {
		_ = c.conn.Close()
	}
	return nil
}
