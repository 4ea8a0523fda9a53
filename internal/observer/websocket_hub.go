package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go-herbal-inspector/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	broadcastQueue = 64
)

// WebSocketHub streams analysis events to connected websocket clients.
// It is an Observer; Run must be started before events are delivered.
type WebSocketHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
}

// NewWebSocketHub creates a hub with no clients
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastQueue),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run owns the client set until ctx is cancelled, then disconnects everyone
func (h *WebSocketHub) Run(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			logger.WithField("clients", count).Debug("Event stream client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			logger.WithField("clients", count).Debug("Event stream client disconnected")

		case message := <-h.broadcast:
			h.send(websocket.TextMessage, message)

		case <-ticker.C:
			h.send(websocket.PingMessage, nil)
		}
	}
}

// send writes to every client, dropping the ones that fail
func (h *WebSocketHub) send(messageType int, data []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(messageType, data); err != nil {
			logger.WithError(err).Debug("Dropping event stream client")
			delete(h.clients, client)
			client.Close()
		}
	}
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the client goes away. Incoming messages are ignored.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// OnEvent queues the event for broadcast. Events are dropped when the
// queue is full so slow clients never block the pipeline.
func (h *WebSocketHub) OnEvent(ctx context.Context, event AnalysisEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.WithError(err).Warn("Failed to encode analysis event")
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		logger.WithField("event_type", event.EventType).Warn("Event stream queue full, dropping event")
	}
}

// GetObserverName returns the observer name
func (h *WebSocketHub) GetObserverName() string {
	return "websocket_hub"
}
