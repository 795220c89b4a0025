package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"hostwatch/internal/models"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Stream message types
const (
	MessageSample = "sample"
	MessageAlert  = "alert"
	MessagePong   = "pong"
	MessageError  = "error"
	MessageHello  = "hello"
)

// WebSocketMessage is one frame on the live stream
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// ClientConnection represents a connected WebSocket client
type ClientConnection struct {
	ID       string
	Username string
	Conn     *websocket.Conn
	Send     chan WebSocketMessage
}

// WebSocketHub fans collector events out to every connected client. Slow
// clients lose messages instead of stalling the collector.
type WebSocketHub struct {
	clients   map[string]*ClientConnection
	broadcast chan WebSocketMessage
	done      chan struct{}
	closed    bool
	seq       atomic.Uint64
	mu        sync.RWMutex
	log       logrus.FieldLogger
}

var _ CollectorObserver = (*WebSocketHub)(nil)

// NewWebSocketHub creates a hub. Call Run to start dispatching.
func NewWebSocketHub(log logrus.FieldLogger) *WebSocketHub {
	return &WebSocketHub{
		clients:   make(map[string]*ClientConnection),
		broadcast: make(chan WebSocketMessage, 256),
		done:      make(chan struct{}),
		log:       log,
	}
}

// Run manages the hub's event loop until ctx is done, then closes every client
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.closed = true
			for id, client := range h.clients {
				close(client.Send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.Send <- msg:
				default:
					// Client's send channel is full, skip this message
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a new client to the hub. It returns false once the hub has
// stopped; the caller then still owns client.Send.
func (h *WebSocketHub) Register(client *ClientConnection) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[client.ID] = client
	total := len(h.clients)
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{"client": client.ID, "total": total}).Info("client connected")
	return true
}

// Unregister removes a client from the hub and closes its send channel
func (h *WebSocketHub) Unregister(clientID string) {
	h.mu.Lock()
	client, exists := h.clients[clientID]
	if exists {
		delete(h.clients, clientID)
		close(client.Send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if exists {
		h.log.WithFields(logrus.Fields{"client": clientID, "total": total}).Info("client disconnected")
	}
}

// Done is closed when Run returns
func (h *WebSocketHub) Done() <-chan struct{} {
	return h.done
}

// Broadcast queues msg for every client, dropping it when the queue is full
func (h *WebSocketHub) Broadcast(msg WebSocketMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.WithField("type", msg.Type).Debug("broadcast queue full, dropping message")
	}
}

// SendMessage sends a message to a specific client. It reports false when the
// client is gone or its queue is full.
func (h *WebSocketHub) SendMessage(clientID string, msg WebSocketMessage) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[clientID]
	if !exists {
		return false
	}
	select {
	case client.Send <- msg:
		return true
	default:
		return false
	}
}

// NextClientID returns an id unique for the hub's lifetime
func (h *WebSocketHub) NextClientID(remote string) string {
	return fmt.Sprintf("%s-%d", remote, h.seq.Add(1))
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnSample streams each recorded sample
func (h *WebSocketHub) OnSample(s models.Sample) {
	h.Broadcast(WebSocketMessage{Type: MessageSample, Timestamp: s.Timestamp, Data: s})
}

// OnAlert streams each stored alert
func (h *WebSocketHub) OnAlert(a models.Alert) {
	h.Broadcast(WebSocketMessage{Type: MessageAlert, Timestamp: a.Timestamp, Data: a})
}
