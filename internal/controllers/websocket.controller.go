package controllers

import (
	"net/http"
	"strings"
	"time"

	"hostwatch/internal/middleware"
	"hostwatch/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type clientMessage struct {
	Type string `json:"type"`
}

// StreamController upgrades ticket-bearing requests to the live sample and alert stream
type StreamController struct {
	hub      *services.WebSocketHub
	tickets  *services.StreamTicketIssuer
	sl       *middleware.SecurityLogger
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

// NewStreamController creates the handler. Browser origins are checked
// against allowedOrigins; clients that send no Origin are accepted.
func NewStreamController(hub *services.WebSocketHub, tickets *services.StreamTicketIssuer, sl *middleware.SecurityLogger, allowedOrigins []string, log logrus.FieldLogger) *StreamController {
	return &StreamController{
		hub:     hub,
		tickets: tickets,
		sl:      sl,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := strings.TrimRight(r.Header.Get("Origin"), "/")
				return origin == "" || middleware.OriginAllowed(origin, allowedOrigins)
			},
		},
	}
}

// HandleWebSocket handles incoming WebSocket connections
func (sc *StreamController) HandleWebSocket(c *gin.Context) {
	ticket := c.Query("ticket")
	if ticket == "" {
		sc.sl.LogFailedAuth(c.ClientIP(), "missing stream ticket")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing ticket"})
		return
	}

	claims, err := sc.tickets.Verify(ticket)
	if err != nil {
		sc.sl.LogFailedAuth(c.ClientIP(), err.Error())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid ticket"})
		return
	}

	ws, err := sc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sc.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &services.ClientConnection{
		ID:       sc.hub.NextClientID(c.ClientIP()),
		Username: claims.Subject,
		Conn:     ws,
		Send:     make(chan services.WebSocketMessage, 256),
	}
	if !sc.hub.Register(client) {
		ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		ws.Close()
		return
	}
	sc.sl.LogWebSocketConnected(c.ClientIP(), claims.Subject)

	sc.hub.SendMessage(client.ID, services.WebSocketMessage{
		Type:      services.MessageHello,
		Timestamp: time.Now(),
		Data:      gin.H{"username": claims.Subject},
	})

	ip := c.ClientIP()
	go sc.readPump(client, ip)
	go sc.writePump(client)
}

// readPump reads messages from the WebSocket client
func (sc *StreamController) readPump(client *services.ClientConnection, ip string) {
	defer func() {
		sc.hub.Unregister(client.ID)
		client.Conn.Close()
		sc.sl.LogWebSocketDisconnected(ip, client.ID)
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				sc.log.WithError(err).WithField("client", client.ID).Debug("websocket read error")
			}
			return
		}

		switch msg.Type {
		case "ping":
			sc.hub.SendMessage(client.ID, services.WebSocketMessage{Type: services.MessagePong, Timestamp: time.Now()})
		case "unsubscribe":
			return
		default:
			sc.log.WithField("type", msg.Type).Debug("unknown websocket message type")
			sc.hub.SendMessage(client.ID, services.WebSocketMessage{
				Type:      services.MessageError,
				Timestamp: time.Now(),
				Error:     "unknown message type: " + msg.Type,
			})
		}
	}
}

// writePump writes messages to the WebSocket client
func (sc *StreamController) writePump(client *services.ClientConnection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
