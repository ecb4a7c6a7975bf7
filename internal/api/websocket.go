package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"larder/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// SubscribeRequest is the frame a client sends to manage its household
// subscriptions
type SubscribeRequest struct {
	Action      string `json:"action"` // "subscribe" or "unsubscribe"
	HouseholdID string `json:"householdId"`
}

// WSConnection maintains the WebSocket connection with one client session.
// It implements hub.Sink: published events land on the buffered send
// channel and the write pump drains it.
type WSConnection struct {
	sessionID string
	actorID   string
	conn      *websocket.Conn
	send      chan []byte
	mu        sync.Mutex
	server    *Server
}

// handleWebSocket upgrades the request into a fan-out session. The caller
// is already authenticated; it receives nothing until it subscribes to a
// household it is a member of.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	wsConn := &WSConnection{
		sessionID: uuid.NewString(),
		actorID:   actorID(c),
		conn:      conn,
		send:      make(chan []byte, 256),
		server:    s,
	}

	s.hub.Register(wsConn.sessionID, wsConn)
	s.metrics.SetConnectedSessions(s.hub.SessionCount())

	// Start the read and write pumps
	go wsConn.writePump()
	go wsConn.readPump()
}

// Deliver implements hub.Sink. Never blocks: a session that cannot keep up
// loses events rather than stalling the publisher.
func (c *WSConnection) Deliver(event models.ChangeEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case c.send <- data:
	default:
		log.Println("WebSocket buffer full, dropping event")
	}
}

// readPump pumps subscription frames from the client until disconnect.
// Disconnect tears down every subscription synchronously so no further
// publish reaches this session.
func (c *WSConnection) readPump() {
	defer func() {
		c.server.hub.UnsubscribeAll(c.sessionID)
		c.server.metrics.SetConnectedSessions(c.server.hub.SessionCount())
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps events from the hub to the WebSocket connection
func (c *WSConnection) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The channel was closed
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
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

// handleMessage processes one subscription frame
func (c *WSConnection) handleMessage(message []byte) {
	var req SubscribeRequest
	if err := json.Unmarshal(message, &req); err != nil {
		c.sendError("Invalid message")
		return
	}

	switch req.Action {
	case "subscribe":
		member, err := c.server.membership.IsMember(c.actorID, req.HouseholdID)
		if err != nil {
			c.sendError("Membership check failed")
			return
		}
		if !member {
			c.sendError("Not a member of household " + req.HouseholdID)
			return
		}
		c.server.hub.Subscribe(c.sessionID, req.HouseholdID)
	case "unsubscribe":
		c.server.hub.Unsubscribe(c.sessionID, req.HouseholdID)
	default:
		c.sendError("Unknown action: " + req.Action)
	}
}

// sendError sends an error message to the client
func (c *WSConnection) sendError(message string) {
	data, _ := json.Marshal(map[string]string{"error": message})

	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case c.send <- data:
	default:
		log.Println("WebSocket buffer full, dropping error message")
	}
}
