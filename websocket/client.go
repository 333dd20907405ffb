package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
	"vitalwatch/models"
	"vitalwatch/utils"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Buffer size for client send channel. A client that lets this fill up
	// is treated as a slow consumer and disconnected.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// In production, implement proper origin checking
		return true
	},
}

// Upgrade upgrades an HTTP request to a WebSocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}

type Client struct {
	conn *websocket.Conn

	// Resolved at authenticate time; zero until then.
	identity models.Identity

	connectionID string
	connectedAt  time.Time
	lastPing     time.Time
	lastActivity time.Time
	ipAddress    string
	userAgent    string

	// Buffered channel of outbound messages
	send chan models.WSMessage

	hub *Hub

	rateLimiter *utils.RateLimiter

	isActive        bool
	isAuthenticated bool
	pingFailCount   int

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, hub *Hub, r *http.Request) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		conn:         conn,
		hub:          hub,
		send:         make(chan models.WSMessage, sendBufferSize),
		connectionID: utils.GenerateUUID(),
		connectedAt:  time.Now(),
		lastPing:     time.Now(),
		lastActivity: time.Now(),
		ipAddress:    getClientIP(r),
		userAgent:    r.UserAgent(),
		isActive:     true,
		rateLimiter:  utils.NewRateLimiter(120, time.Minute),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.handlePong()
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			_, messageData, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Errorf("WebSocket error for user %s: %v", c.identity.UserID, err)
				}
				return
			}

			c.lastActivity = time.Now()

			if !c.rateLimiter.Allow() {
				c.sendError(models.WSErrorRateLimit, "Rate limit exceeded")
				continue
			}

			c.handleMessage(messageData)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				logrus.Errorf("Write error for user %s: %v", c.identity.UserID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.pingFailCount++
				if c.pingFailCount > 3 {
					logrus.Warnf("Ping failed for user %s, disconnecting", c.identity.UserID)
					return
				}
			}
		}
	}
}

func (c *Client) handleMessage(messageData []byte) {
	var request models.WSRequest
	if err := json.Unmarshal(messageData, &request); err != nil {
		c.sendError(models.WSErrorInvalidMessage, "Invalid message format")
		return
	}

	if request.Type != models.WSTypeAuth && !c.isAuthenticated {
		c.sendError(models.WSErrorUnauthorized, "Authentication required")
		return
	}

	switch request.Type {
	case models.WSTypeAuth:
		c.handleAuth(request)
	case models.WSTypeSubscribe:
		c.handleSubscribe(request)
	case models.WSTypeUnsubscribe:
		c.handleUnsubscribe(request)
	case models.WSTypePing:
		c.handlePing()
	default:
		c.sendError(models.WSErrorInvalidMessage, "Unknown message type")
	}
}

func (c *Client) handleAuth(request models.WSRequest) {
	token, ok := request.Data["token"].(string)
	if !ok || token == "" {
		c.sendError(models.WSErrorUnauthorized, "Token required")
		return
	}

	identity, err := c.hub.resolver.ResolveToken(context.Background(), token)
	if err != nil {
		c.sendError(models.WSErrorUnauthorized, "Invalid token")
		return
	}

	c.identity = identity
	c.isAuthenticated = true

	response := models.WSAuthResponse{
		Success:       true,
		UserID:        identity.UserID,
		Role:          identity.Role,
		EntitledToAll: identity.EntitledToAll(),
		ExpiresAt:     time.Now().Add(24 * time.Hour),
	}
	if !response.EntitledToAll {
		response.EntitledPatients = identity.AssignedPatients
	}

	c.sendResponse(models.WSTypeAuth, response, request.RequestID)

	c.hub.register <- c

	logrus.Infof("Observer authenticated: %s (%s)", identity.UserID, c.connectionID)
}

func (c *Client) handleSubscribe(request models.WSRequest) {
	patientID, ok := request.Data["patientId"].(string)
	if !ok || patientID == "" {
		c.sendError(models.WSErrorInvalidMessage, "Patient ID required")
		return
	}

	// Unauthorized patient IDs are dropped without a distinguishable reply,
	// so connections cannot probe which patients exist.
	c.hub.Subscribe(c, patientID)

	c.sendResponse(models.WSTypeSuccess, map[string]interface{}{
		"subscriptions": c.hub.registry.Subscriptions(c),
	}, request.RequestID)
}

func (c *Client) handleUnsubscribe(request models.WSRequest) {
	patientID, ok := request.Data["patientId"].(string)
	if !ok || patientID == "" {
		c.sendError(models.WSErrorInvalidMessage, "Patient ID required")
		return
	}

	c.hub.Unsubscribe(c, patientID)

	c.sendResponse(models.WSTypeSuccess, map[string]interface{}{
		"subscriptions": c.hub.registry.Subscriptions(c),
	}, request.RequestID)
}

func (c *Client) handlePing() {
	pong := models.WSMessage{
		Type:      models.WSTypePong,
		Timestamp: time.Now(),
	}

	c.enqueue(pong)
}

func (c *Client) handlePong() {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.lastPing = time.Now()
	c.pingFailCount = 0
}

// enqueue appends a message to the client's send queue. The queue is FIFO,
// so delivery order per client follows enqueue order. Returns false when the
// buffer is full.
func (c *Client) enqueue(message models.WSMessage) bool {
	if !c.isActive {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) sendError(code, message string) {
	c.enqueue(models.WSMessage{
		Type: models.WSTypeError,
		Data: models.WSError{
			Code:      code,
			Message:   message,
			Timestamp: time.Now(),
		},
		Timestamp: time.Now(),
	})
}

func (c *Client) sendResponse(msgType string, data interface{}, requestID string) {
	c.enqueue(models.WSMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

func (c *Client) cleanup() {
	c.closeOnce.Do(func() {
		c.isActive = false
		c.cancel()

		if c.isAuthenticated {
			c.hub.unregister <- c
		}

		c.conn.Close()

		logrus.Infof("Observer connection closed: %s (%s)", c.identity.UserID, c.connectionID)
	})
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}
