package controllers

import (
	"vitalwatch/services"
	"vitalwatch/utils"
	"vitalwatch/websocket"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type WebSocketController struct {
	hub         *websocket.Hub
	authService *services.AuthService
}

func NewWebSocketController(hub *websocket.Hub, authService *services.AuthService) *WebSocketController {
	return &WebSocketController{
		hub:         hub,
		authService: authService,
	}
}

// HandleWebSocket upgrades the connection and starts the client pumps. The
// client authenticates in-band with an auth frame before it may subscribe;
// the upgrade itself is unauthenticated so a browser can open the socket
// before the token is available.
func (wsc *WebSocketController) HandleWebSocket(c *gin.Context) {
	conn, err := websocket.Upgrade(c.Writer, c.Request)
	if err != nil {
		logrus.Errorf("Failed to upgrade WebSocket connection: %v", err)
		utils.BadRequestResponse(c, "Failed to establish WebSocket connection")
		return
	}

	client := websocket.NewClient(conn, wsc.hub, c.Request)

	go client.WritePump()
	go client.ReadPump()
}

// GetConnectionStats returns hub statistics (admin only; role enforced by
// route middleware).
func (wsc *WebSocketController) GetConnectionStats(c *gin.Context) {
	stats := wsc.hub.GetStats()
	utils.SuccessResponse(c, "Connection statistics retrieved successfully", stats)
}

// GetUserConnection reports whether a user currently holds a connection.
func (wsc *WebSocketController) GetUserConnection(c *gin.Context) {
	targetUserID := c.Param("userId")
	if targetUserID == "" {
		utils.BadRequestResponse(c, "User ID is required")
		return
	}

	utils.SuccessResponse(c, "User connection state retrieved successfully", gin.H{
		"userId":    targetUserID,
		"connected": wsc.hub.IsUserConnected(targetUserID),
	})
}
