package handler

import (
	"net/http"

	"supportchat/backend/internal/chathub"
	"supportchat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Lock down in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket authenticates the handshake and upgrades the connection
// into the chat namespace. Identity resolution failure is fatal for the
// connection: it is rejected before the upgrade, no chat event is emitted.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	tokenString := bearerFromRequest(c)
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}

	identity, err := h.resolveIdentity(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := &chathub.WebSocketClient{
		Hub:         h.Hub,
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		Role:        identity.Role,
		Conn:        conn,
		Send:        make(chan models.ServerEvent, h.Cfg.Chat.SendBufferSize),
	}

	h.Hub.RegisterCh <- client
	client.Run()
}
