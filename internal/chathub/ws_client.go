package chathub

import (
	"encoding/json"
	"log"
	"time"

	"supportchat/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// WebSocketClient implements the chathub.Client interface over a
// gorilla/websocket connection.
type WebSocketClient struct {
	UserID      string
	DisplayName string
	Role        string
	Conn        *websocket.Conn
	Hub         *ManagerService
	Send        chan models.ServerEvent
}

func (c *WebSocketClient) GetUserID() string                         { return c.UserID }
func (c *WebSocketClient) GetDisplayName() string                    { return c.DisplayName }
func (c *WebSocketClient) GetRole() string                           { return c.Role }
func (c *WebSocketClient) GetSendChannel() chan<- models.ServerEvent { return c.Send }

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes the Send channel, which stops the write pump. The hub calls
// this exactly once, guarded by the registry's idempotent unregister.
func (c *WebSocketClient) Close() {
	close(c.Send)
}

// readPump reads frames from the WebSocket, decodes them into intents and
// feeds the hub. A disconnect at any point only triggers unregister;
// persisted state is untouched.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.UnregisterCh <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}

		var frame models.ClientIntent
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("Error decoding JSON from user %s: %v", c.UserID, err)
			continue // skip the bad frame, keep the connection
		}

		c.Hub.IntentCh <- Intent{Client: c, Frame: frame}
	}
}

// writePump drains the Send channel into the WebSocket and keeps the
// connection alive with periodic pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed by the hub.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(evt)
			if err != nil {
				log.Printf("Error encoding JSON for user %s: %v", c.UserID, err)
				continue
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

			// Flush whatever queued up behind this event.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				next := <-c.Send
				data, err := json.Marshal(next)
				if err != nil {
					continue
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
