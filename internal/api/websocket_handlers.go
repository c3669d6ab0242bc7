// internal/api/websocket_handlers.go
package api

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yusukekikuta0509/projectKAIKA/internal/services"
	"github.com/yusukekikuta0509/projectKAIKA/internal/utils"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHandler streams session events and answers scene frame requests.
type WebSocketHandler struct {
	sessions *services.SessionService
	manager  *WebSocketManager
	logger   *utils.Logger
}

func NewWebSocketHandler(sessions *services.SessionService, manager *WebSocketManager) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		manager:  manager,
		logger:   utils.GetLogger(),
	}
}

// SessionWebSocket upgrades the request and subscribes it to the session.
func (wh *WebSocketHandler) SessionWebSocket(c *gin.Context) {
	session, err := wh.sessions.Get(c.Param("id"))
	if err != nil {
		NewResponseHelper().FromError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wh.logger.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	client := wh.manager.NewClient(conn, session.ID)
	wh.manager.Register(client)
	defer wh.manager.Unregister(client)

	go wh.handleWebSocketWrites(client)

	_ = client.SendMessage(map[string]interface{}{
		"type":      "connected",
		"session":   session.Snapshot(),
		"timestamp": client.clock.Now().Format(time.RFC3339),
	})

	wh.handleWebSocketReads(client, session)
}

func (wh *WebSocketHandler) handleWebSocketReads(client *WebSocketClient, session *services.Session) {
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for !client.IsClosed() {
		_, messageBytes, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wh.logger.Debug("websocket read ended", map[string]interface{}{"error": err.Error()})
			}
			return
		}
		client.UpdatePing()
		_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))

		var message clientMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			client.SendError("malformed message")
			continue
		}
		wh.handleMessage(client, session, message)
	}
}

func (wh *WebSocketHandler) handleWebSocketWrites(client *WebSocketClient) {
	ticker := client.clock.Ticker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-client.done:
			return
		case message := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				client.Close()
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.Close()
				return
			}
		}
	}
}

// clientMessage is a request sent over the socket.
type clientMessage struct {
	Type string  `json:"type"`
	DT   float64 `json:"dt"`
}

func (wh *WebSocketHandler) handleMessage(client *WebSocketClient, session *services.Session, message clientMessage) {
	switch message.Type {
	case "ping":
		_ = client.SendMessage(map[string]interface{}{"type": "pong", "timestamp": client.clock.Now().Unix()})
	case "frame":
		_ = client.SendMessage(map[string]interface{}{"type": "scene.frame", "frame": session.Frame(message.DT)})
	case "snapshot":
		_ = client.SendMessage(map[string]interface{}{"type": "snapshot", "session": session.Snapshot()})
	default:
		client.SendError("unknown message type: " + message.Type)
	}
}
