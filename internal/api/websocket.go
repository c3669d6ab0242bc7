// internal/api/websocket.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
	"github.com/yusukekikuta0509/projectKAIKA/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketConnection is the part of *websocket.Conn the hub uses.
type WebSocketConnection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// WebSocketClient is one subscriber of a session's event stream.
type WebSocketClient struct {
	conn      WebSocketConnection
	sessionID string
	send      chan []byte
	done      chan struct{}
	closed    int32
	lastPing  atomic.Int64
	createdAt time.Time
	clock     clock.Clock
}

func newWebSocketClient(conn WebSocketConnection, sessionID string, clk clock.Clock) *WebSocketClient {
	client := &WebSocketClient{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
		done:      make(chan struct{}),
		createdAt: clk.Now(),
		clock:     clk,
	}
	client.UpdatePing()
	return client
}

// Close marks the client closed and closes the connection once.
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		close(client.done)
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

func (client *WebSocketClient) UpdatePing() {
	client.lastPing.Store(client.clock.Now().UnixNano())
}

func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	return client.clock.Since(time.Unix(0, client.lastPing.Load())) > timeout
}

// enqueue never blocks; a full queue drops the message.
func (client *WebSocketClient) enqueue(msg []byte) bool {
	if client.IsClosed() {
		return false
	}
	select {
	case client.send <- msg:
		return true
	default:
		return false
	}
}

// SendMessage encodes message and queues it.
func (client *WebSocketClient) SendMessage(message interface{}) error {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	client.enqueue(msgBytes)
	return nil
}

func (client *WebSocketClient) SendError(errorMsg string) {
	_ = client.SendMessage(map[string]interface{}{
		"type":      "error",
		"error":     errorMsg,
		"timestamp": client.clock.Now().Format(time.RFC3339),
	})
}

// WebSocketManager routes session events to the clients watching that session.
type WebSocketManager struct {
	connections map[string]map[*WebSocketClient]struct{}
	mutex       sync.RWMutex
	pingTimeout time.Duration
	metrics     *utils.MetricsCollector
	logger      *utils.Logger
	clock       clock.Clock
}

func NewWebSocketManager(metrics *utils.MetricsCollector, clk clock.Clock) *WebSocketManager {
	if metrics == nil {
		metrics = utils.GetMetricsCollector()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &WebSocketManager{
		connections: make(map[string]map[*WebSocketClient]struct{}),
		pingTimeout: 60 * time.Second,
		metrics:     metrics,
		logger:      utils.GetLogger(),
		clock:       clk,
	}
}

// NewClient wraps conn as a subscriber of sessionID using the manager's clock.
func (manager *WebSocketManager) NewClient(conn WebSocketConnection, sessionID string) *WebSocketClient {
	return newWebSocketClient(conn, sessionID, manager.clock)
}

func (manager *WebSocketManager) Register(client *WebSocketClient) {
	manager.mutex.Lock()
	if manager.connections[client.sessionID] == nil {
		manager.connections[client.sessionID] = make(map[*WebSocketClient]struct{})
	}
	manager.connections[client.sessionID][client] = struct{}{}
	total := manager.countLocked()
	manager.mutex.Unlock()

	manager.metrics.SetWebSocketClients(total)
	manager.logger.Info("websocket client connected", map[string]interface{}{"session_id": client.sessionID})
}

func (manager *WebSocketManager) Unregister(client *WebSocketClient) {
	manager.mutex.Lock()
	if connections, exists := manager.connections[client.sessionID]; exists {
		delete(connections, client)
		if len(connections) == 0 {
			delete(manager.connections, client.sessionID)
		}
	}
	total := manager.countLocked()
	manager.mutex.Unlock()

	client.Close()
	manager.metrics.SetWebSocketClients(total)
	manager.logger.Info("websocket client disconnected", map[string]interface{}{"session_id": client.sessionID})
}

func (manager *WebSocketManager) countLocked() int {
	total := 0
	for _, connections := range manager.connections {
		total += len(connections)
	}
	return total
}

// Publish implements the session event sink. It never blocks.
func (manager *WebSocketManager) Publish(evt models.Event) {
	msg, err := json.Marshal(evt)
	if err != nil {
		manager.logger.Warn("event not encodable", map[string]interface{}{"type": string(evt.Type), "error": err.Error()})
		return
	}

	manager.mutex.RLock()
	clients := make([]*WebSocketClient, 0, len(manager.connections[evt.SessionID]))
	for client := range manager.connections[evt.SessionID] {
		clients = append(clients, client)
	}
	manager.mutex.RUnlock()

	for _, client := range clients {
		if !client.enqueue(msg) && !client.IsClosed() {
			manager.logger.Warn("websocket queue full, dropping client", map[string]interface{}{"session_id": client.sessionID})
			client.Close()
		}
	}

	if evt.Type == models.EventSessionClosed {
		for _, client := range clients {
			client.Close()
		}
	}
}

// ClientCount returns the number of clients watching sessionID, or all clients when empty.
func (manager *WebSocketManager) ClientCount(sessionID string) int {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()
	if sessionID == "" {
		return manager.countLocked()
	}
	return len(manager.connections[sessionID])
}

// StartCleanup closes clients that stopped answering pings.
func (manager *WebSocketManager) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := manager.clock.Ticker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				manager.cleanupExpiredConnections()
			}
		}
	}()
}

func (manager *WebSocketManager) cleanupExpiredConnections() {
	manager.mutex.Lock()
	var expired []*WebSocketClient
	for sessionID, connections := range manager.connections {
		for client := range connections {
			if client.IsClosed() || client.IsExpired(manager.pingTimeout) {
				delete(connections, client)
				expired = append(expired, client)
			}
		}
		if len(connections) == 0 {
			delete(manager.connections, sessionID)
		}
	}
	total := manager.countLocked()
	manager.mutex.Unlock()

	for _, client := range expired {
		client.Close()
	}
	manager.metrics.SetWebSocketClients(total)
}

// Shutdown closes every client.
func (manager *WebSocketManager) Shutdown() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for _, connections := range manager.connections {
		for client := range connections {
			client.Close()
		}
	}
	manager.connections = make(map[string]map[*WebSocketClient]struct{})
	manager.metrics.SetWebSocketClients(0)
}

// GetStatus summarises connected clients per session.
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	sessions := make(map[string]interface{}, len(manager.connections))
	for sessionID, connections := range manager.connections {
		sessions[sessionID] = map[string]interface{}{"client_count": len(connections)}
	}
	return map[string]interface{}{
		"total_sessions":    len(manager.connections),
		"total_connections": manager.countLocked(),
		"sessions":          sessions,
	}
}
