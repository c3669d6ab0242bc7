package api

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yusukekikuta0509/projectKAIKA/internal/utils"
)

type stubConn struct {
	closed atomic.Bool
}

func (c *stubConn) WriteMessage(int, []byte) error            { return nil }
func (c *stubConn) ReadMessage() (int, []byte, error)         { return 0, nil, nil }
func (c *stubConn) Close() error                              { c.closed.Store(true); return nil }
func (c *stubConn) SetReadDeadline(time.Time) error           { return nil }
func (c *stubConn) SetWriteDeadline(time.Time) error          { return nil }
func (c *stubConn) SetPongHandler(func(appData string) error) {}

func TestWebSocketClientExpiry(t *testing.T) {
	mock := clock.NewMock()
	manager := NewWebSocketManager(utils.NewMetricsCollector(), mock)
	client := manager.NewClient(&stubConn{}, "s1")

	assert.False(t, client.IsExpired(time.Minute))
	mock.Add(61 * time.Second)
	assert.True(t, client.IsExpired(time.Minute))

	client.UpdatePing()
	assert.False(t, client.IsExpired(time.Minute))
}

func TestWebSocketCleanupClosesStaleClients(t *testing.T) {
	mock := clock.NewMock()
	manager := NewWebSocketManager(utils.NewMetricsCollector(), mock)

	staleConn := &stubConn{}
	stale := manager.NewClient(staleConn, "s1")
	manager.Register(stale)
	mock.Add(45 * time.Second)

	fresh := manager.NewClient(&stubConn{}, "s2")
	manager.Register(fresh)
	require.Equal(t, 2, manager.ClientCount(""))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	manager.StartCleanup(ctx, 30*time.Second)

	mock.Add(30 * time.Second)
	require.Eventually(t, func() bool { return manager.ClientCount("") == 1 }, time.Second, time.Millisecond)
	assert.True(t, stale.IsClosed())
	assert.True(t, staleConn.closed.Load())
	assert.False(t, fresh.IsClosed())
	assert.Equal(t, 1, manager.ClientCount("s2"))
}
