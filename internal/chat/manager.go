// Package chat serves the browser chat channel over WebSocket.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// ErrNotConnected is returned when a user has no live connection.
var ErrNotConnected = errors.New("user not connected")

// Conn is the part of *websocket.Conn the manager needs.
type Conn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// ConnManager tracks the live connection of each user. A user has at most
// one; registering a new one closes the old.
type ConnManager struct {
	mu     sync.RWMutex
	active map[int64]Conn
}

// NewConnManager creates a new connection manager.
func NewConnManager() *ConnManager {
	return &ConnManager{
		active: make(map[int64]Conn),
	}
}

// Get returns the active connection for a user.
func (m *ConnManager) Get(userID int64) Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[userID]
}

// Register makes conn the user's active connection.
// The replaced connection is closed after the lock is released, since a
// close handshake can take a while.
func (m *ConnManager) Register(userID int64, conn Conn) {
	m.mu.Lock()
	existing, ok := m.active[userID]
	m.active[userID] = conn
	m.mu.Unlock()
	slog.Info("Chat connection registered", "user_id", userID)

	if ok && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "connection replaced")
	}
}

// Unregister removes conn if it is still the user's active connection.
func (m *ConnManager) Unregister(userID int64, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.active[userID]; ok && current == conn {
		delete(m.active, userID)
		slog.Info("Chat connection unregistered", "user_id", userID)
	}
}

// Send writes a text frame to the user's active connection.
func (m *ConnManager) Send(ctx context.Context, userID int64, payload []byte) error {
	conn := m.Get(userID)
	if conn == nil {
		return ErrNotConnected
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}

// Len returns the number of connected users.
func (m *ConnManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// CloseAll terminates every connection.
func (m *ConnManager) CloseAll() {
	m.mu.Lock()
	conns := m.active
	m.active = make(map[int64]Conn)
	m.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
