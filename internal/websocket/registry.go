package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatterbox/pkg/interfaces"
)

// Registry is the set of live connections, keyed by connection ID
type Registry struct {
	mu          sync.RWMutex
	connections map[string]interfaces.Connection
	sendTimeout time.Duration
	logger      *zap.Logger
}

// NewRegistry creates an empty registry. sendTimeout bounds each delivery
// during Broadcast.
func NewRegistry(sendTimeout time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sendTimeout <= 0 {
		sendTimeout = DefaultOptions().SendTimeout
	}
	return &Registry{
		connections: make(map[string]interfaces.Connection),
		sendTimeout: sendTimeout,
		logger:      logger.Named("registry"),
	}
}

// Admit adds conn. Admitting the same connection twice is a no-op.
func (r *Registry) Admit(conn interfaces.Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	r.connections[conn.ID()] = conn
	total := len(r.connections)
	r.mu.Unlock()

	r.logger.Info("connection admitted",
		zap.String("conn_id", conn.ID()),
		zap.String("username", conn.Username()),
		zap.Int("active_connections", total))
}

// Remove drops conn if it is the one registered under its ID.
// Safe to call any number of times.
func (r *Registry) Remove(conn interfaces.Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	registered, exists := r.connections[conn.ID()]
	if !exists || registered != conn {
		r.mu.Unlock()
		return
	}
	delete(r.connections, conn.ID())
	total := len(r.connections)
	r.mu.Unlock()

	r.logger.Info("connection removed",
		zap.String("conn_id", conn.ID()),
		zap.String("username", conn.Username()),
		zap.Int("active_connections", total))
}

// snapshot copies the current membership. Snapshots take the write lock so
// that concurrent broadcasts observe membership in a single order.
func (r *Registry) snapshot() []interfaces.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]interfaces.Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		conns = append(conns, conn)
	}
	return conns
}

// Broadcast delivers payload to every connection present when the call
// starts. Sends run concurrently without holding the lock; connections whose
// send fails are removed and closed afterwards.
func (r *Registry) Broadcast(ctx context.Context, payload []byte) {
	conns := r.snapshot()
	if len(conns) == 0 {
		return
	}

	var (
		wg       sync.WaitGroup
		failedMu sync.Mutex
		failed   []interfaces.Connection
	)

	for _, conn := range conns {
		wg.Add(1)
		go func(conn interfaces.Connection) {
			defer wg.Done()

			sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
			defer cancel()

			if err := conn.Send(sendCtx, payload); err != nil {
				r.logger.Warn("broadcast delivery failed",
					zap.String("conn_id", conn.ID()),
					zap.String("username", conn.Username()),
					zap.Error(err))
				failedMu.Lock()
				failed = append(failed, conn)
				failedMu.Unlock()
			}
		}(conn)
	}
	wg.Wait()

	for _, conn := range failed {
		r.Remove(conn)
		_ = conn.Close(websocket.CloseInternalServerErr, "send failed")
	}
}

// Count returns the number of admitted connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// GetStats returns registry statistics for the health endpoint
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make(map[string]struct{}, len(r.connections))
	for _, conn := range r.connections {
		users[conn.Username()] = struct{}{}
	}

	return map[string]int{
		"total_connections": len(r.connections),
		"connected_users":   len(users),
	}
}

// CloseAll closes every admitted connection. Their gateways observe the
// closed channel and remove themselves.
func (r *Registry) CloseAll(code int, reason string) {
	for _, conn := range r.snapshot() {
		if err := conn.Close(code, reason); err != nil {
			r.logger.Debug("close during shutdown failed", zap.String("conn_id", conn.ID()), zap.Error(err))
		}
	}
}
