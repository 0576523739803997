package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatterbox/pkg/interfaces"
	"chatterbox/pkg/types"
)

// Manager is the in-memory SessionStore. Sessions live until the process exits;
// there is no expiry or revocation.
type Manager struct {
	sessions map[string]*types.Session // token -> Session
	closed   bool
	logger   *zap.Logger
	mu       sync.RWMutex
}

var _ interfaces.SessionStore = (*Manager)(nil)

// NewManager creates a new session manager
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*types.Session),
		logger:   logger.Named("session"),
	}
}

// Issue creates a new token for username. Several tokens may map to the same
// user; each login gets its own.
func (m *Manager) Issue(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", ErrInvalidUsername
	}

	session := &types.Session{
		Token:     uuid.New().String(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrStoreClosed
	}
	m.sessions[session.Token] = session
	total := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("session issued", zap.String("username", username), zap.Int("active_sessions", total))
	return session.Token, nil
}

// Resolve looks a token up
func (m *Manager) Resolve(ctx context.Context, token string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", false, ErrStoreClosed
	}
	session, exists := m.sessions[token]
	if !exists {
		return "", false, nil
	}
	return session.Username, true, nil
}

// Count returns the number of issued tokens
func (m *Manager) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}

// Close drops every session; later calls fail with ErrStoreClosed
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.sessions = make(map[string]*types.Session)
	return nil
}
