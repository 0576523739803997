package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatterbox/pkg/types"
)

// mockConnection is an in-memory interfaces.Connection
type mockConnection struct {
	id       string
	username string

	mu         sync.Mutex
	sent       [][]byte
	sendErr    error
	sendDelay  time.Duration
	closeCode  int
	closeCount int

	inbound   chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newMockConnection(id, username string) *mockConnection {
	return &mockConnection{
		id:       id,
		username: username,
		inbound:  make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

func (m *mockConnection) ID() string       { return m.id }
func (m *mockConnection) Username() string { return m.username }

func (m *mockConnection) Send(ctx context.Context, payload []byte) error {
	m.mu.Lock()
	delay, sendErr := m.sendDelay, m.sendErr
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if sendErr != nil {
		return sendErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, payload)
	return nil
}

func (m *mockConnection) Receive(ctx context.Context) ([]byte, error) {
	select {
	case raw, ok := <-m.inbound:
		if !ok {
			return nil, ErrConnectionClosed
		}
		return raw, nil
	case <-m.done:
		return nil, ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mockConnection) Close(code int, reason string) error {
	m.mu.Lock()
	m.closeCount++
	if m.closeCount == 1 {
		m.closeCode = code
	}
	m.mu.Unlock()
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *mockConnection) failSends(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

func (m *mockConnection) events(t *testing.T) []map[string]interface{} {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]map[string]interface{}, 0, len(m.sent))
	for _, payload := range m.sent {
		var event map[string]interface{}
		require.NoError(t, json.Unmarshal(payload, &event))
		out = append(out, event)
	}
	return out
}

func (m *mockConnection) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockConnection) closedWith() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCode, m.closeCount
}

// mockMessageLog is an in-memory interfaces.MessageLog
type mockMessageLog struct {
	mu        sync.Mutex
	messages  []*types.ChatMessage
	appendErr error
	recentErr error
}

func (l *mockMessageLog) Append(ctx context.Context, message *types.ChatMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return l.appendErr
	}
	l.messages = append(l.messages, message)
	return nil
}

func (l *mockMessageLog) Recent(ctx context.Context, limit int) ([]*types.ChatMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recentErr != nil {
		return nil, l.recentErr
	}
	start := len(l.messages) - limit
	if start < 0 {
		start = 0
	}
	out := make([]*types.ChatMessage, len(l.messages[start:]))
	copy(out, l.messages[start:])
	return out, nil
}

func (l *mockMessageLog) stored() []*types.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*types.ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

var errPeerGone = errors.New("peer gone")
