package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"chatterbox/internal/app"
	"chatterbox/internal/config"
	"chatterbox/pkg/types"
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader goroutine
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startServer(t *testing.T) *Client {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "chat.db")
	cfg.Database.PasswordCost = bcrypt.MinCost
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = 0

	application, err := app.NewApplication(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, application.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Stop(ctx)
	})

	c, err := New("http://" + application.GetAddr())
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)

	c, err := New("https://chat.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/ws?token=abc", c.wsURL("abc"))
}

func TestClient_RegisterAndLogin(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "alice", "secret1"))

	err := c.Register(ctx, "alice", "secret1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, "User already exists", apiErr.Detail)

	token, err := c.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = c.Login(ctx, "alice", "nope-nope")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.Status)
}

func TestClient_Chat(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()
	require.NoError(t, c.Register(ctx, "alice", "secret1"))
	token, err := c.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	in, inWriter := io.Pipe()
	out := &syncBuffer{}

	result := make(chan error, 1)
	go func() { result <- c.Chat(ctx, token, in, out) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "--- Chat History ---") }, 3*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(inWriter, "hello there\n\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "alice: hello there") }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, inWriter.Close())
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("chat did not return after input closed")
	}
}

func TestClient_ChatUnauthorized(t *testing.T) {
	c := startServer(t)

	in, inWriter := io.Pipe()
	defer inWriter.Close()

	err := c.Chat(context.Background(), "forged", in, io.Discard)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "[2024-05-01T12:00:00Z] bob: hi",
		FormatEvent([]byte(`{"type":"message","username":"bob","content":"hi","timestamp":"2024-05-01T12:00:00Z"}`)))

	assert.Equal(t, "[Error] Message cannot be empty",
		FormatEvent([]byte(`{"type":"error","detail":"Message cannot be empty"}`)))

	history := FormatEvent([]byte(`{"type":"history","messages":[{"username":"bob","content":"hi","timestamp":"2024-05-01T12:00:00Z"}]}`))
	assert.Contains(t, history, "--- Chat History ---")
	assert.Contains(t, history, FormatMessage(&types.ChatMessage{Username: "bob", Content: "hi", Timestamp: ts}))

	assert.Equal(t, `[Unknown message] {"type":"presence"}`, FormatEvent([]byte(`{"type":"presence"}`)))
	assert.Equal(t, "[Unknown message] garbage", FormatEvent([]byte("garbage")))
}
