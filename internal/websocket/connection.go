package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatterbox/pkg/interfaces"
)

// Options tunes one transport connection
type Options struct {
	PingInterval  time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	SendTimeout   time.Duration
	SendBuffer    int
	MaxFrameBytes int64
}

// DefaultOptions mirror the config defaults
func DefaultOptions() Options {
	return Options{
		PingInterval:  30 * time.Second,
		ReadTimeout:   60 * time.Second,
		WriteTimeout:  10 * time.Second,
		SendTimeout:   5 * time.Second,
		SendBuffer:    256,
		MaxFrameBytes: 16 << 20,
	}
}

// Connection wraps a gorilla connection as an interfaces.Connection.
// All data frames and pings go through a single writer goroutine; Receive
// must only be called from one goroutine.
type Connection struct {
	conn      *websocket.Conn
	id        string
	username  string
	opts      Options
	writeCh   chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
	logger    *zap.Logger
}

var _ interfaces.Connection = (*Connection)(nil)

// NewConnection takes ownership of conn and starts its writer
func NewConnection(conn *websocket.Conn, username string, opts Options, logger *zap.Logger) *Connection {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultOptions().SendBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:     conn,
		id:       uuid.New().String(),
		username: username,
		opts:     opts,
		writeCh:  make(chan []byte, opts.SendBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
	c.logger = logger.With(zap.String("conn_id", c.id), zap.String("username", username))

	if opts.MaxFrameBytes > 0 {
		conn.SetReadLimit(opts.MaxFrameBytes)
	}
	_ = conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
	})

	go c.writeLoop()
	return c
}

func (c *Connection) ID() string       { return c.id }
func (c *Connection) Username() string { return c.username }

// writeLoop drains the send queue and keeps the peer alive with pings
func (c *Connection) writeLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				c.abort(err)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.abort(err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				c.abort(err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// Send queues payload for the writer. It fails with ErrWriteTimeout when the
// queue stays full for SendTimeout and ErrConnectionClosed once the
// connection is gone.
func (c *Connection) Send(ctx context.Context, payload []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	timer := time.NewTimer(c.opts.SendTimeout)
	defer timer.Stop()

	select {
	case c.writeCh <- payload:
		return nil
	case <-timer.C:
		return ErrWriteTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Receive returns the next data frame. Any read failure, including a close
// frame from the peer, is reported as ErrConnectionClosed wrapping the
// transport error so callers can inspect the close code.
func (c *Connection) Receive(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.cancel()
			return nil, fmt.Errorf("%w: %w", ErrConnectionClosed, err)
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Close sends a close frame with code and reason, then closes the socket.
// Only the first call has any effect.
func (c *Connection) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.cancel()
		msg := websocket.FormatCloseMessage(code, reason)
		if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteTimeout)); err != nil {
			c.logger.Debug("close frame not delivered", zap.Error(err))
		}
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// abort tears the socket down without a close frame after a write failure
func (c *Connection) abort(err error) {
	c.logger.Debug("write failed, dropping connection", zap.Error(err))
	c.closeOnce.Do(func() {
		c.cancel()
		c.closeErr = c.conn.Close()
	})
}
