package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatterbox/pkg/interfaces"
	"chatterbox/pkg/types"
)

// GatewayConfig holds the chat rules applied to every inbound frame
type GatewayConfig struct {
	HistoryLimit     int
	MaxMessageLength int
}

// Gateway runs the lifecycle of one admitted connection: history replay,
// then validate, persist and broadcast each inbound frame in order.
type Gateway struct {
	registry *Registry
	messages interfaces.MessageLog
	limiter  *RateLimiter
	config   GatewayConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewGateway wires a gateway. limiter may be nil to disable rate limiting.
func NewGateway(registry *Registry, messages interfaces.MessageLog, limiter *RateLimiter, config GatewayConfig, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxMessageLength <= 0 {
		config.MaxMessageLength = types.DefaultMaxContentLength
	}
	return &Gateway{
		registry: registry,
		messages: messages,
		limiter:  limiter,
		config:   config,
		logger:   logger.Named("gateway"),
		now:      time.Now,
	}
}

// Serve blocks until conn is closed. The connection is always removed from
// the registry and closed before Serve returns.
func (g *Gateway) Serve(ctx context.Context, conn interfaces.Connection) {
	logger := g.logger.With(zap.String("conn_id", conn.ID()), zap.String("username", conn.Username()))

	g.registry.Admit(conn)
	defer func() {
		g.registry.Remove(conn)
		_ = conn.Close(websocket.CloseNormalClosure, "")
	}()

	g.sendHistory(ctx, conn, logger)

	for {
		raw, err := conn.Receive(ctx)
		if err != nil {
			logDisconnect(logger, err)
			return
		}

		if err := g.handleFrame(ctx, conn, raw, logger); err != nil {
			logger.Info("connection unusable, closing", zap.Error(err))
			return
		}
	}
}

// sendHistory pushes the most recent messages. Failures are logged only.
func (g *Gateway) sendHistory(ctx context.Context, conn interfaces.Connection, logger *zap.Logger) {
	var history []*types.ChatMessage
	if g.config.HistoryLimit > 0 {
		var err error
		history, err = g.messages.Recent(ctx, g.config.HistoryLimit)
		if err != nil {
			logger.Error("failed to load history", zap.Error(err))
			return
		}
	}

	payload, err := json.Marshal(types.NewHistoryEvent(history))
	if err != nil {
		logger.Error("failed to encode history", zap.Error(err))
		return
	}
	if err := conn.Send(ctx, payload); err != nil {
		logger.Warn("failed to send history", zap.Error(err))
	}
}

// handleFrame processes one inbound frame. It returns an error only when the
// originating connection can no longer be written to.
func (g *Gateway) handleFrame(ctx context.Context, conn interfaces.Connection, raw []byte, logger *zap.Logger) error {
	content, err := types.ParseInbound(raw, g.config.MaxMessageLength)
	if err != nil {
		logger.Debug("rejected frame", zap.Error(err))
		return g.sendError(ctx, conn, g.errorDetail(err))
	}

	if !g.limiter.Allow(conn.Username()) {
		logger.Warn("rate limit exceeded")
		return g.sendError(ctx, conn, g.errorDetail(ErrRateLimited))
	}

	message := &types.ChatMessage{
		Username:  conn.Username(),
		Content:   content,
		Timestamp: g.now().UTC(),
	}

	if err := g.messages.Append(ctx, message); err != nil {
		logger.Error("failed to persist message", zap.Error(err))
		return g.sendError(ctx, conn, "Failed to save message")
	}

	payload, err := json.Marshal(types.NewMessageEvent(message))
	if err != nil {
		logger.Error("failed to encode message", zap.Error(err))
		return nil
	}
	g.registry.Broadcast(ctx, payload)
	return nil
}

func (g *Gateway) sendError(ctx context.Context, conn interfaces.Connection, detail string) error {
	payload, err := json.Marshal(types.NewErrorEvent(detail))
	if err != nil {
		return fmt.Errorf("failed to encode error event: %w", err)
	}
	if err := conn.Send(ctx, payload); err != nil {
		return fmt.Errorf("failed to send error event: %w", err)
	}
	return nil
}

// errorDetail maps a rejection to the text shown to the client
func (g *Gateway) errorDetail(err error) string {
	switch {
	case errors.Is(err, types.ErrEmptyContent):
		return "Message cannot be empty"
	case errors.Is(err, types.ErrContentTooLong):
		return fmt.Sprintf("Message too long (max %d characters)", g.config.MaxMessageLength)
	case errors.Is(err, ErrRateLimited):
		return "Rate limit exceeded"
	default:
		return "Invalid message format"
	}
}

func logDisconnect(logger *zap.Logger, err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway {
			logger.Info("client disconnected", zap.Int("code", closeErr.Code))
			return
		}
		logger.Warn("client closed abnormally", zap.Int("code", closeErr.Code), zap.String("reason", closeErr.Text))
		return
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("connection cancelled")
		return
	}
	logger.Warn("connection lost", zap.Error(err))
}
