package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatterbox/internal/logging"
	"chatterbox/internal/session"
)

// Handler upgrades /ws requests, authorizes them through the session gate
// and hands admitted connections to the gateway.
type Handler struct {
	gate     *session.Gate
	gateway  *Gateway
	opts     Options
	upgrader websocket.Upgrader
	logger   *zap.Logger

	// ctx is handed to every gateway session; Shutdown cancels it
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex // protects closing and active.Add
	closing bool
	active  sync.WaitGroup
}

// NewHandler creates a WebSocket handler
func NewHandler(gate *session.Gate, gateway *Gateway, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		ctx:     ctx,
		cancel:  cancel,
		gate:    gate,
		gateway: gateway,
		opts:    opts,
		upgrader: websocket.Upgrader{
			// browser clients are served from anywhere
			CheckOrigin:      func(r *http.Request) bool { return true },
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger.Named("ws"),
	}
}

// HandleWebSocket serves GET /ws?token=<token>. The upgrade always happens so
// a refused client sees close code 1008 rather than an HTTP error. Once
// Shutdown has been called requests get 503 without an upgrade.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.track() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.active.Done()

	token := r.URL.Query().Get("token")
	username, authErr := h.gate.Authorize(r.Context(), token)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	if authErr != nil {
		if errors.Is(authErr, session.ErrUnauthorized) {
			h.logger.Warn("unauthorized connection attempt",
				zap.String("remote", r.RemoteAddr),
				zap.String("token", logging.TokenPrefix(token)))
		} else {
			h.logger.Error("session lookup failed", zap.String("remote", r.RemoteAddr), zap.Error(authErr))
		}
		h.reject(conn)
		return
	}

	wsConn := NewConnection(conn, username, h.opts, h.logger)
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("gateway panicked", zap.String("conn_id", wsConn.ID()), zap.Any("panic", rec))
		}
	}()

	// hijacked requests keep r.Context() alive, so sessions run on h.ctx
	h.gateway.Serve(h.ctx, wsConn)
}

// track registers an in-flight request unless shutdown has begun
func (h *Handler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.active.Add(1)
	return true
}

// Shutdown refuses new connections and cancels every running session.
// Sessions end by closing their connection; use Wait to block until they
// have all returned. Safe to call more than once.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()
	h.cancel()
}

// reject closes a freshly upgraded connection with a policy violation
func (h *Handler) reject(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Unauthorized")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.opts.WriteTimeout))
	_ = conn.Close()
}

// Wait blocks until every served connection has finished or ctx expires.
// Call it after Shutdown so no new connection can start meanwhile.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
