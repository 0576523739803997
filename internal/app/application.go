package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatterbox/internal/api"
	"chatterbox/internal/config"
	"chatterbox/internal/database"
	"chatterbox/internal/session"
	"chatterbox/internal/websocket"
	pkgdatabase "chatterbox/pkg/database"
	"chatterbox/pkg/interfaces"
)

// Application owns one instance of every component
type Application struct {
	config     *config.Config
	logger     *zap.Logger
	dbManager  *database.Manager
	sessions   interfaces.SessionStore
	registry   *websocket.Registry
	limiter    *websocket.RateLimiter
	wsHandler  *websocket.Handler
	apiServer  *api.Server
	httpServer *http.Server
	listener   net.Listener
	stopBg     context.CancelFunc
}

// NewApplication builds the components in dependency order:
// Database → Sessions → Registry → Gateway → Handlers → HTTP
func NewApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbManager, err := database.NewManager(cfg.DatabaseManagerConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	migrations := pkgdatabase.NewMigrationManager(dbManager.GetDB())
	if err := migrations.ApplyMigrations(); err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	if err := migrations.ValidateSchema(); err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("database schema is invalid: %w", err)
	}
	logger.Info("database ready", zap.String("path", cfg.Database.Path))

	sessions, err := newSessionStore(ctx, cfg.Session, logger)
	if err != nil {
		_ = dbManager.Close()
		return nil, err
	}

	registry := websocket.NewRegistry(cfg.WebSocket.SendTimeout, logger)
	limiter := websocket.NewRateLimiter(cfg.Chat.RateLimitPerMinute, time.Minute)
	gateway := websocket.NewGateway(registry, dbManager, limiter, websocket.GatewayConfig{
		HistoryLimit:     cfg.Chat.HistoryLimit,
		MaxMessageLength: cfg.Chat.MaxMessageLength,
	}, logger)

	wsHandler := websocket.NewHandler(session.NewGate(sessions), gateway, websocket.Options{
		PingInterval:  cfg.WebSocket.PingInterval,
		ReadTimeout:   cfg.WebSocket.ReadTimeout,
		WriteTimeout:  cfg.WebSocket.WriteTimeout,
		SendTimeout:   cfg.WebSocket.SendTimeout,
		SendBuffer:    cfg.WebSocket.SendBuffer,
		MaxFrameBytes: cfg.WebSocket.MaxFrameBytes,
	}, logger)

	apiServer := api.NewServer(dbManager, sessions, registry, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)
	mux.Handle("/", apiServer)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		ErrorLog:     zap.NewStdLog(logger.Named("http")),
	}

	return &Application{
		config:     cfg,
		logger:     logger,
		dbManager:  dbManager,
		sessions:   sessions,
		registry:   registry,
		limiter:    limiter,
		wsHandler:  wsHandler,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

func newSessionStore(ctx context.Context, cfg *config.SessionConfig, logger *zap.Logger) (interfaces.SessionStore, error) {
	switch cfg.Backend {
	case config.SessionBackendRedis:
		store, err := session.NewRedisStore(ctx, session.RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis session store: %w", err)
		}
		logger.Info("using redis session store", zap.String("addr", cfg.RedisAddr))
		return store, nil
	default:
		return session.NewManager(logger), nil
	}
}

// Start binds the listener and serves in the background
func (app *Application) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	app.listener = listener

	bgCtx, cancel := context.WithCancel(context.Background())
	app.stopBg = cancel
	go app.limiter.Run(bgCtx, time.Minute)

	go func() {
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	app.logger.Info("chatterbox started", zap.String("addr", listener.Addr().String()))
	return nil
}

// Stop shuts down in reverse dependency order. Open WebSocket connections are
// closed with 1001 and given until ctx expires to finish.
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("shutting down")
	var errs []error

	if err := app.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
	}

	app.registry.CloseAll(gorilla.CloseGoingAway, "server shutting down")
	// ends sessions admitted after CloseAll took its snapshot
	app.wsHandler.Shutdown()
	if err := app.wsHandler.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("waiting for connections: %w", err))
	}

	if app.stopBg != nil {
		app.stopBg()
	}

	if err := app.sessions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("session store shutdown: %w", err))
	}
	if err := app.dbManager.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database shutdown: %w", err))
	}

	app.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

// GetAddr returns the bound address once started, the configured one before
func (app *Application) GetAddr() string {
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}
