package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chatterbox/pkg/interfaces"
	"chatterbox/pkg/types"
)

// Version is reported by GET /
const Version = "1.0.0"

// Registry is the view of the connection registry the API needs
type Registry interface {
	Count() int
	GetStats() map[string]int
}

// Server serves the account and monitoring endpoints. It holds no chat
// logic; /ws is mounted next to it by the application.
type Server struct {
	dbManager interfaces.DatabaseManager
	sessions  interfaces.SessionStore
	registry  Registry
	router    *http.ServeMux
	logger    *zap.Logger
}

// NewServer creates the API server and registers its routes
func NewServer(dbManager interfaces.DatabaseManager, sessions interfaces.SessionStore, registry Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		dbManager: dbManager,
		sessions:  sessions,
		registry:  registry,
		router:    http.NewServeMux(),
		logger:    logger.Named("api"),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /{$}", s.root)
	s.router.HandleFunc("POST /register", s.register)
	s.router.HandleFunc("POST /login", s.login)
	s.router.HandleFunc("GET /health", s.healthCheck)
	s.router.HandleFunc("GET /stats", s.stats)
}

// ServeHTTP applies CORS and JSON headers to every route
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.jsonMiddleware(s.router)).ServeHTTP(w, r)
}

// CredentialsRequest is the body of /register and /login
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type RootResponse struct {
	Status            string `json:"status"`
	Version           string `json:"version"`
	ActiveConnections int    `json:"active_connections"`
	ActiveSessions    int    `json:"active_sessions"`
}

type StatsResponse struct {
	TotalUsers        int `json:"total_users"`
	TotalMessages     int `json:"total_messages"`
	ActiveConnections int `json:"active_connections"`
	ActiveSessions    int `json:"active_sessions"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Connections map[string]int `json:"connections"`
}

// ErrorResponse keeps "detail" for clients that only read that field
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// POST /register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := types.ValidateUsername(req.Username); err != nil {
		s.sendError(w, "Username must be at least 3 characters", http.StatusBadRequest)
		return
	}
	if err := types.ValidatePassword(req.Password); err != nil {
		s.sendError(w, "Password must be at least 6 characters", http.StatusBadRequest)
		return
	}

	if err := s.dbManager.Register(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, interfaces.ErrUserExists) {
			s.logger.Info("registration for existing user", zap.String("username", req.Username))
			s.sendError(w, "User already exists", http.StatusBadRequest)
			return
		}
		s.logger.Error("registration failed", zap.String("username", req.Username), zap.Error(err))
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.logger.Info("user registered", zap.String("username", req.Username))
	s.writeJSON(w, http.StatusOK, MessageResponse{Message: "User registered successfully"})
}

// POST /login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ok, err := s.dbManager.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		s.logger.Error("login failed", zap.String("username", req.Username), zap.Error(err))
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !ok {
		s.logger.Warn("failed login attempt", zap.String("username", req.Username))
		s.sendError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := s.sessions.Issue(r.Context(), req.Username)
	if err != nil {
		s.logger.Error("failed to issue session", zap.String("username", req.Username), zap.Error(err))
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.logger.Info("user logged in", zap.String("username", req.Username))
	s.writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// GET /
func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.Count(r.Context())
	if err != nil {
		s.logger.Warn("failed to count sessions", zap.Error(err))
	}

	s.writeJSON(w, http.StatusOK, RootResponse{
		Status:            "Server is running",
		Version:           Version,
		ActiveConnections: s.registry.Count(),
		ActiveSessions:    sessions,
	})
}

// GET /stats
func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.collectStats(r.Context())
	if err != nil {
		s.logger.Error("stats query failed", zap.Error(err))
		s.sendError(w, "Failed to retrieve statistics", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) collectStats(ctx context.Context) (*StatsResponse, error) {
	users, err := s.dbManager.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	messages, err := s.dbManager.CountMessages(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsResponse{
		TotalUsers:        users,
		TotalMessages:     messages,
		ActiveConnections: s.registry.Count(),
		ActiveSessions:    sessions,
	}, nil
}

// GET /health, 503 when the database is unreachable
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"
	code := http.StatusOK

	if err := s.dbManager.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
		code = http.StatusServiceUnavailable
		s.logger.Warn("health check failed", zap.Error(err))
	}

	s.writeJSON(w, code, HealthResponse{
		Status:      status,
		Timestamp:   time.Now().UTC(),
		Database:    dbStatus,
		Connections: s.registry.GetStats(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", zap.Error(err))
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.writeJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
		Detail:  message,
	})
}

// corsMiddleware allows every origin
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
