package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	dbconfig "chatterbox/pkg/database"
	"chatterbox/pkg/interfaces"
	"chatterbox/pkg/types"
)

// Manager implements interfaces.DatabaseManager on SQLite.
// Reads go straight to the connection pool; writes are funnelled through a
// single writer goroutine.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	logger       *zap.Logger
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex // protects closed
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

var _ interfaces.DatabaseManager = (*Manager)(nil)

// NewManager opens the database, applies pragmas and starts the writer.
// Migrations are applied separately, see dbconfig.MigrationManager.
func NewManager(config *dbconfig.Config, logger *zap.Logger) (*Manager, error) {
	if config == nil {
		config = dbconfig.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := applySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		logger:       logger.Named("database"),
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes all write operations in a single goroutine.
// Busy/locked errors are retried once after WriteRetryDelay.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil && isRetryable(err) {
				m.logger.Warn("database write failed, retrying", zap.Duration("delay", m.config.WriteRetryDelay), zap.Error(err))
				time.Sleep(m.config.WriteRetryDelay)
				err = op.operation(m.db)
				if err != nil {
					m.logger.Error("database write failed after retry", zap.Error(err))
				}
			}
			op.result <- err

		case <-m.shutdown:
			// fail whatever is still queued so no caller waits forever
			for {
				select {
				case op := <-m.writeChannel:
					op.result <- ErrManagerClosed
				default:
					m.logger.Debug("database write loop stopped")
					return
				}
			}
		}
	}
}

// executeWrite queues a write operation and waits for completion
func (m *Manager) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrManagerClosed
	}
	m.mu.RUnlock()

	result := make(chan error, 1)
	timer := time.NewTimer(m.config.WriteTimeout)
	defer timer.Stop()

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-timer.C:
		return ErrWriteTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-m.shutdown:
		return ErrManagerClosed
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Append stores one chat message
func (m *Manager) Append(ctx context.Context, message *types.ChatMessage) error {
	if message == nil || message.Username == "" || message.Content == "" {
		return ErrInvalidMessage
	}

	timestamp := message.Timestamp.UTC().Format(time.RFC3339Nano)
	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			"INSERT INTO messages (username, content, timestamp) VALUES (?, ?, ?)",
			message.Username, message.Content, timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		return nil
	})
}

// Recent returns the last limit messages in insertion order, oldest first
func (m *Manager) Recent(ctx context.Context, limit int) ([]*types.ChatMessage, error) {
	if limit <= 0 {
		return []*types.ChatMessage{}, nil
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT username, content, timestamp
		FROM messages
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	messages := make([]*types.ChatMessage, 0, limit)
	for rows.Next() {
		var (
			message   types.ChatMessage
			timestamp string
		)
		if err := rows.Scan(&message.Username, &message.Content, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		message.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp %q: %w", timestamp, err)
		}
		messages = append(messages, &message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	// newest-first from the query; flip to oldest-first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Register creates a user with a bcrypt hash of password.
// Returns interfaces.ErrUserExists if the username is taken.
func (m *Manager) Register(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.config.PasswordCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			"INSERT INTO users (username, password_hash) VALUES (?, ?)",
			username, string(hash),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return interfaces.ErrUserExists
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	})
}

// Verify reports whether password matches the stored hash for username.
// Unknown users are a mismatch, not an error.
func (m *Manager) Verify(ctx context.Context, username, password string) (bool, error) {
	var hash string
	err := m.db.QueryRowContext(ctx,
		"SELECT password_hash FROM users WHERE username = ?", username,
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to query user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("failed to compare password: %w", err)
	}
	return true, nil
}

// CountUsers returns the number of registered users
func (m *Manager) CountUsers(ctx context.Context) (int, error) {
	return m.count(ctx, "SELECT COUNT(*) FROM users")
}

// CountMessages returns the number of stored messages
func (m *Manager) CountMessages(ctx context.Context) (int, error) {
	return m.count(ctx, "SELECT COUNT(*) FROM messages")
}

func (m *Manager) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}

// HealthCheck validates database connectivity
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := m.count(ctx, "SELECT COUNT(*) FROM messages LIMIT 1"); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}

	return nil
}

// GetDB returns the underlying database connection for migrations
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close stops the writer and closes the database. Safe to call twice.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func applySQLiteOptimizations(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}
	return nil
}

func isRetryable(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
