package interfaces

import (
	"context"

	"chatterbox/pkg/types"
)

// MessageLog is the durable append-only store of chat messages
type MessageLog interface {
	// Append persists one accepted message
	Append(ctx context.Context, message *types.ChatMessage) error

	// Recent returns at most limit messages, oldest first
	Recent(ctx context.Context, limit int) ([]*types.ChatMessage, error)
}

// CredentialStore registers users and checks their passwords.
// Password hashing is the store's concern; callers pass plaintext.
type CredentialStore interface {
	Register(ctx context.Context, username, password string) error
	Verify(ctx context.Context, username, password string) (bool, error)
}

// DatabaseManager is everything the application needs from the SQLite layer
type DatabaseManager interface {
	MessageLog
	CredentialStore

	// CountUsers and CountMessages feed the stats endpoint
	CountUsers(ctx context.Context) (int, error)
	CountMessages(ctx context.Context) (int, error)

	// HealthCheck verifies database connectivity
	HealthCheck(ctx context.Context) error

	// Close stops the writer and closes the database
	Close() error
}
