package interfaces

import "context"

// SessionStore maps opaque tokens to usernames.
// Tokens never expire; they live as long as the backing store does.
type SessionStore interface {
	// Issue creates a fresh token for username
	Issue(ctx context.Context, username string) (string, error)

	// Resolve returns the username bound to token, or ok=false if unknown
	Resolve(ctx context.Context, token string) (username string, ok bool, err error)

	// Count returns the number of issued tokens
	Count(ctx context.Context) (int, error)

	Close() error
}
