package session

import (
	"context"
	"fmt"

	"chatterbox/pkg/interfaces"
)

// Gate authorizes connection attempts against a SessionStore
type Gate struct {
	store interfaces.SessionStore
}

// NewGate creates a gate backed by store
func NewGate(store interfaces.SessionStore) *Gate {
	return &Gate{store: store}
}

// Authorize resolves token to a username. An empty or unknown token yields
// ErrUnauthorized; store failures are wrapped and must also be treated as a
// refusal by the caller.
func (g *Gate) Authorize(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}

	username, ok, err := g.store.Resolve(ctx, token)
	if err != nil {
		return "", fmt.Errorf("session lookup failed: %w", err)
	}
	if !ok || username == "" {
		return "", ErrUnauthorized
	}
	return username, nil
}
