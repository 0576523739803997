package interfaces

import "context"

// Connection is one client's duplex channel as seen by the registry and gateway.
// Implementations must allow Send to be called from several goroutines at once.
type Connection interface {
	// ID returns a stable identifier used as the membership key
	ID() string

	// Username returns the authenticated user; it never changes
	Username() string

	// Send queues payload for delivery. A non-nil error means the peer is
	// unreachable and should be evicted.
	Send(ctx context.Context, payload []byte) error

	// Receive blocks until the next inbound text frame arrives or the
	// connection closes.
	Receive(ctx context.Context) ([]byte, error)

	// Close sends a close frame with the given code and releases the channel.
	// Calling it more than once is safe.
	Close(code int, reason string) error
}
