package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("send queue full past timeout")
)

// Gateway-related errors
var (
	ErrRateLimited = errors.New("rate limit exceeded")
)
