package database

import "errors"

// Database manager errors
var (
	ErrManagerClosed  = errors.New("database manager is closed")
	ErrWriteTimeout   = errors.New("write operation timeout")
	ErrInvalidMessage = errors.New("message requires username and content")
)
