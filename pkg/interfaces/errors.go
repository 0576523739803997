package interfaces

import "errors"

// Common interface errors used across components
var (
	ErrUserExists   = errors.New("user already exists")
	ErrUnauthorized = errors.New("unauthorized")
)
