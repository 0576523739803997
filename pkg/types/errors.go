package types

import "errors"

// Validation errors for inbound frames and account fields
var (
	ErrMalformedPayload = errors.New("invalid message format")
	ErrEmptyContent     = errors.New("message cannot be empty")
	ErrContentTooLong   = errors.New("message too long")
	ErrInvalidUsername  = errors.New("username must be at least 3 characters")
	ErrInvalidPassword  = errors.New("password must be at least 6 characters")
)
