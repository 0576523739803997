package session

import (
	"errors"

	"chatterbox/pkg/interfaces"
)

// Session errors
var (
	ErrUnauthorized    = interfaces.ErrUnauthorized
	ErrInvalidUsername = errors.New("username cannot be empty")
	ErrStoreClosed     = errors.New("session store is closed")
)
