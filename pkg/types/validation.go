package types

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Registration minimums, counted in characters
const (
	MinUsernameLength = 3
	MinPasswordLength = 6
)

// ParseInbound decodes a raw client frame and returns its trimmed content.
// The frame must be a JSON object with a string "content" field; anything else
// is ErrMalformedPayload. Length is counted in characters, not bytes.
func ParseInbound(raw []byte, maxLength int) (string, error) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return "", ErrMalformedPayload
	}
	if frame.Content == nil {
		return "", ErrMalformedPayload
	}

	content := strings.TrimSpace(*frame.Content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if maxLength > 0 && utf8.RuneCountInString(content) > maxLength {
		return "", ErrContentTooLong
	}
	return content, nil
}

// ValidateUsername returns ErrInvalidUsername for names shorter than
// MinUsernameLength. Any other character content is accepted.
func ValidateUsername(username string) error {
	if utf8.RuneCountInString(username) < MinUsernameLength {
		return ErrInvalidUsername
	}
	return nil
}

// ValidatePassword returns ErrInvalidPassword for passwords shorter than
// MinPasswordLength.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}
