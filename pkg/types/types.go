package types

import (
	"time"
)

// Outbound event discriminators
const (
	EventTypeHistory = "history"
	EventTypeMessage = "message"
	EventTypeError   = "error"
)

// Content limits applied to inbound chat frames
const (
	DefaultHistoryLimit     = 50
	DefaultMaxContentLength = 5000
)

// ChatMessage is one accepted chat line.
// It is built by the gateway after validation, persisted once and then broadcast;
// it is never mutated afterwards.
type ChatMessage struct {
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session binds an opaque token to the username that logged in.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// InboundFrame is the structure clients send while connected.
// Content is a pointer so a missing field can be told apart from an empty one.
type InboundFrame struct {
	Content *string `json:"content"`
}

// HistoryEvent carries the most recent messages, oldest first.
type HistoryEvent struct {
	Type     string         `json:"type"`
	Messages []*ChatMessage `json:"messages"`
}

// MessageEvent is broadcast to every member for each accepted message.
type MessageEvent struct {
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEvent is sent only to the connection whose frame caused it.
type ErrorEvent struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// NewHistoryEvent wraps messages into a history event. A nil slice is sent as [].
func NewHistoryEvent(messages []*ChatMessage) *HistoryEvent {
	if messages == nil {
		messages = []*ChatMessage{}
	}
	return &HistoryEvent{Type: EventTypeHistory, Messages: messages}
}

// NewMessageEvent builds the broadcast form of an accepted message.
func NewMessageEvent(msg *ChatMessage) *MessageEvent {
	return &MessageEvent{
		Type:      EventTypeMessage,
		Username:  msg.Username,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
}

// NewErrorEvent builds a local error event.
func NewErrorEvent(detail string) *ErrorEvent {
	return &ErrorEvent{Type: EventTypeError, Detail: detail}
}
