package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{name: "plain content", raw: `{"content":"hi"}`, want: "hi"},
		{name: "surrounding whitespace trimmed", raw: `{"content":"  hello \n"}`, want: "hello"},
		{name: "extra fields ignored", raw: `{"content":"hi","type":"message"}`, want: "hi"},
		{name: "empty content", raw: `{"content":""}`, wantErr: ErrEmptyContent},
		{name: "whitespace only", raw: `{"content":"   \t"}`, wantErr: ErrEmptyContent},
		{name: "not json", raw: `hello`, wantErr: ErrMalformedPayload},
		{name: "json array", raw: `["hi"]`, wantErr: ErrMalformedPayload},
		{name: "json null", raw: `null`, wantErr: ErrMalformedPayload},
		{name: "missing content", raw: `{"text":"hi"}`, wantErr: ErrMalformedPayload},
		{name: "content not a string", raw: `{"content":42}`, wantErr: ErrMalformedPayload},
		{name: "exactly max length", raw: `{"content":"` + strings.Repeat("a", 5000) + `"}`, want: strings.Repeat("a", 5000)},
		{name: "over max length", raw: `{"content":"` + strings.Repeat("a", 5001) + `"}`, wantErr: ErrContentTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInbound([]byte(tt.raw), DefaultMaxContentLength)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInbound_CountsCharactersNotBytes(t *testing.T) {
	// 5000 two-byte runes is 10000 bytes but still within the limit
	content := strings.Repeat("é", 5000)
	raw, err := json.Marshal(map[string]string{"content": content})
	require.NoError(t, err)

	got, err := ParseInbound(raw, DefaultMaxContentLength)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestParseInbound_NoLimit(t *testing.T) {
	got, err := ParseInbound([]byte(`{"content":"`+strings.Repeat("x", 9000)+`"}`), 0)
	require.NoError(t, err)
	assert.Len(t, got, 9000)
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		username string
		wantErr  bool
	}{
		{"bob", false},
		{"alice_01", false},
		{"has space", false},
		{"éàü", false},
		{strings.Repeat("a", 80), false},
		{"ab", true},
		{"", true},
	}
	for _, tt := range tests {
		err := ValidateUsername(tt.username)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidUsername, "username %q", tt.username)
		} else {
			assert.NoError(t, err, "username %q", tt.username)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	assert.ErrorIs(t, ValidatePassword("12345"), ErrInvalidPassword)
	assert.NoError(t, ValidatePassword("123456"))
	assert.NoError(t, ValidatePassword("ñññ123"))
}

func TestEventShapes(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	msg := &ChatMessage{Username: "A", Content: "hi", Timestamp: ts}

	data, err := json.Marshal(NewMessageEvent(msg))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message","username":"A","content":"hi","timestamp":"2024-05-01T12:30:00Z"}`, string(data))

	data, err = json.Marshal(NewErrorEvent("Message cannot be empty"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","detail":"Message cannot be empty"}`, string(data))

	data, err = json.Marshal(NewHistoryEvent(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"history","messages":[]}`, string(data))
}
