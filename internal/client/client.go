package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"chatterbox/pkg/types"
)

// ErrUnauthorized is returned by Chat when the server refuses the token
var ErrUnauthorized = errors.New("server rejected the session token")

// APIError is a non-2xx answer from the HTTP API
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Detail)
}

// Client talks to a chatterbox server
type Client struct {
	baseURL *url.URL
	http    *http.Client
	dialer  *websocket.Dialer
}

// New creates a client for a server such as "http://127.0.0.1:8000"
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", u.Scheme)
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 10 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an account
func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.post(ctx, "/register", credentials{username, password}, nil)
}

// Login returns a session token
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/login", credentials{username, password}, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String()+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Detail == "" {
			apiErr.Detail = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Detail: apiErr.Detail}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("invalid response from %s: %w", path, err)
		}
	}
	return nil
}

func (c *Client) wsURL(token string) string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String()
}

// Chat connects with token, prints every event to out and sends each
// non-empty line read from in. It returns when in is exhausted, ctx is done
// or the server closes the connection.
func (c *Client) Chat(ctx context.Context, token string, in io.Reader, out io.Writer) error {
	conn, _, err := c.dialer.DialContext(ctx, c.wsURL(token), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	readErr := make(chan error, 1)
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			fmt.Fprintln(out, FormatEvent(raw))
		}
	}()

	done := make(chan struct{})
	defer close(done)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return closeAndWait(conn, readErr)
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := conn.WriteJSON(map[string]string{"content": line}); err != nil {
				return fmt.Errorf("failed to send: %w", err)
			}

		case err := <-readErr:
			return interpretClose(err)

		case <-ctx.Done():
			_ = closeAndWait(conn, readErr)
			return ctx.Err()
		}
	}
}

// closeAndWait performs the closing handshake, waiting briefly for the
// server's close frame so late events still get printed.
func closeAndWait(conn *websocket.Conn, readErr <-chan error) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		return nil
	}
	select {
	case err := <-readErr:
		return interpretClose(err)
	case <-time.After(2 * time.Second):
		return nil
	}
}

func interpretClose(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			return nil
		case websocket.ClosePolicyViolation:
			return ErrUnauthorized
		}
		return fmt.Errorf("connection closed by server: %d %s", closeErr.Code, closeErr.Text)
	}
	return fmt.Errorf("connection lost: %w", err)
}

// FormatEvent renders one server event as terminal text
func FormatEvent(raw []byte) string {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "[Unknown message] " + string(raw)
	}

	switch envelope.Type {
	case types.EventTypeHistory:
		var event types.HistoryEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			break
		}
		var b strings.Builder
		b.WriteString("\n--- Chat History ---\n")
		for _, msg := range event.Messages {
			b.WriteString(FormatMessage(msg))
			b.WriteByte('\n')
		}
		b.WriteString("--------------------\n")
		return b.String()

	case types.EventTypeMessage:
		var event types.MessageEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			break
		}
		return FormatMessage(&types.ChatMessage{Username: event.Username, Content: event.Content, Timestamp: event.Timestamp})

	case types.EventTypeError:
		var event types.ErrorEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			break
		}
		return "[Error] " + event.Detail
	}
	return "[Unknown message] " + string(raw)
}

// FormatMessage renders a stored or broadcast message
func FormatMessage(msg *types.ChatMessage) string {
	return fmt.Sprintf("[%s] %s: %s", msg.Timestamp.Format(time.RFC3339), msg.Username, msg.Content)
}
