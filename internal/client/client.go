// Package client is a listener for one session topic, used by the terminal remote.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Frame is one message received from the server.
type Frame struct {
	Event   string          `json:"event"`
	Topic   string          `json:"topic,omitempty"`
	Ref     string          `json:"ref,omitempty"`
	Status  string          `json:"status,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Snapshot decodes a snapshot or joined payload.
func (f Frame) Snapshot() (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(f.Payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// Progress decodes a progress payload.
func (f Frame) Progress() (models.ProgressDelta, error) {
	var d models.ProgressDelta
	if err := json.Unmarshal(f.Payload, &d); err != nil {
		return d, fmt.Errorf("failed to decode progress: %w", err)
	}
	return d, nil
}

// Err returns the failure carried by an error reply, or nil.
func (f Frame) Err() error {
	if f.Status != "error" {
		return nil
	}
	var body struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(f.Payload, &body)
	return fmt.Errorf("%s: %s", body.Reason, body.Message)
}

// Client is a connected listener.
type Client struct {
	conn   *websocket.Conn
	topic  string
	events chan Frame
	mu     sync.Mutex
	done   chan struct{}
	err    error

	closing   chan struct{}
	closeOnce sync.Once
}

// SocketURL turns a server base URL ("http://host:port") into the websocket URL of a session topic.
func SocketURL(base, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("%w: server url %q: %v", shared.ErrInvalidArgument, base, err)
	}

	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", shared.ErrInvalidArgument, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: server url %q has no host", shared.ErrInvalidArgument, base)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/socket/sessions/" + url.PathEscape(sessionID)
	return u.String(), nil
}

// Dial joins a session topic and returns the client with the snapshot it was greeted with.
func Dial(ctx context.Context, base, sessionID string) (*Client, *models.Snapshot, error) {
	target, err := SocketURL(base, sessionID)
	if err != nil {
		return nil, nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil, fmt.Errorf("%w: session %s", shared.ErrNotFound, sessionID)
		}
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	var joined Frame
	if err := conn.ReadJSON(&joined); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to read join frame: %w", err)
	}
	snap, err := joined.Snapshot()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	c := &Client{
		conn:    conn,
		topic:   sessionID,
		events:  make(chan Frame, 64),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go c.readLoop()

	return c, snap, nil
}

// Topic is the session id the client joined.
func (c *Client) Topic() string { return c.topic }

// Events yields frames until the connection ends, then is closed.
func (c *Client) Events() <-chan Frame { return c.events }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns why the connection ended, once Done is closed.
func (c *Client) Err() error {
	<-c.done
	return c.err
}

// Send issues a command and returns its ref. The reply arrives on Events.
func (c *Client) Send(typ string, payload any) (string, error) {
	ref := uuid.NewString()
	cmd := struct {
		Ref     string `json:"ref"`
		Type    string `json:"type"`
		Payload any    `json:"payload,omitempty"`
	}{Ref: ref, Type: typ, Payload: payload}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return "", err
	}
	if err := c.conn.WriteJSON(cmd); err != nil {
		return "", fmt.Errorf("failed to send %s: %w", typ, err)
	}
	return ref, nil
}

// Close sends a normal close frame and tears the connection down.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closing) })

	c.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.mu.Unlock()

	select {
	case <-c.done:
	case <-time.After(writeWait):
	}
	return c.conn.Close()
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.err = err
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseGoingAway {
				c.err = fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, closeErr.Text)
			}
			return
		}
		select {
		case c.events <- f:
		case <-c.closing:
			return
		}
	}
}
