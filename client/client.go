// Package client implements the reconnection contract relay callers
// are expected to follow: dial a target ("new" or a 6-digit code),
// remember the session code the relay issues, and on unexpected
// closure redial that same code with exponential backoff.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattgrayson/pulselink/internal/protocol"
	"nhooyr.io/websocket"
)

// ErrRetriesExhausted is returned by Redial once every backoff attempt
// has failed.
var ErrRetriesExhausted = errors.New("connection retries exhausted")

// ServerError is an error reply the relay sent before closing the
// connection, such as "Session not found" or "Session is full".
// Redialing won't fix these, so Redial surfaces them immediately.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

const (
	defaultBackoffBase = time.Second
	maxAttempts        = 5
	handshakeTimeout   = 10 * time.Second
)

// Backoff yields the waits between reconnection attempts: the base
// duration, doubling per attempt, maxAttempts attempts total.
type Backoff struct {
	base    time.Duration
	attempt int
}

// NewBackoff creates a Backoff starting at base. A zero base means the
// contract's 1 second.
func NewBackoff(base time.Duration) *Backoff {
	if base <= 0 {
		base = defaultBackoffBase
	}
	return &Backoff{base: base}
}

// Next returns the wait before the next attempt, and false once the
// attempts are exhausted.
func (b *Backoff) Next() (time.Duration, bool) {
	if b.attempt >= maxAttempts {
		return 0, false
	}
	d := b.base << b.attempt
	b.attempt++
	return d, true
}

// Reset makes the next wait start from the base again. Call it after a
// successful reconnect.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Conn is a relay connection that remembers its session code so a drop
// can be survived by redialing the same target.
type Conn struct {
	baseURL     string
	backoffBase time.Duration

	ws   *websocket.Conn
	code string
}

// Option configures dialing.
type Option func(*Conn)

// WithBackoffBase overrides the initial backoff wait. Meant for tests;
// the contract's default is 1 second.
func WithBackoffBase(d time.Duration) Option {
	return func(c *Conn) {
		c.backoffBase = d
	}
}

// Dial opens a connection to the relay at baseURL (e.g.
// "ws://host:8080") for the given target: "new" to create a session,
// or a 6-digit code to join one. The code the relay issues is stored
// for later redials.
func Dial(ctx context.Context, baseURL, target string, opts ...Option) (*Conn, error) {
	c := &Conn{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		backoffBase: defaultBackoffBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.dial(ctx, target); err != nil {
		return nil, err
	}
	return c, nil
}

// dial performs one connection attempt and consumes the relay's
// opening reply.
func (c *Conn) dial(ctx context.Context, target string) error {
	dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	ws, _, err := websocket.Dial(dialCtx, c.baseURL+"/ws/"+target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}

	msg, err := readMessage(dialCtx, ws)
	if err != nil {
		ws.Close(websocket.StatusProtocolError, "bad opening reply")
		return fmt.Errorf("opening reply: %w", err)
	}

	switch msg.Type {
	case protocol.TypeSessionCreated, protocol.TypeSessionJoined:
		c.ws = ws
		c.code = msg.SessionCode
		return nil
	case protocol.TypeError:
		ws.Close(websocket.StatusNormalClosure, "")
		return &ServerError{Message: msg.Message}
	default:
		ws.Close(websocket.StatusProtocolError, "bad opening reply")
		return fmt.Errorf("unexpected opening reply %q", msg.Type)
	}
}

// Code returns the session code issued by the relay.
func (c *Conn) Code() string {
	return c.code
}

// SendVibrate relays a vibration pattern to the other session members.
func (c *Conn) SendVibrate(ctx context.Context, pattern int) error {
	data, err := protocol.Vibrate(pattern).Encode()
	if err != nil {
		return err
	}
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// Read returns the next message from the relay.
func (c *Conn) Read(ctx context.Context) (*protocol.Message, error) {
	return readMessage(ctx, c.ws)
}

// Close closes the connection cleanly.
func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}

// Redial reconnects to the stored session code after an unexpected
// closure: waits 1s, 2s, 4s, 8s, 16s between attempts and gives up
// with ErrRetriesExhausted after the fifth failure. An error reply
// from the relay (session gone, session full) is terminal and returned
// at once; the caller decides whether to create a new session.
func (c *Conn) Redial(ctx context.Context) error {
	backoff := NewBackoff(c.backoffBase)
	var lastErr error
	for {
		wait, ok := backoff.Next()
		if !ok {
			return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, maxAttempts, lastErr)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}

		err := c.dial(ctx, c.code)
		if err == nil {
			return nil
		}
		var serverErr *ServerError
		if errors.As(err, &serverErr) {
			return err
		}
		lastErr = err
	}
}

func readMessage(ctx context.Context, ws *websocket.Conn) (*protocol.Message, error) {
	_, data, err := ws.Read(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.Decode(data)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
