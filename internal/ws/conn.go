package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mattgrayson/pulselink/internal/protocol"
	"nhooyr.io/websocket"
)

const (
	// sendBufferSize is the number of messages that can be queued per client.
	sendBufferSize = 16

	// writeTimeout is the max time to wait for a single write to complete.
	writeTimeout = 5 * time.Second
)

// Client pairs one WebSocket connection with a buffered outbound queue
// drained by a single write pump. Its Send method satisfies
// session.Peer: it never blocks, and reports false once the client is
// gone or too slow to keep up.
type Client struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
}

// Send queues data for delivery. It returns false if the client has
// shut down or its buffer is full (slow consumer); the session then
// treats the member as departed.
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	case <-c.closed:
		return false
	default:
		log.Printf("ws: send buffer full, dropping client")
		c.shutdown()
		return false
	}
}

// shutdown stops the write pump and makes all future Sends fail.
// Safe to call more than once.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// writePump drains the send queue, writing each message to the
// connection. It exits when ctx is cancelled, the client shuts down,
// or a write fails.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case msg := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				log.Printf("ws: write failed: %v", err)
				c.shutdown()
				return
			}
		}
	}
}

// write sends a single message directly on the connection, bypassing
// the queue. Used for the handshake acks and error replies that belong
// to this connection's own request/reply flow.
func (c *Client) write(ctx context.Context, msg *protocol.Message) {
	data, err := msg.Encode()
	if err != nil {
		log.Printf("ws: failed to marshal %s message: %v", msg.Type, err)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := c.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		log.Printf("ws: failed to write %s message: %v", msg.Type, err)
	}
}
