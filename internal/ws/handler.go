package ws

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"

	"github.com/mattgrayson/pulselink/internal/metrics"
	"github.com/mattgrayson/pulselink/internal/protocol"
	"github.com/mattgrayson/pulselink/internal/ratelimit"
	"github.com/mattgrayson/pulselink/internal/session"
	"nhooyr.io/websocket"
)

// TargetNew is the opening target that requests a fresh session
// instead of naming an existing code.
const TargetNew = "new"

// Handler upgrades /ws/{target} requests and drives each connection
// through its lifecycle: attach to a session (creating or joining),
// relay vibrate messages while joined, leave on close.
type Handler struct {
	registry *session.Registry
	origins  []string
	limiter  ratelimit.Limiter
	metrics  *metrics.Metrics
}

// Option configures a Handler.
type Option func(*Handler)

// WithOriginPatterns sets the origins accepted during the WebSocket
// handshake. Without it, only same-origin requests are accepted.
func WithOriginPatterns(patterns []string) Option {
	return func(h *Handler) {
		h.origins = patterns
	}
}

// WithLimiter gates connection attempts per client IP.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

// WithMetrics records connection and relay activity.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// NewHandler creates a WebSocket Handler backed by the given registry.
func NewHandler(registry *session.Registry, opts ...Option) *Handler {
	h := &Handler{registry: registry}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the connection and runs its read loop. The request
// path must carry a {target} value: either TargetNew or a 6-digit code.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow(remoteIP(r)) {
		h.metrics.ConnectionRejected()
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		log.Printf("ws: accept error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	client := newClient(conn)
	go client.writePump(r.Context())
	defer client.shutdown()

	sess, ok := h.attach(r.Context(), client, r.PathValue("target"))
	if !ok {
		return
	}

	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()
	defer sess.Leave(client)

	h.readLoop(r.Context(), client, sess)
}

// attach resolves the opening target into a joined session. On failure
// it writes an error reply and returns ok=false, after which the
// connection is closed.
func (h *Handler) attach(ctx context.Context, client *Client, target string) (*session.Session, bool) {
	if target == TargetNew {
		sess := h.registry.Create()
		n, err := sess.Join(client)
		if err != nil {
			// A freshly created session can be neither full nor reclaimed.
			log.Printf("ws: join of new session %s failed: %v", sess.Code(), err)
			client.write(ctx, protocol.Error("Failed to create session"))
			return nil, false
		}
		h.metrics.SessionCreated()
		log.Printf("ws: created session %s", sess.Code())
		client.write(ctx, protocol.SessionCreated(sess.Code(), n))
		return sess, true
	}

	if !protocol.ValidCode(target) {
		client.write(ctx, protocol.Error("Invalid session code format"))
		return nil, false
	}

	sess, err := h.registry.Lookup(target)
	if err != nil {
		client.write(ctx, protocol.Error("Session not found"))
		return nil, false
	}

	n, err := sess.Join(client)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		// Lost the race with the idle reaper.
		client.write(ctx, protocol.Error("Session not found"))
		return nil, false
	case errors.Is(err, session.ErrSessionFull):
		client.write(ctx, protocol.Error("Session is full"))
		return nil, false
	case err != nil:
		client.write(ctx, protocol.Error("Failed to join session"))
		return nil, false
	}

	log.Printf("ws: member joined session %s, %d connected", sess.Code(), n)
	client.write(ctx, protocol.SessionJoined(sess.Code(), n))
	return sess, true
}

// readLoop reads messages from the client until the connection closes.
// Only vibrate messages are accepted once joined; anything else gets an
// error reply and the connection stays open.
func (h *Handler) readLoop(ctx context.Context, client *Client, sess *session.Session) {
	for {
		select {
		case <-client.closed:
			return
		default:
		}

		_, data, err := client.conn.Read(ctx)
		if err != nil {
			// Normal close, network failure, or context cancelled:
			// all of them mean this member is gone.
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			client.write(ctx, protocol.Error("Invalid message format"))
			continue
		}

		switch msg.Type {
		case protocol.TypeVibrate:
			if !protocol.ValidPattern(msg.Pattern) {
				client.write(ctx, protocol.Error("Vibration pattern must be between 1 and 4"))
				continue
			}
			sess.Relay(client, protocol.Vibrate(msg.Pattern))
			h.metrics.MessageRelayed()
		default:
			client.write(ctx, protocol.Error("Unexpected message type: "+string(msg.Type)))
		}
	}
}

// remoteIP extracts the client IP from the request.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
